package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-emotion/network"
	"github.com/RyanBlaney/sonido-emotion/preprocessing"
)

func testBundle(t *testing.T, classes []string) *Bundle {
	t.Helper()

	model, err := network.NewClassifier(40, len(classes), 1)
	require.NoError(t, err)

	rows := [][]float64{make([]float64, 40), make([]float64, 40)}
	for j := range 40 {
		rows[1][j] = float64(j)
	}
	scaler, err := preprocessing.FitStandardScaler(rows)
	require.NoError(t, err)

	enc, err := preprocessing.FitLabelEncoder(classes)
	require.NoError(t, err)

	return &Bundle{Model: model, Scaler: scaler, Encoder: enc}
}

func TestSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	b := testBundle(t, []string{"Anger", "Fear", "Happy", "Neutral", "Sad"})

	require.NoError(t, Save(dir, b))
	for _, name := range []string{ModelFile, ScalerFile, EncoderFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, b.Encoder.Classes(), loaded.Encoder.Classes())
	assert.Equal(t, b.Scaler, loaded.Scaler)
	assert.Equal(t, b.Model.NumParams(), loaded.Model.NumParams())
}

func TestLoadMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrMissingArtifact)

	require.NoError(t, Save(dir, testBundle(t, []string{"Happy", "Sad"})))
	require.NoError(t, os.Remove(filepath.Join(dir, EncoderFile)))

	_, err = Load(dir)
	assert.ErrorIs(t, err, ErrMissingArtifact)
}

func TestLoadInconsistentBundle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, testBundle(t, []string{"Happy", "Sad"})))

	other := t.TempDir()
	require.NoError(t, Save(other, testBundle(t, []string{"Anger", "Happy", "Sad"})))
	data, err := os.ReadFile(filepath.Join(other, EncoderFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, EncoderFile), data, 0o644))

	_, err = Load(dir)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingArtifact)
}

func TestSaveRejectsIncompleteBundle(t *testing.T) {
	b := testBundle(t, []string{"Happy", "Sad"})
	b.Scaler = nil
	assert.Error(t, Save(t.TempDir(), b))
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, testBundle(t, []string{"Happy", "Sad"})))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ScalerFile), []byte("{"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
