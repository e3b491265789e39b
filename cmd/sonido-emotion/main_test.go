package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-emotion/artifacts"
	"github.com/RyanBlaney/sonido-emotion/internal/wavtest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExtractThenTrain(t *testing.T) {
	t.Chdir(t.TempDir())

	data := t.TempDir()
	for i, emotion := range []string{"Sad", "Anger", "Happy"} {
		for j := range 4 {
			path := filepath.Join(data, "Speaker_1", emotion, string(rune('a'+j))+".wav")
			wavtest.Write(t, path, wavtest.Sine(200*float64(i+1)+float64(j), 0.3, 8000, 1), 8000, 1)
		}
	}

	featuresFile := filepath.Join(t.TempDir(), "features.json")
	out, err := run(t, "extract", "--log-level", "error", "--data-dir", data, "--output", featuresFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Feature extraction complete! Total samples: 12")
	assert.FileExists(t, featuresFile)

	models := filepath.Join(t.TempDir(), "models")
	out, err = run(t, "train", "--log-level", "error", "--features", featuresFile, "--models-dir", models, "--epochs", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Accuracy:")

	for _, name := range []string{artifacts.ModelFile, artifacts.ScalerFile, artifacts.EncoderFile} {
		assert.FileExists(t, filepath.Join(models, name))
	}

	bundle, err := artifacts.Load(models)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anger", "Happy", "Sad"}, bundle.Encoder.Classes())
}

func TestBadLogLevel(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "extract", "--log-level", "loud")
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "train", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestTrainWithoutFeatures(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "train", "--log-level", "error", "--features", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	_, statErr := os.Stat("models")
	assert.True(t, os.IsNotExist(statErr))
}
