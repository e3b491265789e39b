package preprocessing

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoderIsOrderIndependent(t *testing.T) {
	a, err := FitLabelEncoder([]string{"Sad", "Anger", "Happy", "Sad", "Neutral"})
	require.NoError(t, err)
	b, err := FitLabelEncoder([]string{"Neutral", "Happy", "Anger", "Sad"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Anger", "Happy", "Neutral", "Sad"}, a.Classes())
	assert.Equal(t, a.Classes(), b.Classes())

	idx, err := a.Transform([]string{"Sad", "Anger"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0}, idx)

	label, err := a.InverseTransform(2)
	require.NoError(t, err)
	assert.Equal(t, "Neutral", label)
}

func TestLabelEncoderErrors(t *testing.T) {
	_, err := FitLabelEncoder(nil)
	assert.Error(t, err)

	le, err := FitLabelEncoder([]string{"Fear"})
	require.NoError(t, err)
	_, err = le.Transform([]string{"Joy"})
	assert.Error(t, err)
	_, err = le.InverseTransform(1)
	assert.Error(t, err)
	_, err = le.InverseTransform(-1)
	assert.Error(t, err)

	var empty LabelEncoder
	_, err = empty.InverseTransform(0)
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = NewLabelEncoder([]string{"b", "a"})
	assert.Error(t, err)
	_, err = NewLabelEncoder([]string{"a", "a"})
	assert.Error(t, err)
}

func TestLabelEncoderSaveLoad(t *testing.T) {
	le, err := FitLabelEncoder([]string{"Happy", "Fear", "Anger"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, le.Save(&buf))

	loaded, err := LoadLabelEncoder(&buf)
	require.NoError(t, err)
	assert.Equal(t, le.Classes(), loaded.Classes())

	_, err = LoadLabelEncoder(bytes.NewBufferString(`{"classes":["b","a"]}`))
	assert.Error(t, err)
}

func TestStandardScaler(t *testing.T) {
	x := [][]float64{
		{1, 10, 5},
		{3, 20, 5},
		{5, 30, 5},
	}

	s, err := FitStandardScaler(x)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{3, 20, 5}, s.Mean, 1e-12)
	// population std; constant column scales by 1
	assert.InDeltaSlice(t, []float64{math.Sqrt(8.0 / 3.0), math.Sqrt(200.0 / 3.0), 1}, s.Scale, 1e-12)

	scaled, err := s.Transform(x)
	require.NoError(t, err)
	for j := range 2 {
		sum, sq := 0.0, 0.0
		for i := range scaled {
			sum += scaled[i][j]
			sq += scaled[i][j] * scaled[i][j]
		}
		assert.InDelta(t, 0.0, sum/3, 1e-12)
		assert.InDelta(t, 1.0, sq/3, 1e-12)
	}
	assert.Equal(t, []float64{0, 0, 0}, []float64{scaled[0][2], scaled[1][2], scaled[2][2]})

	_, err = s.TransformRow([]float64{1, 2})
	assert.Error(t, err)
}

func TestStandardScalerDoesNotRefit(t *testing.T) {
	s, err := FitStandardScaler([][]float64{{0}, {2}})
	require.NoError(t, err)

	row, err := s.TransformRow([]float64{100})
	require.NoError(t, err)
	assert.InDelta(t, 99.0, row[0], 1e-12)
	assert.InDeltaSlice(t, []float64{1}, s.Mean, 1e-12)
}

func TestStandardScalerSaveLoad(t *testing.T) {
	s, err := FitStandardScaler([][]float64{{1, 2}, {3, 6}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))
	loaded, err := LoadStandardScaler(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	_, err = LoadStandardScaler(bytes.NewBufferString(`{"mean":[1],"scale":[0]}`))
	assert.Error(t, err)
	_, err = LoadStandardScaler(bytes.NewBufferString(`{"mean":[1,2],"scale":[1]}`))
	assert.Error(t, err)
}

func TestToCategorical(t *testing.T) {
	y, err := ToCategorical([]int{2, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0, 1}, {1, 0, 0}}, y)

	_, err = ToCategorical([]int{3}, 3)
	assert.Error(t, err)
}
