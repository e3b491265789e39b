package training

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-emotion/config"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/preprocessing"
)

func TestShuffleSplit(t *testing.T) {
	s, err := ShuffleSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, s.Test, 2)
	assert.Len(t, s.Train, 8)

	all := append(slices.Clone(s.Train), s.Test...)
	slices.Sort(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	again, err := ShuffleSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, s, again)

	_, err = ShuffleSplit(1, 0.2, 42)
	assert.Error(t, err)
	_, err = ShuffleSplit(10, 1, 42)
	assert.Error(t, err)
}

// syntheticDataset builds MFCC-like rows whose mean depends on the class
func syntheticDataset(t *testing.T, perClass int) *features.Dataset {
	t.Helper()
	classes := []string{"Anger", "Happy", "Sad"}
	enc, err := preprocessing.NewLabelEncoder(classes)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	ds := &features.Dataset{Encoder: enc, SampleRate: 22050, NumCoefficients: 40}
	for i := range perClass * len(classes) {
		c := i % len(classes)
		row := make([]float64, 40)
		for j := range row {
			row[j] = -200 + 10*float64(j) + rng.NormFloat64()
		}
		for j := c * 10; j < c*10+8; j++ {
			row[j] += 25
		}
		ds.Features = append(ds.Features, row)
		ds.Labels = append(ds.Labels, c)
	}
	return ds
}

func TestTrain(t *testing.T) {
	ds := syntheticDataset(t, 30)

	cfg := config.DefaultTrainingConfig()
	cfg.Epochs = 20
	cfg.BatchSize = 8
	cfg.Workers = 2

	res, err := Train(context.Background(), ds, cfg)
	require.NoError(t, err)

	assert.Equal(t, 72, res.TrainSamples)
	assert.Equal(t, 18, res.TestSamples)
	assert.Equal(t, 40, res.Scaler.NumFeatures())
	assert.Equal(t, 90, res.Scaler.NumSamples)
	assert.Equal(t, 3, res.Model.NumClasses())
	assert.Same(t, ds.Encoder, res.Encoder)
	assert.Len(t, res.History.Epochs, 20)
	assert.GreaterOrEqual(t, res.TestAccuracy, 0.9)
}

func TestTrainRejectsInvalidDataset(t *testing.T) {
	_, err := Train(context.Background(), &features.Dataset{}, config.DefaultTrainingConfig())
	assert.Error(t, err)
}
