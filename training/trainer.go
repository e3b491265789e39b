package training

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/RyanBlaney/sonido-emotion/config"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/network"
	"github.com/RyanBlaney/sonido-emotion/preprocessing"
)

// Result is everything a training run produces
type Result struct {
	Model        *network.Model
	Scaler       *preprocessing.StandardScaler
	Encoder      *preprocessing.LabelEncoder
	History      *network.History
	TrainSamples int
	TestSamples  int
	TestLoss     float64
	TestAccuracy float64
}

// Split holds row indices of a train/test partition
type Split struct {
	Train []int
	Test  []int
}

// ShuffleSplit permutes 0..n-1 with a generator seeded by seed and puts the
// first ceil(n*testSize) indices in the test set
func ShuffleSplit(n int, testSize float64, seed uint64) (Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size %.3f out of range (0, 1)", testSize)
	}
	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest < 1 || n-nTest < 1 {
		return Split{}, fmt.Errorf("cannot split %d rows with test size %.3f", n, testSize)
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	return Split{Train: perm[nTest:], Test: perm[:nTest]}, nil
}

// Train standardizes the dataset, holds out a test split and fits the
// classifier. The scaler is fit on every row before the split, matching how
// the stored scaler is later applied to unseen audio.
func Train(ctx context.Context, ds *features.Dataset, cfg config.TrainingConfig) (*Result, error) {
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "trainer",
		"function":  "Train",
	})

	scaler, err := preprocessing.FitStandardScaler(ds.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	scaled, err := scaler.Transform(ds.Features)
	if err != nil {
		return nil, err
	}

	numClasses := ds.Encoder.NumClasses()
	targets, err := preprocessing.ToCategorical(ds.Labels, numClasses)
	if err != nil {
		return nil, err
	}

	split, err := ShuffleSplit(ds.Len(), cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	trainX, trainY := gather(scaled, targets, split.Train)
	testX, testY := gather(scaled, targets, split.Test)

	model, err := network.NewClassifier(ds.NumCoefficients, numClasses, cfg.Seed)
	if err != nil {
		return nil, err
	}

	logger.Info("Training classifier", logging.Fields{
		"samples":     ds.Len(),
		"train":       len(trainX),
		"test":        len(testX),
		"classes":     ds.Encoder.Classes(),
		"input_shape": model.InputShape().String(),
	})
	logger.Debug(model.Summary())

	history, err := model.Fit(ctx, trainX, trainY, network.FitConfig{
		Epochs:          cfg.Epochs,
		BatchSize:       cfg.BatchSize,
		LearningRate:    cfg.LearningRate,
		ValidationSplit: cfg.ValidationSplit,
		Seed:            cfg.Seed,
		Workers:         cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	testLoss, testAcc, err := model.Evaluate(testX, testY)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	logger.Info("Training complete", logging.Fields{
		"test_loss":     testLoss,
		"test_accuracy": testAcc,
		"epochs":        len(history.Epochs),
	})

	return &Result{
		Model:        model,
		Scaler:       scaler,
		Encoder:      ds.Encoder,
		History:      history,
		TrainSamples: len(trainX),
		TestSamples:  len(testX),
		TestLoss:     testLoss,
		TestAccuracy: testAcc,
	}, nil
}

func gather(x, y [][]float64, idx []int) ([][]float64, [][]float64) {
	gx := make([][]float64, len(idx))
	gy := make([][]float64, len(idx))
	for i, j := range idx {
		gx[i] = x[j]
		gy[i] = y[j]
	}
	return gx, gy
}
