package network

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// probability floor used by the cross-entropy loss
const lossEpsilon = 1e-7

// FitConfig controls Model.Fit
type FitConfig struct {
	Epochs          int
	BatchSize       int
	LearningRate    float64
	ValidationSplit float64 // trailing fraction of the rows held out for validation
	Seed            uint64  // shuffling and dropout masks
	Workers         int     // goroutines per batch, 0 = NumCPU
	// OnEpoch, if set, is called after each epoch
	OnEpoch func(EpochStats)
}

// DefaultFitConfig returns 100 epochs of batch 32 with a 10% validation split
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Epochs:          100,
		BatchSize:       32,
		LearningRate:    0.001,
		ValidationSplit: 0.1,
		Seed:            42,
	}
}

// EpochStats is the training record of one epoch
type EpochStats struct {
	Epoch       int     `json:"epoch"`
	Loss        float64 `json:"loss"`
	Accuracy    float64 `json:"accuracy"`
	ValLoss     float64 `json:"val_loss,omitempty"`
	ValAccuracy float64 `json:"val_accuracy,omitempty"`
}

// History collects per-epoch statistics
type History struct {
	Epochs        []EpochStats `json:"epochs"`
	TrainSamples  int          `json:"train_samples"`
	ValSamples    int          `json:"val_samples"`
	StoppedEarly  bool         `json:"stopped_early"`
	OptimizerStep int          `json:"optimizer_steps"`
}

// Last returns the final epoch, or the zero value when no epoch completed
func (h *History) Last() EpochStats {
	if len(h.Epochs) == 0 {
		return EpochStats{}
	}
	return h.Epochs[len(h.Epochs)-1]
}

// Fit trains the model on x with one-hot targets y using categorical
// cross-entropy and Adam. Training rows are reshuffled each epoch. The last
// ValidationSplit of the rows, taken before any shuffling, is evaluated after
// every epoch and never trained on.
//
// Cancelling ctx stops training between batches; the history of completed
// epochs is returned together with the context error.
func (m *Model) Fit(ctx context.Context, x, y [][]float64, cfg FitConfig) (*History, error) {
	if err := m.checkTargets(x, y); err != nil {
		return nil, err
	}
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("epochs and batch size must be positive")
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive")
	}
	if cfg.ValidationSplit < 0 || cfg.ValidationSplit >= 1 {
		return nil, fmt.Errorf("validation split %.3f out of range [0, 1)", cfg.ValidationSplit)
	}
	last := m.layers[len(m.layers)-1]
	if d, ok := last.(*Dense); !ok || d.activation != ActivationSoftmax {
		return nil, fmt.Errorf("fit requires a softmax output layer")
	}

	splitAt := int(math.Floor(float64(len(x)) * (1 - cfg.ValidationSplit)))
	if splitAt <= 0 {
		return nil, fmt.Errorf("validation split %.3f leaves no training rows", cfg.ValidationSplit)
	}
	trainX, trainY := x[:splitAt], y[:splitAt]
	valX, valY := x[splitAt:], y[splitAt:]

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, cfg.BatchSize))

	logger := logging.WithFields(logging.Fields{
		"component": "network",
		"function":  "Fit",
	})
	logger.Info("Training started", logging.Fields{
		"train_samples": len(trainX),
		"val_samples":   len(valX),
		"epochs":        cfg.Epochs,
		"batch_size":    cfg.BatchSize,
		"params":        m.NumParams(),
	})

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	opt := NewAdam(cfg.LearningRate)
	history := &History{TrainSamples: len(trainX), ValSamples: len(valX)}

	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	pool := newGradientPool(m, workers)
	batchGrad := m.newGradients()

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		var correct int

		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				history.StoppedEarly = true
				history.OptimizerStep = opt.Steps()
				return history, err
			}

			batch := order[start:min(start+cfg.BatchSize, len(order))]
			masks := m.dropoutMasks(rng, len(batch))

			loss, hits := pool.run(trainX, trainY, batch, masks, batchGrad)
			lossSum += loss
			correct += hits

			batchGrad.scale(1.0 / float64(len(batch)))
			opt.Step(m, batchGrad)
		}

		stats := EpochStats{
			Epoch:    epoch,
			Loss:     lossSum / float64(len(trainX)),
			Accuracy: float64(correct) / float64(len(trainX)),
		}
		if len(valX) > 0 {
			stats.ValLoss, stats.ValAccuracy, _ = m.Evaluate(valX, valY)
		}
		history.Epochs = append(history.Epochs, stats)

		logger.Info("Epoch complete", logging.Fields{
			"epoch":        epoch,
			"loss":         stats.Loss,
			"accuracy":     stats.Accuracy,
			"val_loss":     stats.ValLoss,
			"val_accuracy": stats.ValAccuracy,
		})
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(stats)
		}
	}

	history.OptimizerStep = opt.Steps()
	return history, nil
}

// Evaluate returns mean cross-entropy and accuracy over x with one-hot y
func (m *Model) Evaluate(x, y [][]float64) (loss, accuracy float64, err error) {
	if err := m.checkTargets(x, y); err != nil {
		return 0, 0, err
	}

	var correct int
	for i := range x {
		p := m.forward(x[i], nil)
		loss += crossEntropy(p, y[i])
		if common.ArgMax(p) == common.ArgMax(y[i]) {
			correct++
		}
	}
	n := float64(len(x))
	return loss / n, float64(correct) / n, nil
}

func (m *Model) checkTargets(x, y [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("no samples")
	}
	if len(x) != len(y) {
		return fmt.Errorf("%d samples but %d targets", len(x), len(y))
	}
	for i := range x {
		if len(x[i]) != m.input.Size() {
			return fmt.Errorf("%w: row %d has %d values, expected %d", ErrInputShape, i, len(x[i]), m.input.Size())
		}
		if len(y[i]) != m.NumClasses() {
			return fmt.Errorf("target %d has %d classes, expected %d", i, len(y[i]), m.NumClasses())
		}
	}
	return nil
}

// dropoutMasks draws the masks for every sample of a batch up front so that
// training is reproducible regardless of how samples are spread over workers.
// masks[sample][layer] is nil for layers that are not Dropout.
func (m *Model) dropoutMasks(rng *rand.Rand, batchSize int) [][][]float64 {
	masks := make([][][]float64, batchSize)
	for s := range masks {
		masks[s] = make([][]float64, len(m.layers))
		for i, l := range m.layers {
			d, ok := l.(*Dropout)
			if !ok || d.rate == 0 {
				continue
			}
			keep := 1.0 / (1.0 - d.rate)
			mask := make([]float64, d.shape.Size())
			for k := range mask {
				if rng.Float64() >= d.rate {
					mask[k] = keep
				}
			}
			masks[s][i] = mask
		}
	}
	return masks
}

func crossEntropy(p, target []float64) float64 {
	loss := 0.0
	for k, t := range target {
		if t == 0 {
			continue
		}
		loss -= t * math.Log(common.Clamp(p[k], lossEpsilon, 1-lossEpsilon))
	}
	return loss
}

// gradientPool computes per-sample gradients for a batch on a fixed set of
// goroutines. Each worker owns a contiguous slice of the batch and its own
// accumulator; accumulators are summed in worker order so the result does not
// depend on scheduling.
type gradientPool struct {
	model   *Model
	workers int
	accum   []gradients
}

func newGradientPool(m *Model, workers int) *gradientPool {
	accum := make([]gradients, workers)
	for i := range accum {
		accum[i] = m.newGradients()
	}
	return &gradientPool{model: m, workers: workers, accum: accum}
}

// run fills out with the summed gradient of the batch and returns the summed
// loss and the number of correct predictions
func (p *gradientPool) run(x, y [][]float64, batch []int, masks [][][]float64, out gradients) (float64, int) {
	n := len(batch)
	workers := min(p.workers, n)
	chunk := (n + workers - 1) / workers

	losses := make([]float64, workers)
	hits := make([]int, workers)

	var wg sync.WaitGroup
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			continue
		}

		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			acc := p.accum[w]
			acc.zero()

			traces := make([]trace, len(p.model.layers))
			for s := lo; s < hi; s++ {
				idx := batch[s]
				clear(traces)
				for i, mask := range masks[s] {
					traces[i].mask = mask
				}

				probs := p.model.forward(x[idx], traces)
				losses[w] += crossEntropy(probs, y[idx])
				if common.ArgMax(probs) == common.ArgMax(y[idx]) {
					hits[w]++
				}

				grad := make([]float64, len(probs))
				for k := range probs {
					grad[k] = probs[k] - y[idx][k]
				}
				p.model.backward(grad, traces, acc)
			}
		}(w, lo, hi)
	}
	wg.Wait()

	out.zero()
	var loss float64
	var correct int
	for w := range workers {
		if w*chunk >= n {
			continue
		}
		out.add(p.accum[w])
		loss += losses[w]
		correct += hits[w]
	}
	return loss, correct
}
