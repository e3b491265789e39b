package network

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierArchitecture(t *testing.T) {
	m, err := NewClassifier(40, 5, 42)
	require.NoError(t, err)

	expected := []struct {
		typ   string
		shape Shape
	}{
		{"conv1d", Shape{38, 64}},
		{"maxpool1d", Shape{19, 64}},
		{"conv1d", Shape{17, 128}},
		{"maxpool1d", Shape{8, 128}},
		{"flatten", Shape{1, 1024}},
		{"dense", Shape{1, 128}},
		{"dropout", Shape{1, 128}},
		{"dense", Shape{1, 5}},
	}
	require.Len(t, m.Layers(), len(expected))
	for i, want := range expected {
		assert.Equal(t, want.typ, m.Layers()[i].Type(), "layer %d", i)
		assert.Equal(t, want.shape, m.Layers()[i].OutputShape(), "layer %d", i)
	}

	assert.Equal(t, Shape{40, 1}, m.InputShape())
	assert.Equal(t, 5, m.NumClasses())
	assert.Equal(t, 256+24704+131200+645, m.NumParams())
	assert.Contains(t, m.Summary(), "total params: 156805")

	dropout, ok := m.Layers()[6].(*Dropout)
	require.True(t, ok)
	assert.Equal(t, 0.5, dropout.Rate())
}

func TestDefaultFitConfigMatchesTrainingRecipe(t *testing.T) {
	cfg := DefaultFitConfig()
	assert.Equal(t, 100, cfg.Epochs)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 0.1, cfg.ValidationSplit)
	assert.Equal(t, 0.001, cfg.LearningRate)
}

func TestClassifierRejectsShortInput(t *testing.T) {
	_, err := NewClassifier(4, 3, 1)
	assert.Error(t, err)

	_, err = NewClassifier(40, 0, 1)
	assert.Error(t, err)
}

func TestInitializationIsSeeded(t *testing.T) {
	a, err := NewClassifier(40, 3, 7)
	require.NoError(t, err)
	b, err := NewClassifier(40, 3, 7)
	require.NoError(t, err)
	c, err := NewClassifier(40, 3, 8)
	require.NoError(t, err)

	assert.Equal(t, a.Layers()[0].Params()[0].Data, b.Layers()[0].Params()[0].Data)
	assert.NotEqual(t, a.Layers()[0].Params()[0].Data, c.Layers()[0].Params()[0].Data)

	// glorot limit for the first conv: sqrt(6 / (3 + 192))
	limit := math.Sqrt(6.0 / 195.0)
	for _, w := range a.Layers()[0].Params()[0].Data {
		assert.LessOrEqual(t, math.Abs(w), limit)
	}
	assert.Equal(t, make([]float64, 64), a.Layers()[0].Params()[1].Data)
}

func randomInput(rng *rand.Rand, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	return x
}

func TestPredictIsDistributionAndConcurrent(t *testing.T) {
	m, err := NewClassifier(40, 4, 1)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	x := randomInput(rng, 40)

	want, err := m.Predict(x)
	require.NoError(t, err)
	require.Len(t, want, 4)
	sum := 0.0
	for _, p := range want {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.Predict(x)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()

	_, err = m.Predict(x[:39])
	assert.ErrorIs(t, err, ErrInputShape)

	idx, conf, err := m.Classify(x)
	require.NoError(t, err)
	assert.Equal(t, want[idx], conf)
}

// TestGradientsMatchFiniteDifferences checks backward against numerical
// derivatives of the cross-entropy loss on a small network
func TestGradientsMatchFiniteDifferences(t *testing.T) {
	in := Shape{Steps: 10, Channels: 1}
	conv, err := NewConv1D(in, 3, 3, ActivationReLU)
	require.NoError(t, err)
	pool, err := NewMaxPool1D(conv.OutputShape(), 2)
	require.NoError(t, err)
	conv2, err := NewConv1D(pool.OutputShape(), 2, 2, ActivationLinear)
	require.NoError(t, err)
	flat := NewFlatten(conv2.OutputShape())
	dense, err := NewDense(flat.OutputShape(), 3, ActivationSoftmax)
	require.NoError(t, err)

	m, err := NewModel(in, conv, pool, conv2, flat, dense)
	require.NoError(t, err)
	m.Initialize(3)
	// positive biases keep ReLU units away from the kink
	for i := range conv.bias.Data {
		conv.bias.Data[i] = 0.5
	}

	rng := rand.New(rand.NewPCG(5, 6))
	x := randomInput(rng, in.Size())
	y := []float64{0, 1, 0}

	traces := make([]trace, len(m.layers))
	probs := m.forward(x, traces)
	grad := make([]float64, len(probs))
	for k := range probs {
		grad[k] = probs[k] - y[k]
	}
	grads := m.newGradients()
	m.backward(grad, traces, grads)

	loss := func() float64 {
		return crossEntropy(m.forward(x, nil), y)
	}

	const h = 1e-6
	for li, l := range m.layers {
		for pi, p := range l.Params() {
			for k := range p.Data {
				orig := p.Data[k]
				p.Data[k] = orig + h
				plus := loss()
				p.Data[k] = orig - h
				minus := loss()
				p.Data[k] = orig

				numeric := (plus - minus) / (2 * h)
				assert.InDelta(t, numeric, grads[li][pi][k], 1e-5, "layer %d param %s[%d]", li, p.Name, k)
			}
		}
	}
}

// toyProblem puts a bump at a class-dependent position of a noisy signal
func toyProblem(n, classes int, seed uint64) ([][]float64, [][]float64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	x := make([][]float64, n)
	y := make([][]float64, n)
	for i := range n {
		c := i % classes
		row := make([]float64, 40)
		for j := range row {
			row[j] = 0.1 * rng.NormFloat64()
		}
		center := 5 + c*12
		for j := center - 2; j <= center+2; j++ {
			row[j] += 2.0
		}
		x[i] = row
		y[i] = make([]float64, classes)
		y[i][c] = 1
	}
	return x, y
}

func TestFitLearnsSeparableProblem(t *testing.T) {
	x, y := toyProblem(90, 3, 11)

	m, err := NewClassifier(40, 3, 42)
	require.NoError(t, err)

	cfg := DefaultFitConfig()
	cfg.Epochs = 15
	cfg.BatchSize = 8
	cfg.Workers = 3

	var seen []int
	cfg.OnEpoch = func(s EpochStats) { seen = append(seen, s.Epoch) }

	history, err := m.Fit(context.Background(), x, y, cfg)
	require.NoError(t, err)
	require.Len(t, history.Epochs, 15)
	assert.Equal(t, 81, history.TrainSamples)
	assert.Equal(t, 9, history.ValSamples)
	assert.Equal(t, 15*11, history.OptimizerStep)
	assert.Len(t, seen, 15)

	assert.Less(t, history.Last().Loss, history.Epochs[0].Loss)
	assert.GreaterOrEqual(t, history.Last().ValAccuracy, 0.9)

	testX, testY := toyProblem(30, 3, 99)
	_, acc, err := m.Evaluate(testX, testY)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.9)
}

func TestFitIsReproducible(t *testing.T) {
	x, y := toyProblem(40, 2, 3)
	cfg := DefaultFitConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 8
	cfg.Workers = 2

	run := func() (*Model, *History) {
		m, err := NewClassifier(40, 2, 42)
		require.NoError(t, err)
		h, err := m.Fit(context.Background(), x, y, cfg)
		require.NoError(t, err)
		return m, h
	}

	m1, h1 := run()
	m2, h2 := run()
	assert.Equal(t, h1.Epochs, h2.Epochs)

	p1, err := m1.Predict(x[0])
	require.NoError(t, err)
	p2, err := m2.Predict(x[0])
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestFitValidation(t *testing.T) {
	m, err := NewClassifier(40, 2, 1)
	require.NoError(t, err)
	x, y := toyProblem(4, 2, 1)

	cfg := DefaultFitConfig()
	cfg.ValidationSplit = 0.9
	_, err = m.Fit(context.Background(), x, y, cfg)
	assert.Error(t, err)

	_, err = m.Fit(context.Background(), x, y[:3], DefaultFitConfig())
	assert.Error(t, err)

	_, err = m.Fit(context.Background(), x, [][]float64{{1}, {1}, {1}, {1}}, DefaultFitConfig())
	assert.Error(t, err)
}

func TestFitStopsOnCancel(t *testing.T) {
	m, err := NewClassifier(40, 2, 1)
	require.NoError(t, err)
	x, y := toyProblem(20, 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history, err := m.Fit(ctx, x, y, DefaultFitConfig())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, history)
	assert.True(t, history.StoppedEarly)
	assert.Empty(t, history.Epochs)
}

func TestDropoutIsIdentityAtInference(t *testing.T) {
	d, err := NewDropout(Shape{1, 4}, 0.5)
	require.NoError(t, err)

	in := []float64{1, 2, 3, 4}
	assert.Equal(t, in, d.forward(in, nil))
	assert.Equal(t, in, d.forward(in, &trace{}))

	tr := &trace{mask: []float64{0, 2, 0, 2}}
	assert.Equal(t, []float64{0, 4, 0, 8}, d.forward(in, tr))
	assert.Equal(t, []float64{0, 2, 0, 2}, d.backward([]float64{1, 1, 1, 1}, tr, nil))

	_, err = NewDropout(Shape{1, 4}, 1)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, err := NewClassifier(40, 5, 9)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.NumParams(), loaded.NumParams())
	assert.Equal(t, m.InputShape(), loaded.InputShape())
	assert.Equal(t, 5, loaded.NumClasses())

	x := randomInput(rand.New(rand.NewPCG(1, 1)), 40)
	want, err := m.Predict(x)
	require.NoError(t, err)
	got, err := loaded.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	_, err := Load(bytes.NewBufferString(`{"format":"keras"}`))
	assert.Error(t, err)

	_, err = Load(bytes.NewBufferString(`{"format":"sonido-emotion/sequential-v1","input_shape":{"steps":40,"channels":1},"layers":[{"type":"lstm"}]}`))
	assert.Error(t, err)

	_, err = Load(bytes.NewBufferString(`{"format":"sonido-emotion/sequential-v1","input_shape":{"steps":1,"channels":4},"layers":[{"type":"dense","units":2,"activation":"softmax","params":[{"name":"kernel","rows":4,"cols":2,"data":[1]}]}]}`))
	assert.Error(t, err)

	_, err = Load(bytes.NewBufferString(`not json`))
	assert.Error(t, err)
}

func TestAdamFirstStepMovesByLearningRate(t *testing.T) {
	d, err := NewDense(Shape{1, 2}, 1, ActivationLinear)
	require.NoError(t, err)
	m, err := NewModel(Shape{1, 2}, d)
	require.NoError(t, err)

	g := m.newGradients()
	g[0][0][0] = 3
	g[0][0][1] = -0.5
	g[0][1][0] = 0

	opt := NewAdam(0.01)
	opt.Step(m, g)

	// the bias-corrected first step is lr * sign(g) for non-zero gradients
	assert.InDelta(t, -0.01, d.kernel.Data[0], 1e-6)
	assert.InDelta(t, 0.01, d.kernel.Data[1], 1e-6)
	assert.Equal(t, 0.0, d.bias.Data[0])
	assert.Equal(t, 1, opt.Steps())
}
