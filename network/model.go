package network

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
)

// ErrInputShape is returned when a sample does not match the model input
var ErrInputShape = errors.New("input does not match model shape")

// Model is a sequential stack of layers ending in a probability distribution.
// Predict does not mutate the model and may be called concurrently; Fit must
// not run concurrently with anything else on the same model.
type Model struct {
	input  Shape
	layers []Layer
}

// NewModel chains layers, checking that each layer's input shape matches the
// previous layer's output
func NewModel(input Shape, layers ...Layer) (*Model, error) {
	if input.Size() <= 0 {
		return nil, fmt.Errorf("model input shape %s is empty", input)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}

	shape := input
	for i, l := range layers {
		if l.InputShape() != shape {
			return nil, fmt.Errorf("layer %d (%s) expects input %s, got %s", i, l.Type(), l.InputShape(), shape)
		}
		shape = l.OutputShape()
	}

	return &Model{input: input, layers: layers}, nil
}

// ClassifierDropout is the dropout rate between the hidden and output dense layers
const ClassifierDropout = 0.5

// NewClassifier builds the emotion CNN for inputs of inputLen coefficients:
//
//	Conv1D(64, 3, relu) -> MaxPool1D(2) -> Conv1D(128, 3, relu) -> MaxPool1D(2)
//	-> Flatten -> Dense(128, relu) -> Dropout(0.5) -> Dense(numClasses, softmax)
//
// Kernels are Glorot-uniform initialized from seed; biases start at zero.
func NewClassifier(inputLen, numClasses int, seed uint64) (*Model, error) {
	if numClasses < 1 {
		return nil, fmt.Errorf("classifier needs at least one class")
	}

	b := &builder{shape: Shape{Steps: inputLen, Channels: 1}}
	b.add(NewConv1D(b.shape, 64, 3, ActivationReLU))
	b.add(NewMaxPool1D(b.shape, 2))
	b.add(NewConv1D(b.shape, 128, 3, ActivationReLU))
	b.add(NewMaxPool1D(b.shape, 2))
	b.add(NewFlatten(b.shape), nil)
	b.add(NewDense(b.shape, 128, ActivationReLU))
	b.add(NewDropout(b.shape, ClassifierDropout))
	b.add(NewDense(b.shape, numClasses, ActivationSoftmax))
	if b.err != nil {
		return nil, fmt.Errorf("failed to build classifier for input length %d: %w", inputLen, b.err)
	}

	m, err := NewModel(Shape{Steps: inputLen, Channels: 1}, b.layers...)
	if err != nil {
		return nil, err
	}
	m.Initialize(seed)
	return m, nil
}

// builder threads the running output shape through layer constructors and
// keeps the first error
type builder struct {
	shape  Shape
	layers []Layer
	err    error
}

func (b *builder) add(l Layer, err error) {
	if b.err != nil {
		return
	}
	if err != nil {
		b.err = err
		return
	}
	b.layers = append(b.layers, l)
	b.shape = l.OutputShape()
}

// Initialize re-draws every kernel from a generator seeded with seed
func (m *Model) Initialize(seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	for _, l := range m.layers {
		if li, ok := l.(initializer); ok {
			li.initialize(rng)
		}
	}
}

func (m *Model) InputShape() Shape {
	return m.input
}

// NumClasses is the width of the output distribution
func (m *Model) NumClasses() int {
	return m.layers[len(m.layers)-1].OutputShape().Size()
}

func (m *Model) Layers() []Layer {
	return m.layers
}

// NumParams counts trainable scalars
func (m *Model) NumParams() int {
	n := 0
	for _, l := range m.layers {
		for _, p := range l.Params() {
			n += len(p.Data)
		}
	}
	return n
}

// Summary renders one line per layer with its output shape and parameter count
func (m *Model) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-12s %-12s %s\n", "layer", "output", "params")
	for _, l := range m.layers {
		n := 0
		for _, p := range l.Params() {
			n += len(p.Data)
		}
		fmt.Fprintf(&sb, "%-12s %-12s %d\n", l.Type(), l.OutputShape(), n)
	}
	fmt.Fprintf(&sb, "total params: %d", m.NumParams())
	return sb.String()
}

// Predict returns the class distribution for one flat sample
func (m *Model) Predict(x []float64) ([]float64, error) {
	if len(x) != m.input.Size() {
		return nil, fmt.Errorf("%w: got %d values, expected %d", ErrInputShape, len(x), m.input.Size())
	}
	return m.forward(x, nil), nil
}

// PredictBatch runs Predict over each row
func (m *Model) PredictBatch(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		p, err := m.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Classify returns the most likely class index and its probability
func (m *Model) Classify(x []float64) (int, float64, error) {
	p, err := m.Predict(x)
	if err != nil {
		return -1, 0, err
	}
	idx := common.ArgMax(p)
	if idx < 0 {
		return -1, 0, fmt.Errorf("model produced no valid probabilities")
	}
	return idx, p[idx], nil
}

// forward runs one sample through the stack. When traces is non-nil it must
// hold one entry per layer and receives what backward needs.
func (m *Model) forward(x []float64, traces []trace) []float64 {
	out := x
	for i, l := range m.layers {
		var tr *trace
		if traces != nil {
			tr = &traces[i]
		}
		out = l.forward(out, tr)
	}
	return out
}

// backward propagates dLoss/dLogits from the last layer down, accumulating
// into grads
func (m *Model) backward(gradLogits []float64, traces []trace, grads gradients) {
	g := gradLogits
	for i := len(m.layers) - 1; i >= 0; i-- {
		g = m.layers[i].backward(g, &traces[i], grads[i])
	}
}

// gradients mirrors the model's parameters: layer -> param -> values
type gradients [][][]float64

func (m *Model) newGradients() gradients {
	g := make(gradients, len(m.layers))
	for i, l := range m.layers {
		params := l.Params()
		g[i] = make([][]float64, len(params))
		for j, p := range params {
			g[i][j] = make([]float64, len(p.Data))
		}
	}
	return g
}

func (g gradients) zero() {
	for _, layer := range g {
		for _, p := range layer {
			clear(p)
		}
	}
}

func (g gradients) add(other gradients) {
	for i, layer := range g {
		for j, p := range layer {
			src := other[i][j]
			for k := range p {
				p[k] += src[k]
			}
		}
	}
}

func (g gradients) scale(s float64) {
	for _, layer := range g {
		for _, p := range layer {
			for k := range p {
				p[k] *= s
			}
		}
	}
}
