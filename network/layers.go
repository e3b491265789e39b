package network

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Shape is the per-sample shape of a layer's input or output. Data is laid out
// channels last: element (t, c) lives at index t*Channels + c.
type Shape struct {
	Steps    int `json:"steps"`
	Channels int `json:"channels"`
}

// Size returns the number of elements in one sample
func (s Shape) Size() int {
	return s.Steps * s.Channels
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d)", s.Steps, s.Channels)
}

// Activation is applied to a layer's pre-activation output
type Activation string

const (
	ActivationLinear  Activation = "linear"
	ActivationReLU    Activation = "relu"
	ActivationSoftmax Activation = "softmax"
)

func (a Activation) valid() bool {
	switch a {
	case ActivationLinear, ActivationReLU, ActivationSoftmax:
		return true
	}
	return false
}

// Param is a trainable tensor stored row-major in Data
type Param struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func newParam(name string, rows, cols int) *Param {
	return &Param{Name: name, Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// trace is what one sample's forward pass through a layer leaves behind for
// the backward pass. Traces are per sample, so layers themselves stay
// read-only during training and inference.
type trace struct {
	input  []float64
	output []float64
	argmax []int     // max pooling
	mask   []float64 // dropout, nil outside training
}

// Layer is one stage of a Model
type Layer interface {
	Type() string
	InputShape() Shape
	OutputShape() Shape
	Params() []*Param

	forward(in []float64, tr *trace) []float64
	// backward receives dLoss/dOutput and returns dLoss/dInput, accumulating
	// parameter gradients into grads (one slice per Param, same order)
	backward(gradOut []float64, tr *trace, grads [][]float64) []float64
	spec() LayerSpec
}

// initializer is implemented by layers with weights to initialize
type initializer interface {
	initialize(rng *rand.Rand)
}

// glorotUniform fills w with samples from U(-limit, limit),
// limit = sqrt(6 / (fanIn + fanOut))
func glorotUniform(rng *rand.Rand, w []float64, fanIn, fanOut int) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

func activate(act Activation, x []float64) {
	switch act {
	case ActivationReLU:
		for i, v := range x {
			if v < 0 {
				x[i] = 0
			}
		}
	case ActivationSoftmax:
		softmax(x)
	}
}

// activationGrad turns dLoss/dOutput into dLoss/dPreactivation in place.
// Softmax outputs are only trained with cross-entropy, whose gradient with
// respect to the logits is passed in directly, so softmax is a pass-through.
func activationGrad(act Activation, grad, output []float64) {
	if act != ActivationReLU {
		return
	}
	for i, out := range output {
		if out <= 0 {
			grad[i] = 0
		}
	}
}

func softmax(x []float64) {
	if len(x) == 0 {
		return
	}
	maxV := x[0]
	for _, v := range x[1:] {
		if v > maxV {
			maxV = v
		}
	}
	sum := 0.0
	for i, v := range x {
		x[i] = math.Exp(v - maxV)
		sum += x[i]
	}
	for i := range x {
		x[i] /= sum
	}
}
