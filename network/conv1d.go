package network

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Conv1D is a stride 1, valid padding 1D convolution. The kernel is stored as
// a (kernelSize*inChannels, filters) matrix so each output step is one
// matrix-vector product with a contiguous window of the input.
type Conv1D struct {
	filters    int
	kernelSize int
	activation Activation
	in, out    Shape

	kernel     *Param
	bias       *Param
	kernelView *mat.Dense
}

// NewConv1D creates a convolution over inputs of shape in
func NewConv1D(in Shape, filters, kernelSize int, activation Activation) (*Conv1D, error) {
	if filters <= 0 || kernelSize <= 0 {
		return nil, fmt.Errorf("conv1d: filters and kernel size must be positive")
	}
	if in.Steps < kernelSize || in.Channels <= 0 {
		return nil, fmt.Errorf("conv1d: input %s too short for kernel size %d", in, kernelSize)
	}
	if !activation.valid() {
		return nil, fmt.Errorf("conv1d: unknown activation %q", activation)
	}

	c := &Conv1D{
		filters:    filters,
		kernelSize: kernelSize,
		activation: activation,
		in:         in,
		out:        Shape{Steps: in.Steps - kernelSize + 1, Channels: filters},
		kernel:     newParam("kernel", kernelSize*in.Channels, filters),
		bias:       newParam("bias", 1, filters),
	}
	c.kernelView = mat.NewDense(c.kernel.Rows, c.kernel.Cols, c.kernel.Data)
	return c, nil
}

func (c *Conv1D) Type() string       { return "conv1d" }
func (c *Conv1D) InputShape() Shape  { return c.in }
func (c *Conv1D) OutputShape() Shape { return c.out }
func (c *Conv1D) Params() []*Param   { return []*Param{c.kernel, c.bias} }

func (c *Conv1D) initialize(rng *rand.Rand) {
	glorotUniform(rng, c.kernel.Data, c.kernelSize*c.in.Channels, c.kernelSize*c.filters)
	clear(c.bias.Data)
}

func (c *Conv1D) window() int {
	return c.kernelSize * c.in.Channels
}

func (c *Conv1D) forward(in []float64, tr *trace) []float64 {
	win := c.window()
	inC := c.in.Channels
	out := make([]float64, c.out.Size())

	for t := 0; t < c.out.Steps; t++ {
		x := mat.NewVecDense(win, in[t*inC:t*inC+win])
		row := out[t*c.filters : (t+1)*c.filters]
		y := mat.NewVecDense(c.filters, row)
		y.MulVec(c.kernelView.T(), x)
		floats.Add(row, c.bias.Data)
	}
	activate(c.activation, out)

	if tr != nil {
		tr.input = in
		tr.output = out
	}
	return out
}

func (c *Conv1D) backward(gradOut []float64, tr *trace, grads [][]float64) []float64 {
	win := c.window()
	inC := c.in.Channels

	g := make([]float64, len(gradOut))
	copy(g, gradOut)
	activationGrad(c.activation, g, tr.output)

	dKernel := mat.NewDense(c.kernel.Rows, c.kernel.Cols, grads[0])
	dBias := grads[1]
	gradIn := make([]float64, c.in.Size())
	dx := mat.NewVecDense(win, nil)

	for t := 0; t < c.out.Steps; t++ {
		dyRow := g[t*c.filters : (t+1)*c.filters]
		dy := mat.NewVecDense(c.filters, dyRow)
		x := mat.NewVecDense(win, tr.input[t*inC:t*inC+win])

		dKernel.RankOne(dKernel, 1, x, dy)
		floats.Add(dBias, dyRow)

		dx.MulVec(c.kernelView, dy)
		floats.Add(gradIn[t*inC:t*inC+win], dx.RawVector().Data)
	}
	return gradIn
}

func (c *Conv1D) spec() LayerSpec {
	return LayerSpec{
		Type:       c.Type(),
		Filters:    c.filters,
		KernelSize: c.kernelSize,
		Activation: c.activation,
	}
}
