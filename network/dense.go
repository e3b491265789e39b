package network

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer over a flat input. The kernel is stored as
// an (inputs, units) matrix.
type Dense struct {
	units      int
	activation Activation
	in, out    Shape

	kernel     *Param
	bias       *Param
	kernelView *mat.Dense
}

// NewDense creates a fully connected layer. The input must already be flat.
func NewDense(in Shape, units int, activation Activation) (*Dense, error) {
	if units <= 0 {
		return nil, fmt.Errorf("dense: units must be positive")
	}
	if in.Steps != 1 || in.Channels <= 0 {
		return nil, fmt.Errorf("dense: input %s is not flat", in)
	}
	if !activation.valid() {
		return nil, fmt.Errorf("dense: unknown activation %q", activation)
	}

	d := &Dense{
		units:      units,
		activation: activation,
		in:         in,
		out:        Shape{Steps: 1, Channels: units},
		kernel:     newParam("kernel", in.Channels, units),
		bias:       newParam("bias", 1, units),
	}
	d.kernelView = mat.NewDense(d.kernel.Rows, d.kernel.Cols, d.kernel.Data)
	return d, nil
}

func (d *Dense) Type() string       { return "dense" }
func (d *Dense) InputShape() Shape  { return d.in }
func (d *Dense) OutputShape() Shape { return d.out }
func (d *Dense) Params() []*Param   { return []*Param{d.kernel, d.bias} }

func (d *Dense) initialize(rng *rand.Rand) {
	glorotUniform(rng, d.kernel.Data, d.in.Channels, d.units)
	clear(d.bias.Data)
}

func (d *Dense) forward(in []float64, tr *trace) []float64 {
	out := make([]float64, d.units)
	y := mat.NewVecDense(d.units, out)
	y.MulVec(d.kernelView.T(), mat.NewVecDense(len(in), in))
	floats.Add(out, d.bias.Data)
	activate(d.activation, out)

	if tr != nil {
		tr.input = in
		tr.output = out
	}
	return out
}

func (d *Dense) backward(gradOut []float64, tr *trace, grads [][]float64) []float64 {
	g := make([]float64, len(gradOut))
	copy(g, gradOut)
	activationGrad(d.activation, g, tr.output)

	dy := mat.NewVecDense(d.units, g)
	dKernel := mat.NewDense(d.kernel.Rows, d.kernel.Cols, grads[0])
	dKernel.RankOne(dKernel, 1, mat.NewVecDense(len(tr.input), tr.input), dy)
	floats.Add(grads[1], g)

	gradIn := mat.NewVecDense(d.in.Channels, nil)
	gradIn.MulVec(d.kernelView, dy)
	return gradIn.RawVector().Data
}

func (d *Dense) spec() LayerSpec {
	return LayerSpec{
		Type:       d.Type(),
		Units:      d.units,
		Activation: d.activation,
	}
}
