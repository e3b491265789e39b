package network

import (
	"fmt"
)

// MaxPool1D takes the maximum over non-overlapping windows of poolSize steps.
// Trailing steps that do not fill a window are dropped.
type MaxPool1D struct {
	poolSize int
	in, out  Shape
}

func NewMaxPool1D(in Shape, poolSize int) (*MaxPool1D, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("maxpool1d: pool size must be positive")
	}
	if in.Steps < poolSize {
		return nil, fmt.Errorf("maxpool1d: input %s shorter than pool size %d", in, poolSize)
	}
	return &MaxPool1D{
		poolSize: poolSize,
		in:       in,
		out:      Shape{Steps: in.Steps / poolSize, Channels: in.Channels},
	}, nil
}

func (p *MaxPool1D) Type() string       { return "maxpool1d" }
func (p *MaxPool1D) InputShape() Shape  { return p.in }
func (p *MaxPool1D) OutputShape() Shape { return p.out }
func (p *MaxPool1D) Params() []*Param   { return nil }

func (p *MaxPool1D) forward(in []float64, tr *trace) []float64 {
	ch := p.in.Channels
	out := make([]float64, p.out.Size())
	argmax := make([]int, p.out.Size())

	for t := 0; t < p.out.Steps; t++ {
		for c := 0; c < ch; c++ {
			best := (t*p.poolSize)*ch + c
			for j := 1; j < p.poolSize; j++ {
				idx := (t*p.poolSize+j)*ch + c
				if in[idx] > in[best] {
					best = idx
				}
			}
			out[t*ch+c] = in[best]
			argmax[t*ch+c] = best
		}
	}

	if tr != nil {
		tr.argmax = argmax
	}
	return out
}

func (p *MaxPool1D) backward(gradOut []float64, tr *trace, _ [][]float64) []float64 {
	gradIn := make([]float64, p.in.Size())
	for i, g := range gradOut {
		gradIn[tr.argmax[i]] += g
	}
	return gradIn
}

func (p *MaxPool1D) spec() LayerSpec {
	return LayerSpec{Type: p.Type(), PoolSize: p.poolSize}
}

// Flatten reshapes (steps, channels) to (1, steps*channels). The channels last
// layout means the data itself is unchanged.
type Flatten struct {
	in Shape
}

func NewFlatten(in Shape) *Flatten {
	return &Flatten{in: in}
}

func (f *Flatten) Type() string       { return "flatten" }
func (f *Flatten) InputShape() Shape  { return f.in }
func (f *Flatten) OutputShape() Shape { return Shape{Steps: 1, Channels: f.in.Size()} }
func (f *Flatten) Params() []*Param   { return nil }

func (f *Flatten) forward(in []float64, _ *trace) []float64 {
	return in
}

func (f *Flatten) backward(gradOut []float64, _ *trace, _ [][]float64) []float64 {
	return gradOut
}

func (f *Flatten) spec() LayerSpec {
	return LayerSpec{Type: f.Type()}
}

// Dropout zeroes a fraction of its inputs during training and scales the rest
// by 1/(1-rate). At inference it is the identity. The mask for each sample is
// supplied by the trainer through the trace.
type Dropout struct {
	rate  float64
	shape Shape
}

func NewDropout(in Shape, rate float64) (*Dropout, error) {
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("dropout: rate %.3f out of range [0, 1)", rate)
	}
	return &Dropout{rate: rate, shape: in}, nil
}

func (d *Dropout) Type() string       { return "dropout" }
func (d *Dropout) InputShape() Shape  { return d.shape }
func (d *Dropout) OutputShape() Shape { return d.shape }
func (d *Dropout) Params() []*Param   { return nil }

// Rate returns the fraction of units dropped during training
func (d *Dropout) Rate() float64 { return d.rate }

func (d *Dropout) forward(in []float64, tr *trace) []float64 {
	if tr == nil || tr.mask == nil {
		return in
	}
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = v * tr.mask[i]
	}
	return out
}

func (d *Dropout) backward(gradOut []float64, tr *trace, _ [][]float64) []float64 {
	if tr.mask == nil {
		return gradOut
	}
	gradIn := make([]float64, len(gradOut))
	for i, g := range gradOut {
		gradIn[i] = g * tr.mask[i]
	}
	return gradIn
}

func (d *Dropout) spec() LayerSpec {
	return LayerSpec{Type: d.Type(), Rate: d.rate}
}
