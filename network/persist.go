package network

import (
	"encoding/json"
	"fmt"
	"io"
)

// modelFormat identifies the JSON model file layout
const modelFormat = "sonido-emotion/sequential-v1"

// LayerSpec describes one layer in a saved model. Only the fields relevant to
// Type are set.
type LayerSpec struct {
	Type       string     `json:"type"`
	Filters    int        `json:"filters,omitempty"`
	KernelSize int        `json:"kernel_size,omitempty"`
	PoolSize   int        `json:"pool_size,omitempty"`
	Units      int        `json:"units,omitempty"`
	Rate       float64    `json:"rate,omitempty"`
	Activation Activation `json:"activation,omitempty"`
	Params     []*Param   `json:"params,omitempty"`
}

type modelFile struct {
	Format string      `json:"format"`
	Input  Shape       `json:"input_shape"`
	Layers []LayerSpec `json:"layers"`
}

// Save writes the architecture and weights as JSON
func (m *Model) Save(w io.Writer) error {
	f := modelFile{
		Format: modelFormat,
		Input:  m.input,
		Layers: make([]LayerSpec, len(m.layers)),
	}
	for i, l := range m.layers {
		spec := l.spec()
		spec.Params = l.Params()
		f.Layers[i] = spec
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Load rebuilds a model written by Save
func Load(r io.Reader) (*Model, error) {
	var f modelFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if f.Format != modelFormat {
		return nil, fmt.Errorf("unsupported model format %q", f.Format)
	}

	b := &builder{shape: f.Input}
	for i, spec := range f.Layers {
		l, err := buildLayer(b.shape, spec)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if err := loadParams(l, spec.Params); err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, spec.Type, err)
		}
		b.add(l, nil)
	}

	return NewModel(f.Input, b.layers...)
}

func buildLayer(in Shape, spec LayerSpec) (Layer, error) {
	switch spec.Type {
	case "conv1d":
		return NewConv1D(in, spec.Filters, spec.KernelSize, spec.Activation)
	case "maxpool1d":
		return NewMaxPool1D(in, spec.PoolSize)
	case "flatten":
		return NewFlatten(in), nil
	case "dense":
		return NewDense(in, spec.Units, spec.Activation)
	case "dropout":
		return NewDropout(in, spec.Rate)
	default:
		return nil, fmt.Errorf("unknown layer type %q", spec.Type)
	}
}

// loadParams copies saved values into the freshly built layer's parameters
// so the layer's matrix views stay attached to them
func loadParams(l Layer, saved []*Param) error {
	params := l.Params()
	if len(saved) != len(params) {
		return fmt.Errorf("expected %d parameter tensors, got %d", len(params), len(saved))
	}
	for i, p := range params {
		s := saved[i]
		if s == nil || s.Rows != p.Rows || s.Cols != p.Cols || len(s.Data) != len(p.Data) {
			return fmt.Errorf("parameter %s has wrong shape", p.Name)
		}
		copy(p.Data, s.Data)
	}
	return nil
}
