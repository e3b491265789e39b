package features

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/RyanBlaney/sonido-emotion/internal/atomicfile"
	"github.com/RyanBlaney/sonido-emotion/preprocessing"
)

// Dataset is the output of corpus extraction: one feature row and one encoded
// label per utterance, plus the encoder that produced the labels
type Dataset struct {
	Features        [][]float64                 `json:"features"`
	Labels          []int                       `json:"labels"`
	Encoder         *preprocessing.LabelEncoder `json:"encoder"`
	SampleRate      int                         `json:"sample_rate"`
	NumCoefficients int                         `json:"num_coefficients"`
	Sources         []string                    `json:"sources,omitempty"` // file each row came from
}

// Len returns the number of rows
func (ds *Dataset) Len() int {
	return len(ds.Features)
}

// Validate checks that rows, labels and encoder agree with each other
func (ds *Dataset) Validate() error {
	if len(ds.Features) == 0 {
		return fmt.Errorf("dataset has no rows")
	}
	if len(ds.Features) != len(ds.Labels) {
		return fmt.Errorf("dataset has %d rows but %d labels", len(ds.Features), len(ds.Labels))
	}
	if ds.Sources != nil && len(ds.Sources) != len(ds.Features) {
		return fmt.Errorf("dataset has %d rows but %d sources", len(ds.Features), len(ds.Sources))
	}
	if ds.Encoder == nil || ds.Encoder.NumClasses() == 0 {
		return fmt.Errorf("dataset has no label encoder")
	}
	if ds.NumCoefficients <= 0 {
		return fmt.Errorf("dataset has invalid coefficient count %d", ds.NumCoefficients)
	}

	for i, row := range ds.Features {
		if len(row) != ds.NumCoefficients {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), ds.NumCoefficients)
		}
	}
	for i, l := range ds.Labels {
		if l < 0 || l >= ds.Encoder.NumClasses() {
			return fmt.Errorf("label %d at row %d out of range [0, %d)", l, i, ds.Encoder.NumClasses())
		}
	}
	return nil
}

// Write encodes the dataset as JSON
func (ds *Dataset) Write(w io.Writer) error {
	return json.NewEncoder(w).Encode(ds)
}

// ReadDataset decodes and validates a dataset
func ReadDataset(r io.Reader) (*Dataset, error) {
	ds := &Dataset{}
	if err := json.NewDecoder(r).Decode(ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	return ds, nil
}

// SaveDataset validates ds and writes it to path atomically
func SaveDataset(path string, ds *Dataset) error {
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid dataset: %w", err)
	}
	if err := atomicfile.Write(path, ds.Write); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// LoadDataset reads a dataset written by SaveDataset
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return ReadDataset(f)
}
