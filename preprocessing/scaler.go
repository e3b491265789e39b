package preprocessing

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
)

// StandardScaler standardizes columns to zero mean and unit variance using
// statistics learned by Fit. Columns with zero variance are only centered.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
	// NumSamples is the number of rows seen by Fit
	NumSamples int `json:"num_samples"`
}

// FitStandardScaler fits a new scaler on x
func FitStandardScaler(x [][]float64) (*StandardScaler, error) {
	s := &StandardScaler{}
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s, nil
}

// Fit computes per-column mean and population standard deviation
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("cannot fit scaler on zero rows")
	}
	width := len(x[0])
	if width == 0 {
		return fmt.Errorf("cannot fit scaler on zero columns")
	}

	column := make([]float64, len(x))
	mean := make([]float64, width)
	scale := make([]float64, width)

	for j := range width {
		for i, row := range x {
			if len(row) != width {
				return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
			}
			column[i] = row[j]
		}
		m, std := common.PopMeanStdDev(column)
		mean[j] = m
		if std == 0 {
			std = 1.0
		}
		scale[j] = std
	}

	s.Mean = mean
	s.Scale = scale
	s.NumSamples = len(x)
	return nil
}

// NumFeatures returns the fitted width
func (s *StandardScaler) NumFeatures() int {
	return len(s.Mean)
}

// TransformRow standardizes a single row into a new slice
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, ErrNotFitted
	}
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("row has %d features, scaler expects %d", len(row), len(s.Mean))
	}

	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// Transform standardizes every row of x into a new matrix
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

func (s *StandardScaler) validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler has %d means and %d scales", len(s.Mean), len(s.Scale))
	}
	if slices.Contains(s.Scale, 0) {
		return fmt.Errorf("scaler contains a zero scale")
	}
	return nil
}

// Save writes the scaler as JSON
func (s *StandardScaler) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// LoadStandardScaler reads a scaler written by Save
func LoadStandardScaler(r io.Reader) (*StandardScaler, error) {
	s := &StandardScaler{}
	if err := json.NewDecoder(r).Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode scaler: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid scaler: %w", err)
	}
	return s, nil
}
