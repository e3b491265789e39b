package preprocessing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// ErrNotFitted is returned by transforms on an encoder or scaler with no fitted state
var ErrNotFitted = errors.New("not fitted")

// LabelEncoder maps class names to indices 0..n-1. Classes are kept in sorted
// order, so the mapping depends only on the set of labels and not on the order
// in which they were seen.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

type labelEncoderFile struct {
	Classes []string `json:"classes"`
}

// NewLabelEncoder builds an encoder from an explicit class list. The list must
// be sorted and free of duplicates, as produced by Fit.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("label encoder needs at least one class")
	}
	if !slices.IsSorted(classes) {
		return nil, fmt.Errorf("label encoder classes must be sorted")
	}
	for i := 1; i < len(classes); i++ {
		if classes[i] == classes[i-1] {
			return nil, fmt.Errorf("duplicate class %q", classes[i])
		}
	}

	le := &LabelEncoder{classes: slices.Clone(classes)}
	le.buildIndex()
	return le, nil
}

// FitLabelEncoder fits a new encoder on labels
func FitLabelEncoder(labels []string) (*LabelEncoder, error) {
	le := &LabelEncoder{}
	if err := le.Fit(labels); err != nil {
		return nil, err
	}
	return le, nil
}

// Fit learns the sorted set of distinct labels
func (le *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("cannot fit label encoder on zero labels")
	}

	classes := slices.Clone(labels)
	slices.Sort(classes)
	le.classes = slices.Compact(classes)
	le.buildIndex()
	return nil
}

func (le *LabelEncoder) buildIndex() {
	le.index = make(map[string]int, len(le.classes))
	for i, c := range le.classes {
		le.index[c] = i
	}
}

// Transform encodes labels; unseen labels are an error
func (le *LabelEncoder) Transform(labels []string) ([]int, error) {
	if len(le.classes) == 0 {
		return nil, ErrNotFitted
	}

	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := le.index[l]
		if !ok {
			return nil, fmt.Errorf("unknown label %q", l)
		}
		out[i] = idx
	}
	return out, nil
}

// InverseTransform decodes a class index back to its label
func (le *LabelEncoder) InverseTransform(idx int) (string, error) {
	if len(le.classes) == 0 {
		return "", ErrNotFitted
	}
	if idx < 0 || idx >= len(le.classes) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", idx, len(le.classes))
	}
	return le.classes[idx], nil
}

// Classes returns a copy of the fitted classes in index order
func (le *LabelEncoder) Classes() []string {
	return slices.Clone(le.classes)
}

func (le *LabelEncoder) NumClasses() int {
	return len(le.classes)
}

func (le *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelEncoderFile{Classes: le.classes})
}

func (le *LabelEncoder) UnmarshalJSON(data []byte) error {
	var f labelEncoderFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	loaded, err := NewLabelEncoder(f.Classes)
	if err != nil {
		return fmt.Errorf("invalid label encoder: %w", err)
	}
	*le = *loaded
	return nil
}

// Save writes the encoder as JSON
func (le *LabelEncoder) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(le)
}

// LoadLabelEncoder reads an encoder written by Save
func LoadLabelEncoder(r io.Reader) (*LabelEncoder, error) {
	le := &LabelEncoder{}
	if err := json.NewDecoder(r).Decode(le); err != nil {
		return nil, fmt.Errorf("failed to decode label encoder: %w", err)
	}
	return le, nil
}

// ToCategorical expands class indices to one-hot rows of width numClasses
func ToCategorical(labels []int, numClasses int) ([][]float64, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("number of classes must be positive")
	}

	out := make([][]float64, len(labels))
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return nil, fmt.Errorf("label %d at row %d out of range [0, %d)", l, i, numClasses)
		}
		out[i] = make([]float64, numClasses)
		out[i][l] = 1.0
	}
	return out, nil
}
