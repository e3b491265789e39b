// Package artifacts stores and loads the trained model, the feature scaler and
// the label encoder as one consistent bundle.
package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-emotion/internal/atomicfile"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/network"
	"github.com/RyanBlaney/sonido-emotion/preprocessing"
)

// File names inside the models directory
const (
	ModelFile   = "iesc_cnn_model.json"
	ScalerFile  = "scaler.json"
	EncoderFile = "label_encoder.json"
)

// ErrMissingArtifact is returned when one of the bundle files does not exist
var ErrMissingArtifact = errors.New("missing artifact")

// Bundle is the set of artifacts inference needs
type Bundle struct {
	Model   *network.Model
	Scaler  *preprocessing.StandardScaler
	Encoder *preprocessing.LabelEncoder
}

// Validate checks that the three artifacts fit together
func (b *Bundle) Validate() error {
	if b.Model == nil || b.Scaler == nil || b.Encoder == nil {
		return fmt.Errorf("bundle is incomplete")
	}
	if got, want := b.Scaler.NumFeatures(), b.Model.InputShape().Size(); got != want {
		return fmt.Errorf("scaler has %d features but model expects %d", got, want)
	}
	if got, want := b.Encoder.NumClasses(), b.Model.NumClasses(); got != want {
		return fmt.Errorf("label encoder has %d classes but model outputs %d", got, want)
	}
	return nil
}

// Save writes the bundle into dir, creating it if needed. Each file is
// replaced atomically.
func Save(dir string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{ModelFile, b.Model.Save},
		{ScalerFile, b.Scaler.Save},
		{EncoderFile, b.Encoder.Save},
	}
	for _, w := range writers {
		path := filepath.Join(dir, w.name)
		if err := atomicfile.Write(path, w.write); err != nil {
			return fmt.Errorf("failed to save %s: %w", w.name, err)
		}
	}

	logging.Info("Artifacts saved", logging.Fields{
		"component": "artifacts",
		"dir":       dir,
	})
	return nil
}

// Load reads and cross-checks the bundle in dir
func Load(dir string) (*Bundle, error) {
	b := &Bundle{}
	var err error

	if b.Model, err = load(dir, ModelFile, network.Load); err != nil {
		return nil, err
	}
	if b.Scaler, err = load(dir, ScalerFile, preprocessing.LoadStandardScaler); err != nil {
		return nil, err
	}
	if b.Encoder, err = load(dir, EncoderFile, preprocessing.LoadLabelEncoder); err != nil {
		return nil, err
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent artifacts in %s: %w", dir, err)
	}
	return b, nil
}

func load[T any](dir, name string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	path := filepath.Join(dir, name)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	v, err := decode(f)
	if err != nil {
		return zero, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return v, nil
}
