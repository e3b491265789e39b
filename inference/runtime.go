package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/RyanBlaney/sonido-emotion/artifacts"
	"github.com/RyanBlaney/sonido-emotion/config"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

// ModelVersion is reported with every prediction
const ModelVersion = "VoiceBasedEmotionClassifier_v1.0"

var (
	// ErrNotWAV is returned for payloads that do not start with a RIFF header
	ErrNotWAV = transcode.ErrNotWAV
	// ErrModelNotLoaded is returned when predicting without a runtime
	ErrModelNotLoaded = errors.New("model not loaded")
)

// AudioError wraps any failure to turn a request payload into a feature
// vector: bad base64, non-WAV data, unreadable or empty audio.
type AudioError struct {
	Err error
}

func (e *AudioError) Error() string {
	return "Error processing audio: " + e.Err.Error()
}

func (e *AudioError) Unwrap() error {
	return e.Err
}

// Prediction is the response body of a successful classification
type Prediction struct {
	Emotion              string       `json:"emotion"`
	Confidence           float64      `json:"confidence"`
	MentalHealth         MentalHealth `json:"mentalHealth"`
	Timestamp            *time.Time   `json:"timestamp"` // set by the client on confirmation
	RequiresConfirmation bool         `json:"requiresConfirmation"`
	ModelVersion         string       `json:"modelVersion"`
}

// Runtime holds the loaded artifacts and the feature pipeline. It is built
// once at startup, never modified afterwards, and safe for concurrent use.
type Runtime struct {
	bundle    *artifacts.Bundle
	extractor *features.Extractor
	emotions  []string
	tempDir   string
	logger    logging.Logger
}

// New builds a runtime from an already loaded bundle. Uploaded audio is
// staged in tempDir ("" means os.TempDir()).
func New(bundle *artifacts.Bundle, extractor *features.Extractor, tempDir string) (*Runtime, error) {
	if bundle == nil || extractor == nil {
		return nil, fmt.Errorf("runtime needs a bundle and an extractor")
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	if got, want := extractor.NumCoefficients(), bundle.Model.InputShape().Size(); got != want {
		return nil, fmt.Errorf("extractor produces %d coefficients but model expects %d", got, want)
	}

	return &Runtime{
		bundle:    bundle,
		extractor: extractor,
		emotions:  bundle.Encoder.Classes(),
		tempDir:   tempDir,
		logger: logging.WithFields(logging.Fields{
			"component": "inference",
		}),
	}, nil
}

// Load reads the artifacts in modelsDir and builds a runtime around them
func Load(modelsDir string, featureCfg config.FeatureConfig, tempDir string) (*Runtime, error) {
	bundle, err := artifacts.Load(modelsDir)
	if err != nil {
		return nil, err
	}
	extractor, err := features.NewExtractor(featureCfg)
	if err != nil {
		return nil, err
	}
	rt, err := New(bundle, extractor, tempDir)
	if err != nil {
		return nil, err
	}

	rt.logger.Info("Model loaded", logging.Fields{
		"models_dir":         modelsDir,
		"supported_emotions": rt.emotions,
	})
	return rt, nil
}

// Emotions returns the class labels in encoder order
func (r *Runtime) Emotions() []string {
	out := make([]string, len(r.emotions))
	copy(out, r.emotions)
	return out
}

// PredictBase64 decodes a base64 WAV payload and classifies it
func (r *Runtime) PredictBase64(ctx context.Context, payload string) (*Prediction, error) {
	r.logger.Info("Received audioData", logging.Fields{"length": len(payload)})

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, &AudioError{Err: fmt.Errorf("invalid base64: %w", err)}
	}
	return r.PredictWAV(ctx, data)
}

// PredictWAV classifies a complete WAV file held in memory. The bytes are
// staged in a temp file that is removed before returning, whatever the
// outcome.
func (r *Runtime) PredictWAV(ctx context.Context, data []byte) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !transcode.IsWAV(data) {
		return nil, &AudioError{Err: ErrNotWAV}
	}

	r.logger.Debug("Received WAV audio", logging.Fields{"bytes": len(data)})

	vec, err := r.extractStaged(data)
	if err != nil {
		return nil, &AudioError{Err: err}
	}

	r.logger.Info("Extracted features", logging.Fields{"shape": len(vec)})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.PredictFeatures(vec)
}

func (r *Runtime) extractStaged(data []byte) ([]float64, error) {
	tmp, err := os.CreateTemp(r.tempDir, "predict-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stage audio: %w", err)
	}

	return r.extractor.ExtractFile(path)
}

// PredictFeatures scales a raw feature vector and classifies it
func (r *Runtime) PredictFeatures(vec []float64) (*Prediction, error) {
	scaled, err := r.bundle.Scaler.TransformRow(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to scale features: %w", err)
	}

	idx, confidence, err := r.bundle.Model.Classify(scaled)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	emotion, err := r.bundle.Encoder.InverseTransform(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to decode class: %w", err)
	}

	r.logger.Info("Predicted emotion", logging.Fields{
		"emotion":    emotion,
		"confidence": confidence,
	})

	return &Prediction{
		Emotion:              emotion,
		Confidence:           confidence,
		MentalHealth:         Wellness(emotion),
		Timestamp:            nil,
		RequiresConfirmation: true,
		ModelVersion:         ModelVersion,
	}, nil
}

// decodeBase64 accepts standard base64 with or without padding, ignoring
// embedded whitespace
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
