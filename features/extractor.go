package features

import (
	"fmt"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/algorithms/spectral"
	"github.com/RyanBlaney/sonido-emotion/algorithms/windowing"
	"github.com/RyanBlaney/sonido-emotion/config"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

// Extractor turns an utterance into a fixed-length MFCC mean vector.
// The same Extractor is used by the corpus extraction and by inference, so
// both see identical loading, framing and mel parameters.
//
// An Extractor is safe for concurrent use.
type Extractor struct {
	config  config.FeatureConfig
	decoder *transcode.Decoder
	window  *windowing.Hann
	stft    *spectral.STFT
	logger  logging.Logger
}

// NewExtractor validates cfg and builds the loading and analysis stages
func NewExtractor(cfg config.FeatureConfig) (*Extractor, error) {
	if cfg.NumCoefficients <= 0 {
		return nil, fmt.Errorf("number of coefficients must be positive")
	}
	if cfg.NumMelFilters < cfg.NumCoefficients {
		return nil, fmt.Errorf("cannot compute %d coefficients from %d mel filters", cfg.NumCoefficients, cfg.NumMelFilters)
	}
	if cfg.FFTSize <= 0 || cfg.HopSize <= 0 {
		return nil, fmt.Errorf("fft size and hop size must be positive")
	}

	decoder, err := transcode.NewDecoder(&transcode.DecoderConfig{
		TargetSampleRate: cfg.SampleRate,
		MaxDuration:      cfg.Duration,
		ResampleQuality:  cfg.ResampleQuality,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}

	return &Extractor{
		config:  cfg,
		decoder: decoder,
		window:  windowing.NewPeriodicHann(cfg.FFTSize),
		stft:    spectral.NewSTFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
	}, nil
}

// Config returns the feature configuration
func (e *Extractor) Config() config.FeatureConfig {
	return e.config
}

// NumCoefficients is the length of every vector the extractor returns
func (e *Extractor) NumCoefficients() int {
	return e.config.NumCoefficients
}

// ExtractFile loads the WAV file at path and returns its feature vector
func (e *Extractor) ExtractFile(path string) ([]float64, error) {
	audio, err := e.decoder.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return e.ExtractAudio(audio)
}

// ExtractBytes extracts features from an in-memory WAV file
func (e *Extractor) ExtractBytes(data []byte) ([]float64, error) {
	audio, err := e.decoder.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return e.ExtractAudio(audio)
}

// ExtractAudio computes the time-averaged MFCCs of already decoded audio
func (e *Extractor) ExtractAudio(audio *transcode.AudioData) ([]float64, error) {
	if audio == nil || len(audio.PCM) == 0 {
		return nil, transcode.ErrEmptyAudio
	}
	if audio.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}

	spectrogram, err := e.stft.ComputeCentered(audio.PCM, e.config.FFTSize, e.config.HopSize, audio.SampleRate, e.window)
	if err != nil {
		return nil, fmt.Errorf("STFT failed: %w", err)
	}

	// MFCC caches its filter bank on first use, so each call gets its own
	mfcc := spectral.NewMFCCWithParams(audio.SampleRate, spectral.MFCCParams{
		NumCoefficients: e.config.NumCoefficients,
		NumMelFilters:   e.config.NumMelFilters,
		LowFreq:         0.0,
		HighFreq:        float64(audio.SampleRate) / 2.0,
		UseLiftering:    false,
		MelFormula:      spectral.MelSlaney,
		NormalizeFilter: true,
		LogCompression:  spectral.LogDecibel,
		TopDB:           e.config.TopDB,
	})

	frames, err := mfcc.ComputeFrames(spectrogram.Magnitude)
	if err != nil {
		return nil, fmt.Errorf("MFCC failed: %w", err)
	}
	if len(frames) == 0 {
		return nil, transcode.ErrEmptyAudio
	}

	e.logger.Debug("Extracted MFCC frames", logging.Fields{
		"frames":       len(frames),
		"coefficients": e.config.NumCoefficients,
		"sample_rate":  audio.SampleRate,
	})

	return common.ColumnMeans(frames), nil
}
