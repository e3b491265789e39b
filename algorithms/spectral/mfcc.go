package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogCompression selects how mel energies are compressed before the DCT
type LogCompression string

const (
	// LogNatural applies ln(max(mel, 1e-10)) per frame
	LogNatural LogCompression = "natural"
	// LogDecibel applies 10*log10 with a global top-dB floor across frames
	LogDecibel LogCompression = "db"
)

// MFCC computes Mel-Frequency Cepstral Coefficients
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	sampleRate      int
	lowFreq         float64
	highFreq        float64
	useLiftering    bool
	lifterCoeff     float64
	logCompression  LogCompression
	topDB           float64

	melScale    *MelScale
	power       *PowerSpectrum
	filterBank  [][]float64
	dctMatrix   [][]float64
	fftSize     int
	initialized bool
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int            `json:"num_coefficients"` // Number of MFCC coefficients (default: 13)
	NumMelFilters   int            `json:"num_mel_filters"`  // Number of mel filter bank filters (default: 26)
	LowFreq         float64        `json:"low_freq"`         // Low frequency bound (default: 0)
	HighFreq        float64        `json:"high_freq"`        // High frequency bound (default: sampleRate/2)
	UseLiftering    bool           `json:"use_liftering"`    // Apply sinusoidal liftering
	LifterCoeff     float64        `json:"lifter_coeff"`     // Liftering coefficient (default: 22)
	MelFormula      MelFormula     `json:"mel_formula"`      // HTK or Slaney
	NormalizeFilter bool           `json:"normalize_filter"` // Slaney area normalization of filters
	LogCompression  LogCompression `json:"log_compression"`  // "natural" (default) or "db"
	TopDB           float64        `json:"top_db"`           // dB floor below the peak, only for "db"
}

// MFCCResult contains MFCC computation results for a single frame
type MFCCResult struct {
	MFCC        []float64 `json:"mfcc"`         // MFCC coefficients
	MelSpectrum []float64 `json:"mel_spectrum"` // Mel spectrum used
	LogEnergy   float64   `json:"log_energy"`   // C0 before liftering
}

// NewMFCC creates a new MFCC computer with default parameters
func NewMFCC(sampleRate, numCoefficients int) *MFCC {
	params := MFCCParams{
		NumCoefficients: numCoefficients,
		NumMelFilters:   26,
		LowFreq:         0.0,
		HighFreq:        float64(sampleRate) / 2.0,
		UseLiftering:    true,
		LifterCoeff:     22.0,
		MelFormula:      MelHTK,
		LogCompression:  LogNatural,
	}
	return NewMFCCWithParams(sampleRate, params)
}

// NewMFCCWithParams creates a new MFCC computer with custom parameters
func NewMFCCWithParams(sampleRate int, params MFCCParams) *MFCC {
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = 13
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = 26
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}
	if params.LifterCoeff <= 0 {
		params.LifterCoeff = 22.0
	}
	if params.LogCompression == "" {
		params.LogCompression = LogNatural
	}

	melScale := &MelScale{formula: params.MelFormula, normalize: params.NormalizeFilter}

	return &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		sampleRate:      sampleRate,
		lowFreq:         params.LowFreq,
		highFreq:        params.HighFreq,
		useLiftering:    params.UseLiftering,
		lifterCoeff:     params.LifterCoeff,
		logCompression:  params.LogCompression,
		topDB:           params.TopDB,
		melScale:        melScale,
		power:           NewPowerSpectrum(),
	}
}

// Initialize prepares the MFCC computer for the given FFT size
func (mfcc *MFCC) Initialize(fftSize int) error {
	if fftSize <= 0 {
		return fmt.Errorf("invalid FFT size: %d", fftSize)
	}
	if mfcc.numCoefficients > mfcc.numMelFilters {
		return fmt.Errorf("cannot compute %d coefficients from %d mel filters", mfcc.numCoefficients, mfcc.numMelFilters)
	}

	mfcc.filterBank = mfcc.melScale.CreateMelFilterBank(
		mfcc.numMelFilters,
		fftSize,
		mfcc.sampleRate,
		mfcc.lowFreq,
		mfcc.highFreq,
	)

	if len(mfcc.filterBank) == 0 {
		return fmt.Errorf("failed to create mel filter bank")
	}

	mfcc.createDCTMatrix()

	mfcc.fftSize = fftSize
	mfcc.initialized = true
	return nil
}

func (mfcc *MFCC) ensureInitialized(numBins int) error {
	fftSize := (numBins - 1) * 2
	if mfcc.initialized && mfcc.fftSize == fftSize {
		return nil
	}
	if err := mfcc.Initialize(fftSize); err != nil {
		return fmt.Errorf("failed to initialize MFCC: %w", err)
	}
	return nil
}

// Compute calculates MFCC coefficients from a single magnitude spectrum.
// With dB compression the top-dB floor is relative to this frame only.
func (mfcc *MFCC) Compute(magnitudeSpectrum []float64) (*MFCCResult, error) {
	if len(magnitudeSpectrum) < 2 {
		return nil, fmt.Errorf("magnitude spectrum too short: %d bins", len(magnitudeSpectrum))
	}
	if err := mfcc.ensureInitialized(len(magnitudeSpectrum)); err != nil {
		return nil, err
	}

	powerSpectrum := mfcc.power.Compute(magnitudeSpectrum)
	melSpectrum := mfcc.melScale.ApplyFilterBank(powerSpectrum, mfcc.filterBank)
	logMel := mfcc.compress([][]float64{melSpectrum})[0]

	coeffs := mfcc.applyDCT(logMel)

	logEnergy := coeffs[0]

	if mfcc.useLiftering {
		coeffs = mfcc.applyLiftering(coeffs)
	}

	return &MFCCResult{
		MFCC:        coeffs,
		MelSpectrum: melSpectrum,
		LogEnergy:   logEnergy,
	}, nil
}

// ComputeFrames processes a whole magnitude spectrogram (time x frequency) and
// returns one coefficient vector per frame
func (mfcc *MFCC) ComputeFrames(spectrogram [][]float64) ([][]float64, error) {
	if len(spectrogram) == 0 {
		return [][]float64{}, nil
	}
	if len(spectrogram[0]) < 2 {
		return nil, fmt.Errorf("magnitude spectrum too short: %d bins", len(spectrogram[0]))
	}
	if err := mfcc.ensureInitialized(len(spectrogram[0])); err != nil {
		return nil, err
	}

	melFrames := make([][]float64, len(spectrogram))
	for t, magnitudeSpectrum := range spectrogram {
		if len(magnitudeSpectrum) != len(spectrogram[0]) {
			return nil, fmt.Errorf("frame %d has %d bins, expected %d", t, len(magnitudeSpectrum), len(spectrogram[0]))
		}
		powerSpectrum := mfcc.power.Compute(magnitudeSpectrum)
		melFrames[t] = mfcc.melScale.ApplyFilterBank(powerSpectrum, mfcc.filterBank)
	}

	logMel := mfcc.compress(melFrames)

	mfccFrames := make([][]float64, len(logMel))
	for t, frame := range logMel {
		coeffs := mfcc.applyDCT(frame)
		if mfcc.useLiftering {
			coeffs = mfcc.applyLiftering(coeffs)
		}
		mfccFrames[t] = coeffs
	}

	return mfccFrames, nil
}

func (mfcc *MFCC) compress(melFrames [][]float64) [][]float64 {
	if mfcc.logCompression == LogDecibel {
		return mfcc.power.ToDecibels(melFrames, 1.0, 1e-10, mfcc.topDB)
	}

	out := make([][]float64, len(melFrames))
	for t, frame := range melFrames {
		out[t] = make([]float64, len(frame))
		for i, mel := range frame {
			out[t][i] = math.Log(math.Max(mel, 1e-10))
		}
	}
	return out
}

// createDCTMatrix creates the orthonormal DCT-II matrix
func (mfcc *MFCC) createDCTMatrix() {
	mfcc.dctMatrix = make([][]float64, mfcc.numCoefficients)

	for k := 0; k < mfcc.numCoefficients; k++ {
		mfcc.dctMatrix[k] = make([]float64, mfcc.numMelFilters)

		scale := math.Sqrt(2.0 / float64(mfcc.numMelFilters))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(mfcc.numMelFilters))
		}

		for n := 0; n < mfcc.numMelFilters; n++ {
			mfcc.dctMatrix[k][n] = scale * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(mfcc.numMelFilters))
		}
	}
}

func (mfcc *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	coeffs := make([]float64, mfcc.numCoefficients)
	for k, row := range mfcc.dctMatrix {
		coeffs[k] = floats.Dot(row, logMelSpectrum)
	}
	return coeffs
}

// applyLiftering applies sinusoidal liftering to enhance higher-order coefficients
func (mfcc *MFCC) applyLiftering(mfccCoeffs []float64) []float64 {
	liftered := make([]float64, len(mfccCoeffs))

	for i, coeff := range mfccCoeffs {
		if i == 0 {
			liftered[i] = coeff
			continue
		}
		lifter := 1.0 + (mfcc.lifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/mfcc.lifterCoeff)
		liftered[i] = coeff * lifter
	}

	return liftered
}

// GetFilterBank returns the mel filter bank
func (mfcc *MFCC) GetFilterBank() [][]float64 {
	return mfcc.filterBank
}

// GetParams returns the current MFCC parameters
func (mfcc *MFCC) GetParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: mfcc.numCoefficients,
		NumMelFilters:   mfcc.numMelFilters,
		LowFreq:         mfcc.lowFreq,
		HighFreq:        mfcc.highFreq,
		UseLiftering:    mfcc.useLiftering,
		LifterCoeff:     mfcc.lifterCoeff,
		MelFormula:      mfcc.melScale.formula,
		NormalizeFilter: mfcc.melScale.normalize,
		LogCompression:  mfcc.logCompression,
		TopDB:           mfcc.topDB,
	}
}
