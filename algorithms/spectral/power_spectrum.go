package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PowerSpectrum provides power spectral density computation
type PowerSpectrum struct{}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// Compute computes power spectral density from magnitude spectrum
func (ps *PowerSpectrum) Compute(magnitudeSpectrum []float64) []float64 {
	if len(magnitudeSpectrum) == 0 {
		return []float64{}
	}

	power := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		power[i] = mag * mag
	}

	return power
}

// ComputeFrames processes multiple magnitude spectrum frames
func (ps *PowerSpectrum) ComputeFrames(spectrogram [][]float64) [][]float64 {
	if len(spectrogram) == 0 {
		return [][]float64{}
	}

	power := make([][]float64, len(spectrogram))

	for t, magnitudeSpectrum := range spectrogram {
		power[t] = ps.Compute(magnitudeSpectrum)
	}

	return power
}

// ToDecibels converts power frames to dB: 10*log10(max(amin, p)) - 10*log10(max(amin, ref)).
// When topDB > 0 every value is floored at (global max - topDB), where the max
// is taken over all frames. The input is not modified.
func (ps *PowerSpectrum) ToDecibels(frames [][]float64, ref, amin, topDB float64) [][]float64 {
	if len(frames) == 0 {
		return [][]float64{}
	}
	if amin <= 0 {
		amin = 1e-10
	}

	offset := 10.0 * math.Log10(math.Max(amin, math.Abs(ref)))
	peak := math.Inf(-1)

	db := make([][]float64, len(frames))
	for t, frame := range frames {
		db[t] = make([]float64, len(frame))
		for i, p := range frame {
			db[t][i] = 10.0*math.Log10(math.Max(amin, p)) - offset
		}
		if len(frame) > 0 {
			peak = math.Max(peak, floats.Max(db[t]))
		}
	}

	if topDB > 0 && !math.IsInf(peak, -1) {
		floor := peak - topDB
		for _, frame := range db {
			for i, v := range frame {
				if v < floor {
					frame[i] = floor
				}
			}
		}
	}

	return db
}
