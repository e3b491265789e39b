package spectral

import (
	"math"
)

// MelFormula selects the Hz <-> mel mapping
type MelFormula int

const (
	// MelHTK is the O'Shaughnessy formula used by HTK: 2595*log10(1+f/700)
	MelHTK MelFormula = iota
	// MelSlaney is the Auditory Toolbox mapping: linear below 1 kHz, logarithmic above
	MelSlaney
)

const (
	slaneyFSP       = 200.0 / 3.0
	slaneyMinLogHz  = 1000.0
	slaneyMinLogMel = slaneyMinLogHz / slaneyFSP
)

var slaneyLogStep = math.Log(6.4) / 27.0

// MelScale provides mel frequency conversion and filter bank construction
type MelScale struct {
	formula MelFormula
	// normalize scales each triangle by 2/(f_right-f_left) so filters have unit area
	normalize bool
}

// NewMelScale creates an HTK mel scale without filter normalization
func NewMelScale() *MelScale {
	return &MelScale{formula: MelHTK}
}

// NewSlaneyMelScale creates a Slaney mel scale with area-normalized filters,
// matching the defaults of the common Python audio toolchain
func NewSlaneyMelScale() *MelScale {
	return &MelScale{formula: MelSlaney, normalize: true}
}

// Formula returns the Hz <-> mel mapping in use
func (ms *MelScale) Formula() MelFormula {
	return ms.formula
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	if ms.formula == MelHTK {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}

	if hz < slaneyMinLogHz {
		return hz / slaneyFSP
	}
	return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	if ms.formula == MelHTK {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}

	if mel < slaneyMinLogMel {
		return slaneyFSP * mel
	}
	return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
}

// MelFrequencies returns numPoints frequencies in Hz equally spaced on the mel scale
func (ms *MelScale) MelFrequencies(numPoints int, lowFreq, highFreq float64) []float64 {
	if numPoints <= 0 {
		return []float64{}
	}
	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)

	freqs := make([]float64, numPoints)
	if numPoints == 1 {
		freqs[0] = ms.MelToHz(lowMel)
		return freqs
	}

	step := (highMel - lowMel) / float64(numPoints-1)
	for i := range freqs {
		freqs[i] = ms.MelToHz(lowMel + float64(i)*step)
	}
	return freqs
}

// CreateMelFilterBank creates a numFilters x (fftSize/2+1) bank of triangular
// filters. Triangles are evaluated on the exact bin center frequencies rather
// than on rounded bin indices, so narrow low-frequency filters never collapse.
func (ms *MelScale) CreateMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}
	if highFreq <= 0 || highFreq > float64(sampleRate)/2.0 {
		highFreq = float64(sampleRate) / 2.0
	}

	numBins := fftSize/2 + 1
	binFreqs := make([]float64, numBins)
	for k := range binFreqs {
		binFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	edges := ms.MelFrequencies(numFilters+2, lowFreq, highFreq)

	filterBank := make([][]float64, numFilters)
	for m := range numFilters {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		filter := make([]float64, numBins)

		for k, f := range binFreqs {
			var lower, upper float64
			if center > left {
				lower = (f - left) / (center - left)
			}
			if right > center {
				upper = (right - f) / (right - center)
			}
			filter[k] = math.Max(0, math.Min(lower, upper))
		}

		if ms.normalize && right > left {
			enorm := 2.0 / (right - left)
			for k := range filter {
				filter[k] *= enorm
			}
		}

		filterBank[m] = filter
	}

	return filterBank
}

// ApplyFilterBank applies mel filter bank to power spectrum
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))

	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}

	return melSpectrum
}
