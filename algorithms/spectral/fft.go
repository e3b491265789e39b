package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps go-dsp's real FFT, which handles non-power-of-2 sizes.
type FFT struct{}

func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of a real signal.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// Magnitudes writes |X[k]| for the len(dst) lowest bins of x's spectrum.
// dst must not be longer than x.
func (f *FFT) Magnitudes(x []float64, dst []float64) {
	if len(x) == 0 {
		return
	}
	spectrum := fft.FFTReal(x)
	for k := range dst {
		dst[k] = cmplx.Abs(spectrum[k])
	}
}
