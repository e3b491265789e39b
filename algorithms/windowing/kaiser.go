package windowing

import (
	"fmt"
	"math"
)

// Kaiser is a Kaiser window. beta trades main-lobe width for side-lobe
// attenuation: about 8.6 gives roughly 90 dB of stopband rejection when the
// window tapers a sinc filter.
type Kaiser struct {
	size         int
	beta         float64
	symmetric    bool
	coefficients []float64
}

// NewKaiser creates a Kaiser window of size points
func NewKaiser(size int, beta float64, symmetric bool) *Kaiser {
	k := &Kaiser{
		size:      size,
		beta:      beta,
		symmetric: symmetric,
	}
	k.generate()
	return k
}

func (k *Kaiser) generate() {
	if k.size <= 0 {
		k.coefficients = []float64{}
		return
	}
	k.coefficients = make([]float64, k.size)
	if k.size == 1 {
		k.coefficients[0] = 1.0
		return
	}

	denominator := float64(k.size)
	if k.symmetric {
		denominator = float64(k.size - 1)
	}

	norm := BesselI0(k.beta)
	for i := range k.size {
		x := 2.0*float64(i)/denominator - 1.0
		k.coefficients[i] = BesselI0(k.beta*math.Sqrt(math.Max(0, 1-x*x))) / norm
	}
}

// BesselI0 is the zeroth-order modified Bessel function of the first kind,
// summed from its power series.
func BesselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	half := x / 2
	for i := 1; i < 64; i++ {
		f := half / float64(i)
		term *= f * f
		sum += term
		if term < 1e-16*sum {
			break
		}
	}
	return sum
}

// Apply returns a windowed copy of signal, or nil on a length mismatch
func (k *Kaiser) Apply(signal []float64) []float64 {
	if len(signal) != k.size {
		return nil
	}
	out := make([]float64, k.size)
	for i, c := range k.coefficients {
		out[i] = signal[i] * c
	}
	return out
}

func (k *Kaiser) ApplyInPlace(signal []float64) error {
	if len(signal) != k.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), k.size)
	}
	for i, c := range k.coefficients {
		signal[i] *= c
	}
	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (k *Kaiser) GetCoefficients() []float64 {
	coeffs := make([]float64, len(k.coefficients))
	copy(coeffs, k.coefficients)
	return coeffs
}

func (k *Kaiser) GetSize() int     { return k.size }
func (k *Kaiser) GetType() string  { return "kaiser" }
func (k *Kaiser) GetBeta() float64 { return k.beta }
