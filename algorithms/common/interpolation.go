package common

import (
	"math"
)

// InterpolationType defines interpolation method
type InterpolationType int

const (
	Linear InterpolationType = iota
	Cubic
	// Sinc is band-limited interpolation with a Kaiser-windowed sinc kernel
	Sinc
)

// ParseInterpolation maps a quality name to an interpolation method.
// "fast" and "linear" select Linear, "cubic" selects Cubic, and "", "high",
// "best" and "sinc" select Sinc.
func ParseInterpolation(name string) (InterpolationType, bool) {
	switch name {
	case "fast", "linear":
		return Linear, true
	case "cubic":
		return Cubic, true
	case "", "high", "best", "sinc":
		return Sinc, true
	default:
		return Sinc, false
	}
}

// Interpolator provides interpolation at fractional sample positions
type Interpolator struct {
	method InterpolationType
}

// NewInterpolator creates a new interpolator
func NewInterpolator(method InterpolationType) *Interpolator {
	return &Interpolator{
		method: method,
	}
}

// Interpolate performs interpolation at fractional index. Indices outside the
// signal are clamped to the first or last sample. Sinc interpolation only
// applies to ResampleSignal; here it falls back to cubic.
func (interp *Interpolator) Interpolate(data []float64, index float64) float64 {
	if interp.method == Linear {
		return interp.linearInterpolate(data, index)
	}
	return interp.cubicInterpolate(data, index)
}

func (interp *Interpolator) linearInterpolate(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)

	return data[i] + frac*(data[i+1]-data[i])
}

// cubicInterpolate uses a Catmull-Rom spline over the four neighbouring samples
func (interp *Interpolator) cubicInterpolate(data []float64, index float64) float64 {
	if len(data) < 4 {
		return interp.linearInterpolate(data, index)
	}

	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)

	at := func(j int) float64 {
		if j < 0 {
			return data[0]
		}
		if j >= len(data) {
			return data[len(data)-1]
		}
		return data[j]
	}

	y0 := at(i - 1)
	y1 := at(i)
	y2 := at(i + 1)
	y3 := at(i + 2)

	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return a0*frac*frac*frac + a1*frac*frac + a2*frac + a3
}

// ResampleSignal resamples a signal to a new sample rate. The output holds
// ceil(len(signal) * targetRate / originalRate) samples. Content above the
// lower of the two Nyquist frequencies is removed first, whatever the method,
// so downsampling does not alias.
func (interp *Interpolator) ResampleSignal(signal []float64, originalRate, targetRate int) []float64 {
	if len(signal) == 0 || originalRate <= 0 || targetRate <= 0 {
		return signal
	}

	if originalRate == targetRate {
		out := make([]float64, len(signal))
		copy(out, signal)
		return out
	}

	ratio := float64(originalRate) / float64(targetRate)
	newLength := int(math.Ceil(float64(len(signal)) * float64(targetRate) / float64(originalRate)))

	resampled := make([]float64, newLength)
	filter := newSincFilter(antiAliasCutoff(originalRate, targetRate))

	if interp.method == Sinc {
		for i := range resampled {
			resampled[i] = filter.at(signal, float64(i)*ratio)
		}
		return resampled
	}

	if targetRate < originalRate {
		signal = filter.lowPass(signal)
	}
	for i := range resampled {
		resampled[i] = interp.Interpolate(signal, float64(i)*ratio)
	}

	return resampled
}
