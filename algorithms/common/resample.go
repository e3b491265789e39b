package common

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-emotion/algorithms/windowing"
)

const (
	sincZeroCrossings = 32   // kernel half-width, in zero crossings
	sincResolution    = 512  // table entries per zero crossing
	sincKaiserBeta    = 8.6  // ~90 dB stopband
	sincRolloff       = 0.95 // passband edge as a fraction of the output Nyquist
)

// sincTable holds the right half of a Kaiser-windowed sinc, sampled
// sincResolution times per zero crossing.
var sincTable = sync.OnceValue(func() []float64 {
	n := sincZeroCrossings * sincResolution
	window := windowing.NewKaiser(2*n+1, sincKaiserBeta, true).GetCoefficients()

	table := make([]float64, n+1)
	table[0] = 1
	for i := 1; i <= n; i++ {
		x := math.Pi * float64(i) / sincResolution
		table[i] = math.Sin(x) / x * window[n+i]
	}
	return table
})

// sincFilter is a windowed-sinc low-pass evaluated at arbitrary positions of
// a signal. cutoff is in cycles per input sample, at most 0.5.
type sincFilter struct {
	cutoff    float64
	halfWidth float64 // in input samples
	table     []float64
	weights   []float64
}

func newSincFilter(cutoff float64) *sincFilter {
	halfWidth := sincZeroCrossings / (2 * cutoff)
	return &sincFilter{
		cutoff:    cutoff,
		halfWidth: halfWidth,
		table:     sincTable(),
		weights:   make([]float64, int(2*halfWidth)+2),
	}
}

// antiAliasCutoff is the low-pass cutoff, in cycles per input sample, for a
// conversion from originalRate to targetRate
func antiAliasCutoff(originalRate, targetRate int) float64 {
	return 0.5 * sincRolloff * math.Min(1, float64(targetRate)/float64(originalRate))
}

// weight is the kernel value d input samples away from the centre
func (f *sincFilter) weight(d float64) float64 {
	pos := math.Abs(d) * 2 * f.cutoff * sincResolution
	i := int(pos)
	if i >= len(f.table)-1 {
		return 0
	}
	frac := pos - float64(i)
	return 2 * f.cutoff * (f.table[i] + frac*(f.table[i+1]-f.table[i]))
}

// at returns the filtered signal at fractional index t. Samples outside the
// signal count as zero.
func (f *sincFilter) at(signal []float64, t float64) float64 {
	lo := max(int(math.Ceil(t-f.halfWidth)), 0)
	hi := min(int(math.Floor(t+f.halfWidth)), len(signal)-1)
	if hi < lo {
		return 0
	}

	w := f.weights[:hi-lo+1]
	for j := range w {
		w[j] = f.weight(t - float64(lo+j))
	}
	return floats.Dot(signal[lo:hi+1], w)
}

// lowPass returns signal filtered on its own sample grid
func (f *sincFilter) lowPass(signal []float64) []float64 {
	out := make([]float64, len(signal))
	for i := range out {
		out[i] = f.at(signal, float64(i))
	}
	return out
}
