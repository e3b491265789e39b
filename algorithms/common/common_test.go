package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopMeanStdDev(t *testing.T) {
	mean, std := PopMeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.0, std, 1e-12)

	mean, std = PopMeanStdDev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

func TestColumnMeans(t *testing.T) {
	got := ColumnMeans([][]float64{{1, 10}, {3, 20}})
	assert.Equal(t, []float64{2, 15}, got)
	assert.Empty(t, ColumnMeans(nil))
}

func TestArgMax(t *testing.T) {
	assert.Equal(t, 2, ArgMax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, ArgMax([]float64{0.5, 0.5}))
	assert.Equal(t, 1, ArgMax([]float64{math.NaN(), 0.3}))
	assert.Equal(t, -1, ArgMax(nil))
}

func TestResampleLength(t *testing.T) {
	interp := NewInterpolator(Linear)
	signal := make([]float64, 48000)

	assert.Len(t, interp.ResampleSignal(signal, 48000, 22050), 22050)
	assert.Len(t, interp.ResampleSignal(signal[:3], 16000, 22050), 5)
	assert.Len(t, interp.ResampleSignal(signal, 22050, 22050), 48000)
}

func TestResamplePreservesLinearRamp(t *testing.T) {
	signal := make([]float64, 100)
	for i := range signal {
		signal[i] = float64(i)
	}

	for _, method := range []InterpolationType{Linear, Cubic} {
		out := NewInterpolator(method).ResampleSignal(signal, 10, 20)
		assert.Len(t, out, 200)
		assert.InDelta(t, 10.5, out[21], 1e-9)
	}
}

func TestParseInterpolation(t *testing.T) {
	for name, want := range map[string]InterpolationType{
		"":       Sinc,
		"high":   Sinc,
		"sinc":   Sinc,
		"cubic":  Cubic,
		"linear": Linear,
		"fast":   Linear,
	} {
		m, ok := ParseInterpolation(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, m, name)
	}

	_, ok := ParseInterpolation("nearest")
	assert.False(t, ok)
}

func sineAt(freq float64, rate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// interiorRMS skips the edges, where the truncated signal rings
func interiorRMS(x []float64, edge int) float64 {
	x = x[edge : len(x)-edge]
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestDownsamplingRemovesContentAboveNyquist(t *testing.T) {
	// 15 kHz cannot be represented at 22050 Hz and must not fold back to 7050 Hz
	signal := sineAt(15000, 48000, 48000)
	require.InDelta(t, 0.3536, interiorRMS(signal, 0), 1e-3)

	for _, method := range []InterpolationType{Sinc, Linear, Cubic} {
		out := NewInterpolator(method).ResampleSignal(signal, 48000, 22050)
		require.Len(t, out, 22050)
		assert.Less(t, interiorRMS(out, 200), 0.005, "method %d", method)
	}
}

func TestResamplingKeepsPassband(t *testing.T) {
	for _, rates := range [][2]int{{48000, 22050}, {44100, 22050}, {16000, 22050}, {8000, 22050}} {
		signal := sineAt(1000, rates[0], rates[0])
		out := NewInterpolator(Sinc).ResampleSignal(signal, rates[0], rates[1])
		assert.InDelta(t, 0.3536, interiorRMS(out, 200), 0.005, "%d -> %d", rates[0], rates[1])

		// sample-accurate against the analytic tone away from the edges
		want := sineAt(1000, rates[1], len(out))
		for i := 500; i < len(out)-500; i += 97 {
			assert.InDelta(t, want[i], out[i], 2e-3, "%d -> %d at %d", rates[0], rates[1], i)
		}
	}
}
