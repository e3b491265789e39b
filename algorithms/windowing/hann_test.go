package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicHannCoefficients(t *testing.T) {
	h := NewPeriodicHann(4)
	// 0.5*(1-cos(2*pi*n/4)) for n=0..3
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5}, h.GetCoefficients(), 1e-12)
	assert.Equal(t, "hann", h.GetType())
}

func TestSymmetricHannEndsAtZero(t *testing.T) {
	h := NewHann(5, true)
	c := h.GetCoefficients()
	assert.InDelta(t, 0.0, c[0], 1e-12)
	assert.InDelta(t, 0.0, c[4], 1e-12)
	assert.InDelta(t, 1.0, c[2], 1e-12)
}

func TestApplyInPlaceRejectsWrongLength(t *testing.T) {
	h := NewPeriodicHann(8)
	assert.Error(t, h.ApplyInPlace(make([]float64, 7)))

	signal := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	require.NoError(t, h.ApplyInPlace(signal))
	assert.Equal(t, h.GetCoefficients(), signal)
	assert.Nil(t, h.Apply(make([]float64, 3)))
}

func TestBesselI0(t *testing.T) {
	assert.InDelta(t, 1.0, BesselI0(0), 1e-15)
	assert.InDelta(t, 1.2660658777520082, BesselI0(1), 1e-12)
	assert.InDelta(t, 1093.5883545113745, BesselI0(9), 1e-8)
}

func TestSymmetricKaiser(t *testing.T) {
	k := NewKaiser(9, 8.6, true)
	c := k.GetCoefficients()
	require.Len(t, c, 9)

	assert.InDelta(t, 1.0, c[4], 1e-12)
	assert.InDelta(t, 1/BesselI0(8.6), c[0], 1e-12)
	for i := range 4 {
		assert.InDelta(t, c[i], c[8-i], 1e-12)
		assert.Less(t, c[i], c[i+1])
	}
	assert.Equal(t, "kaiser", k.GetType())
	assert.Equal(t, 8.6, k.GetBeta())

	assert.Nil(t, k.Apply(make([]float64, 3)))
	assert.Error(t, k.ApplyInPlace(make([]float64, 3)))
	assert.Empty(t, NewKaiser(0, 8.6, true).GetCoefficients())
}
