package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.StdDev(data, nil)
}

// PopMeanStdDev returns the mean and the population (ddof=0) standard deviation
func PopMeanStdDev(data []float64) (mean, std float64) {
	if len(data) == 0 {
		return 0.0, 0.0
	}
	return stat.PopMeanStdDev(data, nil)
}

// ColumnMeans averages a row-major matrix over its rows. All rows must share
// the width of the first one.
func ColumnMeans(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return []float64{}
	}

	means := make([]float64, len(rows[0]))
	for _, row := range rows {
		floats.Add(means, row)
	}
	floats.Scale(1.0/float64(len(rows)), means)

	return means
}

// ArgMax returns the index of the largest element, or -1 for an empty slice.
// NaN values are never selected.
func ArgMax(data []float64) int {
	best := -1
	for i, v := range data {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v > data[best] {
			best = i
		}
	}
	return best
}

// Clamp clamps value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
