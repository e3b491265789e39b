package network

import (
	"math"
)

// Adam optimizer with the bias correction folded into the step size
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
	m, v gradients
}

// NewAdam returns Adam with the usual defaults for everything but the rate
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
	}
}

// Step applies one update to model using the mean batch gradient g
func (a *Adam) Step(model *Model, g gradients) {
	if a.m == nil {
		a.m = model.newGradients()
		a.v = model.newGradients()
	}
	a.step++

	t := float64(a.step)
	lr := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for i, l := range model.layers {
		for j, p := range l.Params() {
			grad := g[i][j]
			m := a.m[i][j]
			v := a.v[i][j]
			for k := range p.Data {
				m[k] = a.Beta1*m[k] + (1-a.Beta1)*grad[k]
				v[k] = a.Beta2*v[k] + (1-a.Beta2)*grad[k]*grad[k]
				p.Data[k] -= lr * m[k] / (math.Sqrt(v[k]) + a.Epsilon)
			}
		}
	}
}

// Steps returns the number of updates applied so far
func (a *Adam) Steps() int {
	return a.step
}
