package frontier

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// objective evaluates f at w and writes its gradient into grad.
type objective func(w, grad []float64) float64

// solverSettings bounds the projected gradient iterations.
type solverSettings struct {
	MaxIterations int
	Tolerance     float64
}

func (s solverSettings) withDefaults() solverSettings {
	if s.MaxIterations <= 0 {
		s.MaxIterations = 2000
	}
	if s.Tolerance <= 0 {
		s.Tolerance = 1e-10
	}
	return s
}

const (
	armijo       = 1e-4
	minStep      = 1e-12
	maxStep      = 1e12
	minLineScale = 1e-12
)

// minimizeSimplex minimizes f over {w : w >= 0, sum(w) = 1} with a spectral
// projected gradient method starting from w0. It always returns a feasible
// iterate; converged reports whether the projected gradient vanished.
func minimizeSimplex(f objective, w0 []float64, settings solverSettings) (w []float64, converged bool) {
	settings = settings.withDefaults()
	n := len(w0)
	if n == 0 {
		return nil, true
	}

	x := projectSimplex(w0)
	g := make([]float64, n)
	fx := f(x, g)

	trial := make([]float64, n)
	gTrial := make([]float64, n)
	d := make([]float64, n)
	s := make([]float64, n)
	y := make([]float64, n)

	step := 1.0
	for iter := 0; iter < settings.MaxIterations; iter++ {
		if projectedGradientNorm(x, g) < settings.Tolerance {
			return x, true
		}

		// d = P(x - step*g) - x
		floats.AddScaledTo(trial, x, -step, g)
		floats.SubTo(d, projectSimplex(trial), x)
		slope := floats.Dot(g, d)
		if slope >= 0 {
			step = 1
			floats.SubTo(d, projectSimplex(floats.AddScaledTo(trial, x, -1, g)), x)
			slope = floats.Dot(g, d)
			if slope >= 0 {
				return x, true
			}
		}

		lambda := 1.0
		var fTrial float64
		for {
			floats.AddScaledTo(trial, x, lambda, d)
			fTrial = f(trial, gTrial)
			if fTrial <= fx+armijo*lambda*slope {
				break
			}
			lambda /= 2
			if lambda < minLineScale {
				return x, false
			}
		}

		floats.SubTo(s, trial, x)
		floats.SubTo(y, gTrial, g)
		sy := floats.Dot(s, y)
		if sy <= 0 {
			step = maxStep
		} else {
			step = math.Min(maxStep, math.Max(minStep, floats.Dot(s, s)/sy))
		}

		copy(x, trial)
		copy(g, gTrial)
		fx = fTrial
	}
	return x, false
}

// projectedGradientNorm is the max-norm of P(x - g) - x.
func projectedGradientNorm(x, g []float64) float64 {
	v := make([]float64, len(x))
	floats.SubTo(v, x, g)
	p := projectSimplex(v)
	floats.Sub(p, x)
	return floats.Norm(p, math.Inf(1))
}

// projectSimplex returns the Euclidean projection of v onto the probability simplex.
func projectSimplex(v []float64) []float64 {
	n := len(v)
	u := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	cumulative := 0.0
	theta := 0.0
	for j := 0; j < n; j++ {
		cumulative += u[j]
		t := (cumulative - 1) / float64(j+1)
		if u[j]-t > 0 {
			theta = t
		}
	}

	out := make([]float64, n)
	for i, vi := range v {
		out[i] = math.Max(vi-theta, 0)
	}
	return out
}
