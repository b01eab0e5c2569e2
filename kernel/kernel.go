// Package kernel implements the compactly-supported smoothing kernel W(r,h)
// and its derivatives used by the density and gradient visitors.
//
// The functional form is a cubic spline. Any kernel satisfying the
// component-A contract (values/derivatives at u = r/h in [0,1], analytic
// consistency between the volume integral and the differential relations)
// can be substituted without touching callers, which is why the evaluator
// is exposed as a small value type rather than free functions keyed by a
// string name.
package kernel

import "math"

// Dim is the spatial dimensionality the normalisation constants are built
// for. Only 1, 2 and 3 are meaningful for a cubic-spline SPH kernel.
type Dim int

const (
	Dim1D Dim = 1
	Dim2D Dim = 2
	Dim3D Dim = 3
)

// norm returns the cubic-spline normalisation constant sigma_D such that
// int W dV = 1 when W is built from sigma_D * f(u) with f as below.
func norm(d Dim, h float64) float64 {
	switch d {
	case Dim1D:
		return 4.0 / (3.0 * h)
	case Dim2D:
		return 40.0 / (7.0 * math.Pi * h * h)
	default:
		return 8.0 / (math.Pi * h * h * h)
	}
}

// Cubic is a cubic-spline kernel descriptor bound to a smoothing length h.
// It is the "Kernel descriptor" of spec §3: h, 1/h, h³-scaled constants and
// the radial evaluator, all precomputed once per target particle.
type Cubic struct {
	D     Dim
	H     float64
	hinv  float64
	sigma float64
}

// New builds a kernel descriptor for smoothing length h and dimensionality d.
// Panics if h <= 0: a non-positive smoothing length is a caller invariant
// violation, not a recoverable condition (the caller must clamp to H_min
// before constructing the descriptor).
func New(d Dim, h float64) Cubic {
	if h <= 0 {
		panic("kernel: h must be positive")
	}
	return Cubic{D: d, H: h, hinv: 1.0 / h, sigma: norm(d, h)}
}

// shape evaluates the dimensionless cubic-spline shape function and its
// u-derivative at u = r/h in one pass, since every caller needs both.
func shape(u float64) (f, df float64) {
	switch {
	case u < 0.5:
		f = 1 - 6*u*u + 6*u*u*u
		df = -12*u + 18*u*u
	case u < 1.0:
		t := 1 - u
		f = 2 * t * t * t
		df = -6 * t * t
	default:
		return 0, 0
	}
	return
}

// W evaluates the kernel value at radial distance r.
func (k Cubic) W(r float64) float64 {
	u := r * k.hinv
	if u >= 1.0 {
		return 0
	}
	f, _ := shape(u)
	return k.sigma * f
}

// DWDr evaluates dW/dr at radial distance r.
func (k Cubic) DWDr(r float64) float64 {
	u := r * k.hinv
	if u >= 1.0 {
		return 0
	}
	_, df := shape(u)
	return k.sigma * df * k.hinv
}

// Volume returns V_kernel(h), the geometric volume of the kernel's compact
// support ball of radius h (spec §3's Glossary: N_ngb ≈ rho * V_kernel(h) /
// <m>). This is distinct from the normalisation integral int W dV = 1,
// which holds for any h precisely because sigma(h) is chosen to cancel the
// h-dependence of this volume; V_kernel(h) itself grows with h^D.
func (k Cubic) Volume() float64 {
	switch k.D {
	case Dim1D:
		return 2.0 * k.H
	case Dim2D:
		return math.Pi * k.H * k.H
	default:
		return (4.0 / 3.0) * math.Pi * k.H * k.H * k.H
	}
}

// DWDh evaluates dW/dh at radial distance r, used by the density visitor's
// dρ/dh accumulator (spec §4.C). Derived analytically from W = sigma(h) *
// f(r/h): dW/dh = dsigma/dh * f(u) + sigma * df/du * (-r/h^2).
func (k Cubic) DWDh(r float64) float64 {
	u := r * k.hinv
	if u >= 1.0 {
		return 0
	}
	f, df := shape(u)
	var dsigmadh float64
	switch k.D {
	case Dim1D:
		dsigmadh = -k.sigma * k.hinv
	case Dim2D:
		dsigmadh = -2 * k.sigma * k.hinv
	default:
		dsigmadh = -3 * k.sigma * k.hinv
	}
	return dsigmadh*f + k.sigma*df*(-r*k.hinv*k.hinv)
}
