// Package smoothlen implements the smoothing-length controller of spec
// §4.D: a bisection/secant root search that adjusts each active particle's
// h until its kernel-weighted neighbor count N_ngb lands inside
// [N*-Δ, N*+Δ], bracketing the search with (Left, Right) bounds and
// falling back to a Newton-like multiplicative step when only one side of
// the bracket is known.
package smoothlen

import (
	"math"

	"github.com/cpmech/sphcore/internal/sphchk"
	"github.com/cpmech/sphcore/kernel"
	"github.com/cpmech/sphcore/particle"
	"github.com/cpmech/sphcore/particlekind"
)

// growShrinkFactor is the multiplicative step (spec §4.D step 4) applied
// when only one side of the bracket is known and the Newton-like update
// isn't eligible.
const growShrinkFactor = 1.26

// newtonClampLow, newtonClampHigh bound the Newton-like multiplicative
// step spec §4.D names: [1/1.26, 1.26].
const (
	newtonClampLow  = 1.0 / growShrinkFactor
	newtonClampHigh = growShrinkFactor
)

// Config is the subset of spec §6's consumed parameter bundle the
// controller needs: N* (DesNumNgb), Δ (MaxNumNgbDeviation) and H_min
// (MinGasHsml), plus the spatial dimensionality the Newton step scales by.
type Config struct {
	DesNumNgb          float64
	MaxNumNgbDeviation float64
	MinGasHsml         float64
	Dim                kernel.Dim
}

// Validate checks the preconditions spec §7's ConfigError names: N* must
// exceed Δ (otherwise the DONE tolerance band is empty or inverted), both
// must be positive, and H_min must be non-negative.
func (c Config) Validate() error {
	if c.DesNumNgb <= 0 {
		return sphchk.ConfigError("DesNumNgb must be positive, got %g", c.DesNumNgb)
	}
	if c.MaxNumNgbDeviation <= 0 {
		return sphchk.ConfigError("MaxNumNgbDeviation must be positive, got %g", c.MaxNumNgbDeviation)
	}
	if c.DesNumNgb <= c.MaxNumNgbDeviation {
		return sphchk.ConfigError("DesNumNgb (%g) must exceed MaxNumNgbDeviation (%g)", c.DesNumNgb, c.MaxNumNgbDeviation)
	}
	if c.MinGasHsml < 0 {
		return sphchk.ConfigError("MinGasHsml must be non-negative, got %g", c.MinGasHsml)
	}
	return nil
}

// Outcome is the per-particle result of one controller step.
type Outcome struct {
	Done       bool
	ClampedMin bool // true if DONE was reached only because h hit H_min
}

// Update runs one iteration of spec §4.D's decision procedure for a single
// particle. p.NNgb and p.Bracket must already reflect the just-completed
// density pass; Update mutates p.Hsml, p.Bracket and
// p.DensityIterationDone in place.
//
// fFactorAtPreviousH is the dρ/dh-derived f_ij factor computed at the h
// the just-finished density pass actually used — spec §9's open question
// notes this is necessarily stale by one iteration ("computed at the
// *previous* h"); the 1.26 clamp is the spec's own bound on the resulting
// overshoot, not something this function tries to correct.
func Update(cfg Config, p *particle.Particle, fFactorAtPreviousH float64) (Outcome, error) {
	if p.DensityIterationDone {
		sphchk.InvariantViolation("particle %d scheduled for another smoothing-length iteration while DensityIterationDone was already set", p.ID)
	}

	nstar, delta, hmin := cfg.DesNumNgb, cfg.MaxNumNgbDeviation, cfg.MinGasHsml
	diff := p.NNgb - nstar

	// step 1
	if math.Abs(diff) <= delta {
		p.DensityIterationDone = true
		return Outcome{Done: true}, nil
	}
	if diff > delta && p.Hsml <= 1.01*hmin {
		p.DensityIterationDone = true
		return Outcome{Done: true, ClampedMin: true}, nil
	}

	// step 2
	if p.Bracket.Collapsed() {
		p.DensityIterationDone = true
		return Outcome{Done: true}, nil
	}

	// step 3
	if diff < -delta {
		if p.Hsml > p.Bracket.Left {
			p.Bracket.Left = p.Hsml
		}
	}
	if diff > delta {
		if p.Bracket.Right == 0 || p.Hsml < p.Bracket.Right {
			p.Bracket.Right = p.Hsml
		}
	}

	// step 4
	left, right := p.Bracket.Left, p.Bracket.Right
	var newH float64
	switch {
	case left > 0 && right > 0:
		newH = math.Cbrt((left*left*left + right*right*right) / 2)

	case left > 0 || right > 0:
		isGas := p.Kind == particlekind.Gas
		if isGas && math.Abs(diff) < 0.5*nstar {
			d := float64(cfg.Dim)
			f := 1 - (diff/(d*p.NNgb))*fFactorAtPreviousH
			if f < newtonClampLow {
				f = newtonClampLow
			} else if f > newtonClampHigh {
				f = newtonClampHigh
			}
			newH = p.Hsml * f
		} else if right == 0 {
			// only the lower bound is known: N_ngb was too low, grow.
			newH = p.Hsml * growShrinkFactor
		} else {
			// only the upper bound is known: N_ngb was too high, shrink.
			newH = p.Hsml / growShrinkFactor
		}

	default:
		sphchk.InvariantViolation("particle %d: neither bracket side is set but step 3 did not establish one", p.ID)
	}

	// step 5
	if newH < hmin {
		newH = hmin
	}
	p.Hsml = newH

	// step 6
	p.DensityIterationDone = false
	return Outcome{Done: false}, nil
}
