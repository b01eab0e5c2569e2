// Package limiter implements the slope limiter of spec §4.F: it scales a
// reconstructed gradient down so that the half-kernel reconstruction
// φ_i + ∇φ_i·(x_j−x_i)/2 never overshoots the locally observed min/max
// envelope, using an aggressiveness α that is itself raised when the
// gradient estimator's condition number flags its input as less trustworthy.
package limiter

import (
	"math"

	"github.com/cpmech/sphcore/internal/sphchk"
	"github.com/cpmech/sphcore/particle"
)

// condNumHighThreshold is spec §4.F's fixed boundary ("raised toward 0.5
// when the condition number exceeds 100") past which AlphaHigh replaces
// Alpha; not a tunable, since spec states it as a fixed constant of the
// algorithm rather than a named parameter of §6.
const condNumHighThreshold = 100.0

// Config binds the two aggressiveness levels spec §4.F names: Alpha is the
// base value used when the gradient estimator was well-conditioned,
// AlphaHigh the stricter value used when its condition number exceeded
// condNumHighThreshold. Spec gives 0.25/0.5 as the defaults.
type Config struct {
	Alpha     float64
	AlphaHigh float64
}

// Validate checks both aggressiveness levels lie in spec §4.F's (0, 0.5]
// range and that AlphaHigh is at least as aggressive as Alpha.
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 0.5 {
		return sphchk.ConfigError("Alpha must be in (0, 0.5], got %g", c.Alpha)
	}
	if c.AlphaHigh <= 0 || c.AlphaHigh > 0.5 {
		return sphchk.ConfigError("AlphaHigh must be in (0, 0.5], got %g", c.AlphaHigh)
	}
	if c.AlphaHigh < c.Alpha {
		return sphchk.ConfigError("AlphaHigh (%g) must be >= Alpha (%g)", c.AlphaHigh, c.Alpha)
	}
	return nil
}

// alphaFor picks the per-particle aggressiveness spec §4.F describes: the
// base level unless the estimator's condition number exceeds the fixed
// threshold, in which case the stricter level applies.
func alphaFor(cfg Config, condNum float64) float64 {
	if condNum > condNumHighThreshold {
		return cfg.AlphaHigh
	}
	return cfg.Alpha
}

// Limit is spec §4.F's per-field formula: let M = min(dmax-value,
// value-dmin) (the smaller of the two observed envelope margins), h_lim =
// max(hsml, maxDistance), and c = M / (alpha * h_lim * |grad|); grad is
// scaled by c when c < 1, left unchanged otherwise. A zero gradient or a
// zero h_lim has nothing to overshoot and passes through unchanged.
func Limit(alpha float64, grad particle.Vec3, value, dmax, dmin, hsml, maxDistance float64) particle.Vec3 {
	normG := math.Sqrt(grad.Norm2())
	if normG == 0 {
		return grad
	}
	hlim := math.Max(hsml, maxDistance)
	if hlim <= 0 {
		return grad
	}
	m := math.Min(dmax-value, value-dmin)
	if m < 0 {
		m = 0
	}
	c := m / (alpha * hlim * normG)
	if c < 1 {
		return grad.Scale(c)
	}
	return grad
}

// ApplyToParticle runs the limiter over every tracked scalar field and
// every component of the velocity gradient tensor, spec §4.F, mutating
// p.Gas's gradients in place. p.Gas must already hold the gradient
// estimate, condition number and min/max envelopes a gradient pass produced.
func ApplyToParticle(cfg Config, p *particle.Particle) {
	g := p.Gas
	alpha := alphaFor(cfg, g.CondNum)
	hsml, maxDist := p.Hsml, g.MaxDistance

	g.GradRho = Limit(alpha, g.GradRho, g.Density, g.DMax[particle.FieldRho], g.DMin[particle.FieldRho], hsml, maxDist)
	g.GradP = Limit(alpha, g.GradP, g.Pressure, g.DMax[particle.FieldP], g.DMin[particle.FieldP], hsml, maxDist)

	velFields := [3]int{particle.FieldVx, particle.FieldVy, particle.FieldVz}
	for k := 0; k < 3; k++ {
		f := velFields[k]
		g.GradV[k] = Limit(alpha, g.GradV[k], p.Vel[k], g.DMax[f], g.DMin[f], hsml, maxDist)
	}
}
