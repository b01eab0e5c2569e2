package limiter

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/sphcore/particle"
)

// Test_limiter01 checks the ordinary clamp formula against a hand
// computation: M = min(dmax-value, value-dmin), c = M/(alpha*h_lim*|g|).
func Test_limiter01(tst *testing.T) {
	chk.PrintTitle("limiter01. ordinary clamp")
	alpha := 0.25
	grad := particle.Vec3{2, 0, 0}
	value, dmax, dmin, hsml, maxDist := 1.0, 1.2, 0.9, 1.0, 1.0

	got := Limit(alpha, grad, value, dmax, dmin, hsml, maxDist)

	m := math.Min(dmax-value, value-dmin)
	hlim := math.Max(hsml, maxDist)
	normG := math.Sqrt(grad.Norm2())
	c := m / (alpha * hlim * normG)
	expected := grad.Scale(c)
	chk.Scalar(tst, "gx", 1e-12, got[0], expected[0])
}

// Test_limiter02 reproduces spec §8 scenario 5: a checkerboard field has a
// tiny envelope margin relative to the raw gradient's extrapolation
// distance, so the limiter must damp the gradient down heavily rather than
// passing a wildly overshooting slope through.
func Test_limiter02(tst *testing.T) {
	chk.PrintTitle("limiter02. checkerboard envelope clamp")
	alpha := 0.25
	// raw gradient implies a swing of 100 over one smoothing length, but
	// the actual neighborhood only varies by +-0.05 around the value.
	grad := particle.Vec3{100, 0, 0}
	value, dmax, dmin, hsml, maxDist := 1.0, 1.05, 0.95, 1.0, 1.0

	got := Limit(alpha, grad, value, dmax, dmin, hsml, maxDist)
	gotNorm := math.Sqrt(got.Norm2())
	rawNorm := math.Sqrt(grad.Norm2())
	if gotNorm >= 0.1*rawNorm {
		tst.Fatalf("expected heavy damping, got |grad|=%g from raw |grad|=%g", gotNorm, rawNorm)
	}
}

// Test_limiter03 checks idempotence: re-applying the limiter to its own
// output must not shrink the gradient any further.
func Test_limiter03(tst *testing.T) {
	chk.PrintTitle("limiter03. idempotence")
	alpha := 0.3
	grad := particle.Vec3{5, -3, 1}
	value, dmax, dmin, hsml, maxDist := 2.0, 2.3, 1.7, 1.0, 1.0

	once := Limit(alpha, grad, value, dmax, dmin, hsml, maxDist)
	twice := Limit(alpha, once, value, dmax, dmin, hsml, maxDist)

	chk.Vector(tst, "limiter is idempotent", 1e-12, twice[:], once[:])
}

// Test_limiter04 checks the zero-gradient passthrough: nothing to
// overshoot, so the zero vector is returned unchanged without dividing by
// its own (zero) norm.
func Test_limiter04(tst *testing.T) {
	chk.PrintTitle("limiter04. zero gradient passthrough")
	got := Limit(0.25, particle.Vec3{}, 1.0, 1.5, 0.5, 1.0, 1.0)
	chk.Vector(tst, "unchanged", 1e-15, got[:], []float64{0, 0, 0})
}

// Test_limiter05 checks config validation rejects aggressiveness values
// outside spec §4.F's (0, 0.5] range and an inverted Alpha/AlphaHigh pair.
func Test_limiter05(tst *testing.T) {
	chk.PrintTitle("limiter05. config validation")
	if (Config{Alpha: 0, AlphaHigh: 0.5}).Validate() == nil {
		tst.Fatalf("expected validation error for alpha=0")
	}
	if (Config{Alpha: 0.6, AlphaHigh: 0.6}).Validate() == nil {
		tst.Fatalf("expected validation error for alpha>0.5")
	}
	if (Config{Alpha: 0.4, AlphaHigh: 0.25}).Validate() == nil {
		tst.Fatalf("expected validation error for AlphaHigh < Alpha")
	}
}

// Test_limiter06 checks alphaFor switches to AlphaHigh only once the
// condition number crosses the fixed 100 threshold spec §4.F names.
func Test_limiter06(tst *testing.T) {
	chk.PrintTitle("limiter06. condition-number-gated aggressiveness")
	cfg := Config{Alpha: 0.25, AlphaHigh: 0.5}
	if got := alphaFor(cfg, 50); got != cfg.Alpha {
		tst.Fatalf("expected base alpha below threshold, got %g", got)
	}
	if got := alphaFor(cfg, 150); got != cfg.AlphaHigh {
		tst.Fatalf("expected high alpha above threshold, got %g", got)
	}
}
