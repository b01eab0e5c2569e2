package smoothlen

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/sphcore/kernel"
	"github.com/cpmech/sphcore/particle"
	"github.com/cpmech/sphcore/particlekind"
)

// nNgbAt models a monotonically increasing N_ngb(h) = c*h^3, the 3-D
// scaling a uniform particle distribution gives a cubic kernel's support
// volume; c picks the density level.
func nNgbAt(h, c float64) float64 {
	return c * h * h * h
}

// Test_smoothlen01 reproduces spec §8 scenario 3: starting from an h whose
// N_ngb is about twice the target, the controller must converge to within
// Δ in at most 8 iterations.
func Test_smoothlen01(tst *testing.T) {
	chk.PrintTitle("smoothlen01. convergence stress")
	cfg := Config{DesNumNgb: 50, MaxNumNgbDeviation: 2, MinGasHsml: 1e-6, Dim: kernel.Dim3D}
	if err := cfg.Validate(); err != nil {
		tst.Fatalf("config should validate: %v", err)
	}

	c := 50.0 / 8.0 // so that h=2 gives exactly N*
	// N_ngb(2.5) ≈ 97.7 ≈ 2*N*
	p := &particle.Particle{ID: 7, Kind: particlekind.Gas, Hsml: 2.5}

	const maxIter = 8
	iter := 0
	for ; iter < maxIter; iter++ {
		p.NNgb = nNgbAt(p.Hsml, c)
		out, err := Update(cfg, p, 1.0)
		if err != nil {
			tst.Fatalf("unexpected error: %v", err)
		}
		if out.Done {
			break
		}
	}
	if iter >= maxIter {
		tst.Fatalf("did not converge within %d iterations", maxIter)
	}
	if math.Abs(p.NNgb-cfg.DesNumNgb) > cfg.MaxNumNgbDeviation+1e-9 {
		tst.Fatalf("converged N_ngb=%g outside tolerance of %g+-%g", p.NNgb, cfg.DesNumNgb, cfg.MaxNumNgbDeviation)
	}
}

// Test_smoothlen02 reproduces spec §8 scenario 6: a particle whose
// neighbor count stays above N*+Δ even once h has been driven down to
// H_min must terminate DONE with the min-clamp flag, not loop forever.
func Test_smoothlen02(tst *testing.T) {
	chk.PrintTitle("smoothlen02. H_min clamp")
	cfg := Config{DesNumNgb: 10, MaxNumNgbDeviation: 1, MinGasHsml: 0.5, Dim: kernel.Dim3D}

	// c large enough that even at h=H_min, N_ngb is still way above N*+Δ.
	c := 1000.0
	p := &particle.Particle{ID: 3, Kind: particlekind.Gas, Hsml: 0.5}

	const maxIter = 20
	var out Outcome
	var err error
	for iter := 0; iter < maxIter; iter++ {
		p.NNgb = nNgbAt(p.Hsml, c)
		out, err = Update(cfg, p, 1.0)
		if err != nil {
			tst.Fatalf("unexpected error: %v", err)
		}
		if out.Done {
			break
		}
	}
	if !out.Done {
		tst.Fatalf("expected termination via H_min clamp")
	}
	if !out.ClampedMin {
		tst.Fatalf("expected ClampedMin flag set")
	}
	chk.Scalar(tst, "h stays at H_min", 1e-15, p.Hsml, cfg.MinGasHsml)
}

// Test_smoothlen03 checks Validate rejects a deviation that is not
// strictly smaller than the desired count.
func Test_smoothlen03(tst *testing.T) {
	chk.PrintTitle("smoothlen03. config validation")
	cfg := Config{DesNumNgb: 10, MaxNumNgbDeviation: 10, MinGasHsml: 0}
	if cfg.Validate() == nil {
		tst.Fatalf("expected validation error when Δ >= N*")
	}
}

// Test_smoothlen04 checks the Newton-branch clamp: an extreme f_ij
// factor must still respect the [1/1.26, 1.26] bound.
func Test_smoothlen04(tst *testing.T) {
	chk.PrintTitle("smoothlen04. newton step clamp")
	cfg := Config{DesNumNgb: 50, MaxNumNgbDeviation: 2, MinGasHsml: 1e-6, Dim: kernel.Dim3D}
	p := &particle.Particle{ID: 1, Kind: particlekind.Gas, Hsml: 1.0, NNgb: 40, Bracket: particle.Bracket{Left: 0.9}}
	out, err := Update(cfg, p, 1000.0)
	if err != nil {
		tst.Fatalf("unexpected error: %v", err)
	}
	if out.Done {
		tst.Fatalf("expected another iteration")
	}
	if p.Hsml > 1.0*newtonClampHigh+1e-12 || p.Hsml < 1.0*newtonClampLow-1e-12 {
		tst.Fatalf("h=%g outside the clamp band around previous h=1.0", p.Hsml)
	}
}
