package density

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/sphcore/capability"
	"github.com/cpmech/sphcore/kernel"
	"github.com/cpmech/sphcore/particle"
	"github.com/cpmech/sphcore/particlekind"
	"github.com/cpmech/sphcore/walk"
)

// recordingObserver is a test-only capability.DensityObserver that just
// counts how many pairs it was notified of.
type recordingObserver struct {
	calls int
}

func (o *recordingObserver) ObservePair(ctx capability.PairContext) {
	o.calls++
}

// Test_density01 reproduces spec §8 scenario 1: two equal-mass gas
// particles; density at particle i should be m*W(0,h) (self) plus the
// neighbor's contribution.
func Test_density01(tst *testing.T) {
	chk.PrintTitle("density01. two-particle symmetric density")
	v := New(kernel.Dim3D)
	h := 1.0
	q := walk.QueryRecord{Pos: particle.Vec3{0, 0, 0}, Hsml: h, Kind: particlekind.Gas}
	scratch := v.NewScratch(q)

	var acc walk.ResultRecord
	// self contribution (r=0)
	v.NeighborIter(q, &acc, scratch, walk.NeighborRef{Pos: particle.Vec3{0, 0, 0}, Mass: 1}, 0)
	// neighbor contribution (r=0.5)
	v.NeighborIter(q, &acc, scratch, walk.NeighborRef{Pos: particle.Vec3{0.5, 0, 0}, Mass: 1}, 0.5)

	k := kernel.New(kernel.Dim3D, h)
	expected := 1*k.W(0) + 1*k.W(0.5)
	chk.Scalar(tst, "rho", 1e-12, acc.Rho, expected)
}

// Test_density06 checks N_ngb against a hand computation through the real
// kernel.Cubic: N_ngb = Sum_j W(r_j,h) * V_kernel(h), with V_kernel the
// kernel's geometric support volume (not the h-independent int W dV = 1
// normalisation constant).
func Test_density06(tst *testing.T) {
	chk.PrintTitle("density06. N_ngb is a kernel-weighted volume count")
	v := New(kernel.Dim3D)
	h := 1.0
	q := walk.QueryRecord{Pos: particle.Vec3{0, 0, 0}, Hsml: h, Kind: particlekind.Gas}
	scratch := v.NewScratch(q)

	var acc walk.ResultRecord
	v.NeighborIter(q, &acc, scratch, walk.NeighborRef{Pos: particle.Vec3{0, 0, 0}, Mass: 1}, 0)
	v.NeighborIter(q, &acc, scratch, walk.NeighborRef{Pos: particle.Vec3{0.3, 0, 0}, Mass: 1}, 0.3)
	v.NeighborIter(q, &acc, scratch, walk.NeighborRef{Pos: particle.Vec3{0.6, 0, 0}, Mass: 1}, 0.6)

	k := kernel.New(kernel.Dim3D, h)
	vol := k.Volume()
	if vol <= 1.0 {
		tst.Fatalf("expected V_kernel(h=1) to exceed the trivial normalisation value 1, got %g", vol)
	}
	expected := (k.W(0) + k.W(0.3) + k.W(0.6)) * vol
	chk.Scalar(tst, "NNgb", 1e-12, acc.NNgb, expected)
}

// Test_density02 checks the f_ij clamp: when the bracketed term is <= -0.9
// the factor must be exactly 1, regardless of the accumulated dρ/dh.
func Test_density02(tst *testing.T) {
	chk.PrintTitle("density02. f_ij clamp")
	r := walk.ResultRecord{DRhoDh: -1000}
	_, _, _, f := Finalize(r, 1.0, 1.0, kernel.Dim3D)
	chk.Scalar(tst, "f_ij clamped", 1e-15, f, 1.0)
}

// Test_density03 checks the ordinary (non-clamped) f_ij branch against a
// direct hand computation.
func Test_density03(tst *testing.T) {
	chk.PrintTitle("density03. f_ij ordinary branch")
	rho, h, drdh := 2.0, 1.0, 0.5
	r := walk.ResultRecord{DRhoDh: drdh}
	_, _, _, f := Finalize(r, rho, h, kernel.Dim3D)
	bracket := (h / (3 * rho)) * drdh
	expected := 1.0 / (1.0 + bracket)
	chk.Scalar(tst, "f_ij", 1e-15, f, expected)
}

// Test_density04 checks rho<=0 degenerates to a safe zero-flow, f=1
// result rather than dividing by zero.
func Test_density04(tst *testing.T) {
	chk.PrintTitle("density04. rho<=0 guard")
	div, curlMag, _, f := Finalize(walk.ResultRecord{}, 0, 1.0, kernel.Dim3D)
	chk.Scalar(tst, "div", 0, div, 0)
	chk.Scalar(tst, "curlMag", 0, curlMag, 0)
	chk.Scalar(tst, "f", 0, f, 1)
}

// Test_density05 checks a registered density observer is notified once per
// visited neighbor, the extension hook spec §9 asks for.
func Test_density05(tst *testing.T) {
	chk.PrintTitle("density05. registered observer sees every visited pair")
	obs := &recordingObserver{}
	v := New(kernel.Dim3D)
	v.Observers = capability.Set{Density: []capability.DensityObserver{obs}}
	h := 1.0
	q := walk.QueryRecord{Pos: particle.Vec3{0, 0, 0}, Hsml: h, Kind: particlekind.Gas}
	scratch := v.NewScratch(q)

	var acc walk.ResultRecord
	v.NeighborIter(q, &acc, scratch, walk.NeighborRef{Pos: particle.Vec3{0, 0, 0}, Mass: 1}, 0)
	v.NeighborIter(q, &acc, scratch, walk.NeighborRef{Pos: particle.Vec3{0.5, 0, 0}, Mass: 1}, 0.5)

	if obs.calls != 2 {
		tst.Fatalf("expected 2 observer calls, got %d", obs.calls)
	}
}
