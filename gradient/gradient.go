// Package gradient implements the matrix-based gradient estimator of spec
// §4.E: a second-moment (Rosswog) matrix accumulated pairwise alongside the
// same kernel-weighted difference sums the matrix multiplies, with the
// matrix method selected only when its condition number stays under a
// configured ceiling — otherwise the accumulated sums are instead scaled by
// the density pass's dρ/dh factor over the target's own density.
//
// The two-quantity shape (a moment matrix plus a vector it normally
// multiplies) mirrors gofem's porous-media elements, which assemble a
// primary stiffness matrix and apply it to an accumulated load vector (see
// ele/porous/solid-liquid.go).
package gradient

import (
	"math"

	"github.com/cpmech/gosl/la"
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/sphcore/capability"
	"github.com/cpmech/sphcore/internal/sphchk"
	"github.com/cpmech/sphcore/kernel"
	"github.com/cpmech/sphcore/particle"
	"github.com/cpmech/sphcore/particlekind"
	"github.com/cpmech/sphcore/walk"
)

// Config binds the tunables spec §6 names for the gradient pass: the
// spatial dimensionality and the condition-number ceiling past which the
// matrix estimator is judged ill-conditioned and the SPH fallback is used
// instead.
type Config struct {
	Dim                kernel.Dim
	ConditionNumberMax float64
}

// Validate checks the condition-number ceiling is usable.
func (c Config) Validate() error {
	if c.ConditionNumberMax <= 1 {
		return sphchk.ConfigError("ConditionNumberMax must exceed 1, got %g", c.ConditionNumberMax)
	}
	return nil
}

// Visitor is the gradient-pass neighbor_iter/new_scratch pair.
type Visitor struct {
	Cfg       Config
	Observers capability.Set // optional per-pair extension hooks, spec §9
}

// New returns a gradient visitor bound to cfg.
func New(cfg Config) *Visitor {
	return &Visitor{Cfg: cfg}
}

// gradState is the per-target mutable scratch: the kernel descriptor plus
// a one-shot flag that seeds the min/max envelopes from the target's own
// field values on the first neighbor_iter call for that target.
type gradState struct {
	K      kernel.Cubic
	Seeded bool
}

// NewScratch builds the per-target kernel and a fresh envelope-seeding flag.
// SearchRadius is still the target's own Hsml: spec §4.E's combined reach
// max(h_i, h_j) is completed by the walk driver itself (it widens its
// candidate cut using each candidate's own Hsml, walk/driver.go), not by
// widening the tree query here.
func (v *Visitor) NewScratch(q walk.QueryRecord) walk.Scratch {
	return walk.Scratch{
		SearchRadius: q.Hsml,
		Mask:         particlekind.GasMask,
		Extra:        &gradState{K: kernel.New(v.Cfg.Dim, q.Hsml)},
	}
}

// NeighborIter is the per-pair evaluation of spec §4.E: it accumulates the
// NV_T second-moment matrix and the single w-weighted difference sum that
// feeds both the matrix estimator and its scalar SPH-style fallback, and
// extends the per-field min/max envelopes the slope limiter later consumes.
//
// A pair is evaluated at r² < max(h_i², h_j²) (spec §4.E): the envelope
// extension below runs over every candidate the driver hands in, including
// ones beyond this target's own h whose larger Hsml reaches back to it, so
// DMax/DMin/MaxDistance see the full symmetric neighbor set. The weighted
// sums (NVT, GradRho, GradP, GradV) stay gated by this target's own kernel
// (r < h_i): a neighbor beyond h_i contributes nothing to its kernel weight
// by construction, and the mirrored, j-kernel-weighted side of the same
// pair is realized when j itself is visited as a target in this same pass
// (spec §4.E's GradientsPass runs every active gas particle through its own
// primary visit in one round) — so both endpoints of every pair are
// accounted for across the pass without double-counting either side.
func (v *Visitor) NeighborIter(q walk.QueryRecord, acc *walk.ResultRecord, scratch walk.Scratch, nb walk.NeighborRef, r float64) {
	st := scratch.Extra.(*gradState)
	if !st.Seeded {
		acc.DMax[particle.FieldRho], acc.DMin[particle.FieldRho] = q.Density, q.Density
		acc.DMax[particle.FieldP], acc.DMin[particle.FieldP] = q.Pressure, q.Pressure
		acc.DMax[particle.FieldVx], acc.DMin[particle.FieldVx] = q.Vel[0], q.Vel[0]
		acc.DMax[particle.FieldVy], acc.DMin[particle.FieldVy] = q.Vel[1], q.Vel[1]
		acc.DMax[particle.FieldVz], acc.DMin[particle.FieldVz] = q.Vel[2], q.Vel[2]
		st.Seeded = true
	}

	extend(&acc.DMax[particle.FieldRho], &acc.DMin[particle.FieldRho], nb.Density)
	extend(&acc.DMax[particle.FieldP], &acc.DMin[particle.FieldP], nb.Pressure)
	extend(&acc.DMax[particle.FieldVx], &acc.DMin[particle.FieldVx], nb.Vel[0])
	extend(&acc.DMax[particle.FieldVy], &acc.DMin[particle.FieldVy], nb.Vel[1])
	extend(&acc.DMax[particle.FieldVz], &acc.DMin[particle.FieldVz], nb.Vel[2])

	if r > acc.MaxDistance {
		acc.MaxDistance = r
	}
	if r >= st.K.H {
		return
	}
	if r == 0 || nb.Density <= 0 {
		return
	}

	// dx = x_j - x_i and dphi = phi_j - phi_i, so for a linear field
	// phi the summed w*dx*dphi equals NVT·grad(phi), and left-multiplying
	// by the inverted NVT recovers grad(phi) with its own sign.
	dx := nb.Pos.Sub(q.Pos)
	volj := nb.Mass / nb.Density
	wval := st.K.W(r)
	wv := volj * wval
	drho := nb.Density - q.Density
	dp := nb.Pressure - q.Pressure
	dv := nb.Vel.Sub(q.Vel)

	if len(v.Observers.Gradient) > 0 {
		ctx := capability.PairContext{
			TargetID: int64(q.TargetIndex), NeighborID: nb.ID, TargetKind: q.Kind,
			R: r, WValue: wval, DWDr: st.K.DWDr(r), MassNeighbor: nb.Mass,
		}
		v.Observers.NotifyGradientPair(ctx, drho, "rho")
		v.Observers.NotifyGradientPair(ctx, dp, "pressure")
	}

	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			acc.NVT[a][b] += wv * dx[a] * dx[b]
		}
	}
	acc.GradRho = acc.GradRho.Add(dx.Scale(wv * drho))
	acc.GradP = acc.GradP.Add(dx.Scale(wv * dp))
	for k := 0; k < 3; k++ {
		acc.GradV[k] = acc.GradV[k].Add(dx.Scale(wv * dv[k]))
	}
}

func extend(max, min *float64, v float64) {
	if v > *max {
		*max = v
	}
	if v < *min {
		*min = v
	}
}

// Estimate is the post-reduce result of spec §4.E: the chosen gradients
// together with the condition-number diagnostic the caller stores back on
// the particle's GasState.
type Estimate struct {
	GradRho         particle.Vec3
	GradP           particle.Vec3
	GradV           [3]particle.Vec3
	ConditionNumber float64
	WellConditioned bool
}

// Finalize is spec §4.E's post-pairwise reconstruction: invert the
// accumulated NV_T matrix and, when well-conditioned, left-multiply the
// accumulated difference sums by it; otherwise scale the same sums by
// fFactor/rho (the SPH fallback). rho and fFactor are the target
// particle's own density-pass outputs (GasState.Density, GasState.FFactor).
func Finalize(cfg Config, r walk.ResultRecord, rho, fFactor float64) Estimate {
	data := make([]float64, 0, 9)
	for a := 0; a < 3; a++ {
		data = append(data, r.NVT[a][0], r.NVT[a][1], r.NVT[a][2])
	}
	a := mat.NewDense(3, 3, data)

	cond := mat.Cond(a, 2)
	var inv mat.Dense
	err := inv.Inverse(a)
	wellConditioned := err == nil && !math.IsInf(cond, 0) && !math.IsNaN(cond) && cond <= cfg.ConditionNumberMax

	if !wellConditioned {
		scale := 0.0
		if rho > 0 {
			scale = fFactor / rho
		}
		return Estimate{
			GradRho:         r.GradRho.Scale(scale),
			GradP:           r.GradP.Scale(scale),
			GradV:           [3]particle.Vec3{r.GradV[0].Scale(scale), r.GradV[1].Scale(scale), r.GradV[2].Scale(scale)},
			ConditionNumber: cond,
			WellConditioned: false,
		}
	}

	// the condition-number estimate and the inverse itself come from
	// gonum's SVD-backed solver; the three mat-vec products that turn the
	// inverted NV_T into gradients are done with gosl/la's
	// MatAlloc/MatVecMul pair (see ele/solid/beam.go for the same idiom).
	m := la.MatAlloc(3, 3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = inv.At(i, j)
		}
	}
	return Estimate{
		GradRho:         matVecMulLA(m, r.GradRho),
		GradP:           matVecMulLA(m, r.GradP),
		GradV:           [3]particle.Vec3{matVecMulLA(m, r.GradV[0]), matVecMulLA(m, r.GradV[1]), matVecMulLA(m, r.GradV[2])},
		ConditionNumber: cond,
		WellConditioned: true,
	}
}

func matVecMulLA(m [][]float64, v particle.Vec3) particle.Vec3 {
	out := make([]float64, 3)
	la.MatVecMul(out, 1.0, m, v[:])
	return particle.Vec3{out[0], out[1], out[2]}
}
