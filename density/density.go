// Package density implements the density kernel visitor of spec §4.C: the
// per-pair accumulation of ρ, ∇·v, ∇×v, dρ/dh and N_ngb over a target
// particle's kernel, plus the post-reduce finalisation into the flow-field
// quantities and the dimensionless f_ij factor.
//
// Structured as accumulate-then-finalize, the same two-step shape
// gofem's element K-matrix assembly uses (MatFill zero, accumulate over
// integration points, then a separate finalisation step) — see
// ele/diffusion/diffusion.go.
package density

import (
	"math"

	"github.com/cpmech/sphcore/capability"
	"github.com/cpmech/sphcore/kernel"
	"github.com/cpmech/sphcore/particlekind"
	"github.com/cpmech/sphcore/walk"
)

// Visitor binds the dimensionality, the sink-search-radius extension hook
// spec §4.C calls out ("possibly choose a larger search radius for a
// different kind of target"), and the optional per-pair observer set spec
// §9 lets a caller register without this package knowing about any
// physics behind it.
type Visitor struct {
	Dim                    kernel.Dim
	SinkSearchRadiusFactor float64 // 1.0 => no widening; extension hook default
	Observers              capability.Set
}

// New returns a density visitor for the given spatial dimensionality.
func New(d kernel.Dim) *Visitor {
	return &Visitor{Dim: d, SinkSearchRadiusFactor: 1.0}
}

// NewScratch is PRIMARY init (spec §4.C): build the kernel descriptor from
// the target's own Hsml, set the kind-mask to gas, and widen the search
// radius for non-gas targets per the sink extension hook.
func (v *Visitor) NewScratch(q walk.QueryRecord) walk.Scratch {
	radius := q.Hsml
	if q.Kind != particlekind.Gas {
		radius *= v.SinkSearchRadiusFactor
	}
	return walk.Scratch{
		SearchRadius: radius,
		Mask:         particlekind.GasMask,
		Extra:        kernel.New(v.Dim, q.Hsml),
	}
}

// NeighborIter is the per-pair evaluation of spec §4.C.
func (v *Visitor) NeighborIter(q walk.QueryRecord, acc *walk.ResultRecord, scratch walk.Scratch, nb walk.NeighborRef, r float64) {
	k := scratch.Extra.(kernel.Cubic)
	if r >= k.H {
		return
	}
	w := k.W(r)
	acc.Rho += nb.Mass * w
	acc.NNgb += w * k.Volume()
	acc.DRhoDh += nb.Mass * k.DWDh(r)
	acc.WeightedVel = acc.WeightedVel.Add(nb.Vel.Scale(nb.Mass * w))

	dwdr := k.DWDr(r)
	if len(v.Observers.Density) > 0 {
		v.Observers.NotifyDensityPair(capability.PairContext{
			TargetID: int64(q.TargetIndex), NeighborID: nb.ID, TargetKind: q.Kind,
			R: r, WValue: w, DWDr: dwdr, MassNeighbor: nb.Mass,
		})
	}

	if r > 0 {
		dv := q.Vel.Sub(nb.Vel)
		dx := q.Pos.Sub(nb.Pos)
		coeff := nb.Mass * dwdr / r
		acc.DivV -= coeff * dv.Dot(dx)
		acc.CurlV = acc.CurlV.Add(dv.Cross(dx).Scale(coeff))
	}
}

// FactorParams bundles the inputs the post-reduce finalisation (spec
// §4.C) needs beyond the raw accumulators: the spatial dimensionality (D)
// that scales the dρ/dh-to-f_ij rescaling.
type FactorParams struct {
	Dim kernel.Dim
}

// Finalize is the post-reduce step of spec §4.C: divide divergence and
// |curl| by ρ, and rescale the raw dρ/dh accumulator into the dimensionless
// f_ij factor, clamped to 1 when the bracketed term is <= -0.9.
//
// Returns divV, curlMag, curlVec, fFactor in the units spec §4.C defines
// them (divV and curlVec are still raw accumulator-scale before this call;
// the caller is expected to pass the same ResultRecord it reduced).
func Finalize(r walk.ResultRecord, rho float64, h float64, dim kernel.Dim) (divV float64, curlMag float64, curlVec [3]float64, fFactor float64) {
	if rho <= 0 {
		return 0, 0, [3]float64{}, 1
	}
	divV = r.DivV / rho
	curlVec = [3]float64{r.CurlV[0] / rho, r.CurlV[1] / rho, r.CurlV[2] / rho}
	curlMag = vecNorm(curlVec)

	d := float64(dim)
	bracket := (h / (d * rho)) * r.DRhoDh
	if bracket <= -0.9 {
		fFactor = 1
	} else {
		fFactor = 1.0 / (1.0 + bracket)
	}
	return
}

func vecNorm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// FinalizeSink is the non-gas branch of spec §4.G's post-processing: a sink
// never runs the smoothing-length controller or gets an f_ij factor, it
// just reads the same raw weighted sums a gas particle's own ρ accumulates
// and divides by that ρ to get the surrounding fluid's average velocity.
// rho<=0 (no gas neighbor found) degenerates to a zero average rather than
// dividing by zero.
func FinalizeSink(r walk.ResultRecord) (avgDensity float64, avgVel [3]float64) {
	if r.Rho <= 0 {
		return 0, [3]float64{}
	}
	return r.Rho, [3]float64{r.WeightedVel[0] / r.Rho, r.WeightedVel[1] / r.Rho, r.WeightedVel[2] / r.Rho}
}
