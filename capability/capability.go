// Package capability defines the composable "per-pair observer" extension
// hooks spec §9 asks for in place of the original source's conditional
// blocks for optional physics. The hooks receive (i, j, r, kernel values,
// partial accumulators) during a pairwise visit and may contribute
// additional fields; none of the physics behind any variant is implemented
// here (black-hole feedback, magnetic fields, radiative transfer, metal
// diffusion are all explicitly out of scope per spec §1).
//
// Modelled on gofem's ele.Element capability interfaces (WithIntVars,
// Connector, CanExtrapolate, WithFixedKM in ele/element.go): a visitor
// composes over a slice of these instead of branching on a physics flag.
package capability

import "github.com/cpmech/sphcore/particlekind"

// PairContext carries everything a per-pair observer needs, assembled once
// per visited pair by the density/gradient visitors.
type PairContext struct {
	TargetID, NeighborID int64
	TargetKind           particlekind.Kind
	R                    float64 // |x_i - x_j|
	WValue, DWDr         float64 // kernel value and radial derivative at r
	MassNeighbor         float64
}

// DensityObserver is the density-pass variant of the per-pair observer
// (capability variant `density_feedback`).
type DensityObserver interface {
	ObservePair(ctx PairContext)
}

// GradientObserver is the gradient-pass variant; Kind distinguishes the
// `gradient_magnetic`, `gradient_rt` and `gradient_metals` variants spec §9
// names without requiring three near-identical interfaces.
type GradientObserver interface {
	ObserveGradientPair(ctx PairContext, dField float64, fieldName string)
	Kind() string
}

// Set is the composed group of observers a visitor runs over. A nil/empty
// Set is the common case (no optional physics enabled) and costs one
// range-over-nil, matching how gofem's Domain leaves subset slices (e.g.
// ElemConnect) empty rather than nil-checking a flag everywhere.
type Set struct {
	Density  []DensityObserver
	Gradient []GradientObserver
}

// NotifyDensityPair runs every registered density observer over ctx.
func (s Set) NotifyDensityPair(ctx PairContext) {
	for _, o := range s.Density {
		o.ObservePair(ctx)
	}
}

// NotifyGradientPair runs every registered gradient observer over ctx for
// one scalar field difference.
func (s Set) NotifyGradientPair(ctx PairContext, dField float64, fieldName string) {
	for _, o := range s.Gradient {
		o.ObserveGradientPair(ctx, dField, fieldName)
	}
}
