// Package walk implements the tree-walk driver of spec §4.B: a per-particle
// neighbor iteration that supports local and remote (imported) targets with
// symmetric pairwise accumulation, built on top of an externally supplied
// spatial tree (spec §6 — out of scope here, consumed as an interface).
package walk

import (
	"github.com/cpmech/sphcore/particle"
	"github.com/cpmech/sphcore/particlekind"
)

// Mode distinguishes a primary evaluation (the walk's owner accumulating
// into its own particle) from a secondary one (a peer evaluating a remote
// query against its own local neighbors, spec §4.B).
type Mode int

const (
	Primary Mode = iota
	Secondary
)

// NodeCursor is the per-export-pass resume point into a remote (or local)
// tree's node list, spec §3's "node-list cursor". Opaque to everything but
// the Tree implementation; the walk driver only ever copies it forward.
type NodeCursor struct {
	Node      int
	Exhausted bool
}

// NeighborRef is one candidate neighbor returned by a tree query: enough to
// evaluate a kernel pair without a second indirection through the particle
// store in the hot loop.
type NeighborRef struct {
	Index    int // local index into the ParticleStore this candidate lives in
	Pos      particle.Vec3
	Vel      particle.Vec3
	Mass     float64
	Kind     particlekind.Kind
	ID       int64
	Hsml     float64 // candidate's own smoothing length, needed to evaluate a pair at max(h_i, h_j), spec §4.E
	Density  float64 // gas density, valid once the density pass has run
	Pressure float64
}

// Tree is the external, queryable spatial index spec §6 requires: "returns
// candidate neighbors whose tree-node envelopes intersect the ball of
// radius around center, filtered by kind mask. Cursor advances across
// export-passes." A conforming tree must not prune a candidate on the sole
// basis that it lies beyond radius of center: spec §4.E's pairwise
// evaluation is symmetric in h (r² < max(h_i², h_j²)), so a candidate whose
// own Hsml is larger than radius can still be a genuine neighbor even when
// center's own reach would not find it back. The standard technique (e.g.
// a per-node max-Hsml bound, "hmax") is how the external tree is expected
// to satisfy this; building and maintaining the tree itself is out of
// scope, the core only ever calls this method. The walk driver performs
// the final r < max(radius, candidate.Hsml) cut itself, so a tree that
// over-returns candidates is always safe; one that under-returns is not.
type Tree interface {
	FindNeighbors(center particle.Vec3, radius float64, mask func(particlekind.Kind) bool, cursor NodeCursor) (neighbors []NeighborRef, next NodeCursor)
}

// ParticleStore is the external particle array spec §6 requires, indexed by
// local id, plus the periodic-box metric every pair distance goes through.
type ParticleStore interface {
	Len() int
	Get(i int) *particle.Particle
	Box() particle.Box
}

// QueryRecord is what a process sends to a peer (spec §3): position, Hsml,
// kind, velocity predictor, timestep index, and a cursor into the remote
// tree.
type QueryRecord struct {
	TargetIndex int // origin-side index, meaningless to the receiving peer except as a return address
	Pos         particle.Vec3
	Hsml        float64
	Kind        particlekind.Kind
	Vel         particle.Vec3
	TimeBin     int
	Cursor      NodeCursor
	Density     float64 // target's own gas density, needed by the gradient pass's (f_j - f_i) differencing
	Pressure    float64
}

// ResultRecord is what a peer returns (spec §3): accumulated density-pass
// fields plus, for gradient passes, the pairwise min/max envelopes and
// partial gradient sums. Visitors only ever populate the subset of fields
// relevant to their pass; the other fields stay at their zero value, which
// is always the correct additive identity.
type ResultRecord struct {
	// density-pass fields
	Rho    float64
	DRhoDh float64
	NNgb   float64
	DivV   float64
	CurlV  particle.Vec3

	// WeightedVel is Sum_j m_j W_ij v_j, the raw mass-weighted velocity sum
	// spec §4.G's non-gas (sink) averaging divides by the particle's own
	// rho to get the surrounding fluid's average velocity.
	WeightedVel particle.Vec3

	// gradient-pass fields
	DMax        [5]float64
	DMin        [5]float64
	GradRho     particle.Vec3
	GradP       particle.Vec3
	GradV       [3]particle.Vec3
	MaxDistance float64

	// NVT is the second-moment (Rosswog) matrix accumulator the matrix-based
	// gradient estimator builds up pair by pair; additive across both local
	// and imported contributions, inverted once at reduce time. The same
	// GradRho/GradP/GradV sums above feed both the matrix method (left-
	// multiplied by the inverted NVT) and the SPH-style fallback (scaled by
	// a particle's own dρ/dh factor over its density) when NVT is
	// ill-conditioned.
	NVT [3][3]float64
}

// Add accumulates o into r in place; used both to merge a worker's local
// contribution and to fold in a result returned from a remote peer.
func (r *ResultRecord) Add(o ResultRecord) {
	r.Rho += o.Rho
	r.DRhoDh += o.DRhoDh
	r.NNgb += o.NNgb
	r.DivV += o.DivV
	r.CurlV = r.CurlV.Add(o.CurlV)
	r.WeightedVel = r.WeightedVel.Add(o.WeightedVel)
	for i := range r.DMax {
		if o.DMax[i] > r.DMax[i] {
			r.DMax[i] = o.DMax[i]
		}
		if o.DMin[i] < r.DMin[i] {
			r.DMin[i] = o.DMin[i]
		}
	}
	r.GradRho = r.GradRho.Add(o.GradRho)
	r.GradP = r.GradP.Add(o.GradP)
	for k := 0; k < 3; k++ {
		r.GradV[k] = r.GradV[k].Add(o.GradV[k])
	}
	if o.MaxDistance > r.MaxDistance {
		r.MaxDistance = o.MaxDistance
	}
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			r.NVT[a][b] += o.NVT[a][b]
		}
	}
}

// Scratch is the per-target neighbor-iteration state of spec §3: kernel
// descriptor, search radius and kind-mask are all bound once per target by
// the caller before NeighborIter is invoked, then reused across every
// candidate in that target's neighbor list.
type Scratch struct {
	SearchRadius float64
	Mask         func(particlekind.Kind) bool
	// Symmetric is always false for the core contract ("asymmetric: query
	// uses target's h only", spec §3) but kept explicit rather than
	// assumed, since an extension hook may flip it.
	Symmetric bool
	// Extra carries the visitor-specific part of the scratch (e.g. the
	// precomputed kernel.Cubic descriptor) that NewScratch builds once per
	// target and NeighborIter type-asserts back on every pair. The walk
	// package itself never looks inside it.
	Extra interface{}
}

// WalkSpec binds the five callables spec §4.B names.
type WalkSpec struct {
	IsActive     func(i int) bool
	FillQuery    func(i int) QueryRecord
	ReduceResult func(i int, r ResultRecord, mode Mode)
	NeighborIter func(q QueryRecord, acc *ResultRecord, scratch Scratch, nb NeighborRef, r float64)
	NewScratch   func(q QueryRecord) Scratch

	Tree  Tree
	Store ParticleStore

	// MaxRounds bounds the outer export/import round count for a single
	// run_walk invocation (not to be confused with the smoothing-length
	// controller's MaxIter); a tree walk that cannot exhaust every active
	// particle's cursor within this many rounds is a ResourceError, not a
	// ConvergenceError (that taxonomy belongs to smoothlen).
	MaxRounds int

	// BufferSizeMiB bounds the export staging buffer, spec §6.
	BufferSizeMiB int

	// Workers is the worker-pool size; 0 or less means 4 workers.
	Workers int
}
