// Package particle holds the data model shared by every visitor in the
// core: the universal Particle record, the gas-only state sub-record, the
// kernel/bracket scratch used by the smoothing-length search, and the
// periodic-box vector helpers the tree-walk and visitors both need.
//
// Lifecycle (spec §3): particles are created by an external domain
// decomposition and destroyed by external cleanup. Within this package's
// callers, only Hsml, NNgb, the GasState and SinkState sub-records and the
// bracket/flags are ever mutated; Position, Mass and ID are read-only from the core's point
// of view.
package particle

import "github.com/cpmech/sphcore/particlekind"

// Vec3 is a 3-vector. A fixed-size array, not a slice, so particle
// records stay contiguous and copyable without a second allocation —
// mirrors how gofem keeps small per-node/per-ip vectors as plain
// []float64 with pre-sized backing rather than growable slices.
type Vec3 [3]float64

// Add returns a+b.
func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Sub returns a-b.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Scale returns a*s.
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}

// Dot returns a.b.
func (a Vec3) Dot(b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Cross returns a x b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Norm2 returns |a|^2.
func (a Vec3) Norm2() float64 {
	return a.Dot(a)
}

// Box is the periodic-box nearest-image helper spec §6 lists as a consumed
// capability of the particle store. A zero-valued Box (all sides 0) is
// treated as non-periodic.
type Box struct {
	Side Vec3 // box side lengths; 0 on an axis means "not periodic on this axis"
}

// NearestImage folds d (= xj - xi, say) into the minimum-image convention
// on each periodic axis.
func (b Box) NearestImage(d Vec3) Vec3 {
	for axis := 0; axis < 3; axis++ {
		side := b.Side[axis]
		if side <= 0 {
			continue
		}
		half := side / 2
		for d[axis] > half {
			d[axis] -= side
		}
		for d[axis] < -half {
			d[axis] += side
		}
	}
	return d
}

// Bracket is the per-particle (Left, Right) bound on h used by the
// smoothing-length root search (spec §3). Zero means "not yet established".
type Bracket struct {
	Left, Right float64
}

// Collapsed reports whether both sides are set and the interval has
// shrunk below the controller's relative tolerance (spec §4.D step 2).
func (b Bracket) Collapsed() bool {
	return b.Left > 0 && b.Right > 0 && (b.Right-b.Left) < 1e-3*b.Left
}

// GasState is the gas-only sub-record of spec §3: density, pressure,
// predicted entropy, dρ/dh factor, curl/divergence, the NV_T geometry
// matrix and its condition number, and the gradient outputs.
type GasState struct {
	Density  float64 // rho
	Pressure float64
	Entropy  float64 // predicted entropy/energy variable

	DRhoDhAccum float64 // raw accumulator, spec §4.C
	FFactor     float64 // dimensionless f_ij correction factor, spec §4.C

	DivVel  float64 // divergence of v, finalised (post-reduce) value
	CurlVel Vec3    // curl of v, raw 3-vector accumulator / finalised value
	CurlMag float64 // |curl v| / rho, finalised by spec §4.G

	NVT         [3][3]float64 // inverse second-moment matrix slot; GradientsPass does not write it, so it stays zero
	CondNum     float64       // condition number of the (un-inverted) moment matrix
	WellCond    bool          // true => matrix estimator; false => SPH fallback
	MaxDistance float64       // max over visited neighbors of r, spec §4.E

	GradRho Vec3    // gradient of density
	GradP   Vec3    // gradient of pressure
	GradV   [3]Vec3 // gradient tensor of velocity; GradV[k] = grad(v_k)

	// limiter envelopes, one pair of (max,min) per tracked scalar field;
	// indexed by the FieldRho..FieldVz constants below — kept here as fixed-size arrays to avoid per-particle maps
	// in the hot loop.
	DMax [numLimiterFields]float64
	DMin [numLimiterFields]float64
}

// numLimiterFields is the number of scalar fields the slope limiter tracks
// min/max envelopes for: rho, P, vx, vy, vz.
const numLimiterFields = 5

const (
	FieldRho = iota
	FieldP
	FieldVx
	FieldVy
	FieldVz
)

// ResetLimiterEnvelopes prepares DMax/DMin for a fresh gradient pass.
func (g *GasState) ResetLimiterEnvelopes() {
	for i := range g.DMax {
		g.DMax[i] = 0
		g.DMin[i] = 0
	}
	g.MaxDistance = 0
}

// SinkState is the non-gas post-processing record of spec §4.G: "for
// non-gas kinds that participate (e.g. sinks), compute averaged surrounding
// fluid quantities by dividing raw weighted sums by that particle's rho."
// A sink has no GasState of its own (it carries no pressure/entropy/
// gradient state); it only ever reads the fluid around it.
type SinkState struct {
	AvgDensity float64 // the same mass-weighted density estimate a gas particle gets
	AvgVel     Vec3    // mass-weighted average of the surrounding gas velocity
}

// Particle is the universal per-entity record of spec §3.
type Particle struct {
	ID   int64
	Kind particlekind.Kind

	Pos Vec3
	Vel Vec3 // velocity predictor, the value used in interactions
	Mass float64

	Hsml float64 // current smoothing length, positive

	TimeBin int  // index into the power-of-two timestep hierarchy
	Active  bool // derived is-active-this-step flag

	DensityIterationDone bool
	NNgb                  float64 // kernel-weighted effective neighbor count
	Bracket               Bracket

	Gas  *GasState  // non-nil only for Kind == Gas
	Sink *SinkState // non-nil only for Kind == Sink, populated post-density (spec §4.G)
}
