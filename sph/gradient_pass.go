package sph

import (
	"github.com/cpmech/sphcore/gradient"
	"github.com/cpmech/sphcore/limiter"
	"github.com/cpmech/sphcore/particlekind"
	"github.com/cpmech/sphcore/walk"
)

// GradientsPass runs spec §4.E/§4.F's single-round gradient reconstruction
// and slope limiting: every active gas particle's NV_T matrix and SPH-
// style fallback sums are accumulated in one tree-walk, the matrix is
// inverted and gated on its condition number, and the resulting gradients
// are immediately clamped by the slope limiter before being written back.
//
// Unlike DensityPass this does not iterate to convergence: the smoothing
// lengths are assumed fixed by a prior DensityPass, so one walk suffices.
func GradientsPass(cfg Config, store walk.ParticleStore, tree walk.Tree, isActive func(i int) bool) (PassStats, error) {
	if err := cfg.Validate(); err != nil {
		return PassStats{}, err
	}

	for i := 0; i < store.Len(); i++ {
		p := store.Get(i)
		if p.Kind == particlekind.Gas && p.Gas != nil && isActive(i) {
			p.Gas.ResetLimiterEnvelopes()
		}
	}

	v := gradient.New(cfg.Gradient)
	v.Observers = cfg.Observers
	var active, fallbacks int

	spec := walk.WalkSpec{
		IsActive: func(i int) bool {
			p := store.Get(i)
			return p.Kind == particlekind.Gas && p.Gas != nil && isActive(i)
		},
		FillQuery: func(i int) walk.QueryRecord {
			p := store.Get(i)
			return walk.QueryRecord{
				TargetIndex: i, Pos: p.Pos, Hsml: p.Hsml, Kind: p.Kind, Vel: p.Vel, TimeBin: p.TimeBin,
				Density: p.Gas.Density, Pressure: p.Gas.Pressure,
			}
		},
		NewScratch:   v.NewScratch,
		NeighborIter: v.NeighborIter,
		ReduceResult: func(i int, r walk.ResultRecord, mode walk.Mode) {
			p := store.Get(i)
			active++
			est := gradient.Finalize(cfg.Gradient, r, p.Gas.Density, p.Gas.FFactor)

			p.Gas.CondNum = est.ConditionNumber
			p.Gas.WellCond = est.WellConditioned
			p.Gas.GradRho = est.GradRho
			p.Gas.GradP = est.GradP
			p.Gas.GradV = est.GradV
			p.Gas.MaxDistance = r.MaxDistance
			p.Gas.DMax = r.DMax
			p.Gas.DMin = r.DMin
			if !est.WellConditioned {
				fallbacks++
			}

			limiter.ApplyToParticle(cfg.Limiter, p)
		},
		Tree:          tree,
		Store:         store,
		MaxRounds:     cfg.MaxRounds,
		BufferSizeMiB: cfg.BufferSizeMiB,
		Workers:       cfg.Workers,
	}

	if err := walk.Run(spec); err != nil {
		return PassStats{Iterations: 1}, err
	}
	stats := PassStats{Iterations: 1, ActiveParticles: active, FallbackCount: fallbacks}
	logPassSummary("gradients", stats)
	logFallbackRate(fallbacks, active)
	return stats, nil
}
