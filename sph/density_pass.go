package sph

import (
	"math"

	"github.com/cpmech/sphcore/density"
	"github.com/cpmech/sphcore/internal/sphchk"
	"github.com/cpmech/sphcore/particle"
	"github.com/cpmech/sphcore/particlekind"
	"github.com/cpmech/sphcore/smoothlen"
	"github.com/cpmech/sphcore/walk"
)

// DensityPass runs spec §4's outer smoothing-length iteration to
// convergence: each round walks the active gas and sink particles once,
// folds the resulting ρ/dρ-dh/N_ngb/∇·v/∇×v into every gas particle's
// GasState (a sink gets its SinkState and is done after one round), and
// hands the gas result to the smoothing-length controller, which either marks
// the particle DONE or proposes a new h for the next round. Returns a
// ConvergenceError if any particle is still undone after cfg.MaxIter
// rounds.
func DensityPass(cfg Config, store walk.ParticleStore, tree walk.Tree, isActive func(i int) bool) (PassStats, error) {
	if err := cfg.Validate(); err != nil {
		return PassStats{}, err
	}

	v := density.New(cfg.Dim)
	v.Observers = cfg.Observers
	var iter int
	var activeCount int

	for iter = 0; iter < cfg.MaxIter; iter++ {
		pending := false
		activeCount = 0

		spec := walk.WalkSpec{
			IsActive: func(i int) bool {
				p := store.Get(i)
				ok := p.Kind.ParticipatesInDensity() && !p.DensityIterationDone && isActive(i)
				if ok && p.Kind == particlekind.Gas {
					ok = p.Gas != nil
				}
				if ok {
					activeCount++
				}
				return ok
			},
			FillQuery: func(i int) walk.QueryRecord {
				p := store.Get(i)
				return walk.QueryRecord{TargetIndex: i, Pos: p.Pos, Hsml: p.Hsml, Kind: p.Kind, Vel: p.Vel, TimeBin: p.TimeBin}
			},
			NewScratch:   v.NewScratch,
			NeighborIter: v.NeighborIter,
			ReduceResult: func(i int, r walk.ResultRecord, mode walk.Mode) {
				p := store.Get(i)
				if p.Kind != particlekind.Gas {
					// spec §4.G: non-gas kinds that participate (sinks) get
					// the surrounding fluid's averaged quantities, divided
					// out of the same raw weighted sums a gas particle's
					// own density accumulates; they never enter the
					// smoothing-length controller, so one pass is final.
					if p.Sink == nil {
						p.Sink = &particle.SinkState{}
					}
					avgRho, avgVel := density.FinalizeSink(r)
					p.Sink.AvgDensity = avgRho
					p.Sink.AvgVel = particle.Vec3(avgVel)
					p.NNgb = r.NNgb
					p.DensityIterationDone = true
					return
				}

				divV, curlMag, curlVec, fFactor := density.Finalize(r, r.Rho, p.Hsml, cfg.Dim)
				p.Gas.Density = r.Rho
				p.Gas.DRhoDhAccum = r.DRhoDh
				p.NNgb = r.NNgb
				p.Gas.DivVel = divV
				p.Gas.CurlVel = particle.Vec3(curlVec)
				p.Gas.CurlMag = curlMag
				p.Gas.FFactor = fFactor

				out, err := smoothlen.Update(cfg.Smoothlen, p, fFactor)
				if err != nil {
					pending = true
					return
				}
				if !out.Done {
					pending = true
				}
			},
			Tree:          tree,
			Store:         store,
			MaxRounds:     cfg.MaxRounds,
			BufferSizeMiB: cfg.BufferSizeMiB,
			Workers:       cfg.Workers,
		}

		if err := walk.Run(spec); err != nil {
			return PassStats{Iterations: iter + 1}, err
		}
		if !pending {
			stats := PassStats{Iterations: iter + 1, ActiveParticles: activeCount}
			logPassSummary("density", stats)
			return stats, nil
		}
	}

	d := worstOffender(store, isActive, cfg.Smoothlen.DesNumNgb)
	return PassStats{Iterations: cfg.MaxIter}, sphchk.ConvergenceError(d)
}

// worstOffender picks the still-pending particle furthest from its target
// neighbor count, for the ConvergenceError diagnostic spec §7 requires.
func worstOffender(store walk.ParticleStore, isActive func(i int) bool, nstar float64) sphchk.ConvergenceDiagnostic {
	var worst *particle.Particle
	worstDev := -1.0
	for i := 0; i < store.Len(); i++ {
		p := store.Get(i)
		if p.Kind != particlekind.Gas || p.Gas == nil || p.DensityIterationDone || !isActive(i) {
			continue
		}
		dev := math.Abs(p.NNgb - nstar)
		if dev > worstDev {
			worstDev = dev
			worst = p
		}
	}
	if worst == nil {
		return sphchk.ConvergenceDiagnostic{}
	}
	return sphchk.ConvergenceDiagnostic{
		ParticleID: worst.ID,
		H:          worst.Hsml,
		Left:       worst.Bracket.Left,
		Right:      worst.Bracket.Right,
		NNgb:       worst.NNgb,
		Pos:        [3]float64{worst.Pos[0], worst.Pos[1], worst.Pos[2]},
	}
}
