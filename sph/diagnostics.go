package sph

import (
	"github.com/cpmech/gosl/io"
	"github.com/sirupsen/logrus"
)

// PassStats summarises one completed density or gradient pass: how many
// smoothing-length iterations it took to converge and, for a gradient
// pass, how often the condition-number gate fell back to the SPH-style
// estimator.
type PassStats struct {
	Iterations      int
	ActiveParticles int
	FallbackCount   int // gradient pass only; 0 for a density pass
}

// logPassSummary mixes a terse io.Pf progress notice (gofem's own style,
// fem/main.go) with a structured logrus record (the per-field diagnostic
// style spec §7 wants for fatal events) — the human line for someone
// watching a console, the fields for anything parsing the log.
func logPassSummary(pass string, s PassStats) {
	io.Pfgreen("sph: %s pass complete: %d iteration(s), %d active particle(s)\n", pass, s.Iterations, s.ActiveParticles)
	logrus.WithFields(logrus.Fields{
		"pass":             pass,
		"iterations":       s.Iterations,
		"active_particles": s.ActiveParticles,
		"fallback_count":   s.FallbackCount,
	}).Info("sph: pass complete")
}

// logFallbackRate warns when the matrix gradient estimator's fallback
// rate crosses a third of the active set — usually a sign the smoothing
// lengths are too small relative to the local particle spacing, not a
// bug in the estimator itself.
func logFallbackRate(fallbacks, active int) {
	if active == 0 || fallbacks*3 < active {
		return
	}
	logrus.WithFields(logrus.Fields{
		"fallback_count": fallbacks,
		"active":         active,
	}).Warn("sph: gradient estimator fell back to SPH-style gradients for a large share of active particles")
}
