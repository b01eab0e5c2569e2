// Package sphchk centralises the error taxonomy of spec §7 so every
// package in the core raises the same four categories the same way,
// instead of each visitor inventing its own error type. Built directly on
// gosl/chk the way gofem raises its own fatal conditions (ele/factory.go,
// fem/domain.go): chk.Err for a wrapped, returned error; chk.Panic for a
// condition the caller asserts can never happen.
//
// Structured fatal diagnostics (the fields a ConvergenceError carries: id,
// h, bracket, N_ngb, position) go through logrus, grounded on
// spatialmodel/inmap's logging stack, since gosl/chk has no structured
// field support of its own.
package sphchk

import (
	"fmt"

	"github.com/cpmech/gosl/chk"
	"github.com/sirupsen/logrus"
)

// ConfigError reports a parameter precondition violation (spec §7):
// detected once at density_pass/gradients_pass entry, always fatal.
func ConfigError(format string, args ...interface{}) error {
	return chk.Err("sph: config error: "+format, args...)
}

// ResourceError reports an export buffer that cannot hold a single
// particle's node-list (spec §7), fatal.
func ResourceError(format string, args ...interface{}) error {
	return chk.Err("sph: resource error: "+format, args...)
}

// ConvergenceDiagnostic is the structured payload a ConvergenceError logs
// before returning, spec §7: "id, h, bracket (Left, Right), N_ngb,
// position". The open question about the source conflating a queue index
// with a particle index is resolved here by typing ParticleID as the
// caller's stable particle id — never a slice/queue position (see
// DESIGN.md open question 1).
type ConvergenceDiagnostic struct {
	ParticleID  int64
	H           float64
	Left, Right float64
	NNgb        float64
	Pos         [3]float64
}

// ConvergenceError logs d with logrus and returns the fatal error spec §7
// requires (a particle failing to satisfy DONE after MaxIter).
func ConvergenceError(d ConvergenceDiagnostic) error {
	logrus.WithFields(logrus.Fields{
		"particle_id": d.ParticleID,
		"h":           d.H,
		"left":        d.Left,
		"right":       d.Right,
		"n_ngb":       d.NNgb,
		"pos":         d.Pos,
	}).Error("sph: smoothing-length search did not converge within MaxIter")
	return chk.Err("sph: convergence error: particle %d did not converge (h=%g, bracket=[%g,%g], n_ngb=%g)",
		d.ParticleID, d.H, d.Left, d.Right, d.NNgb)
}

// InvariantViolation raises the unrecoverable logic-error case spec §7
// names (e.g. DensityIterationDone already set when rescheduled, or
// neither bracket side set when both should be). Always a programming
// error in the caller, never triggered by input data, hence chk.Panic
// rather than a returned error.
func InvariantViolation(format string, args ...interface{}) {
	logrus.WithField("kind", "invariant_violation").Error(fmt.Sprintf(format, args...))
	chk.Panic("sph: invariant violation: "+format, args...)
}
