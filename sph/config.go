// Package sph orchestrates the density and gradient passes over a
// distributed particle set: it wires the walk driver to the density,
// smoothing-length, gradient and limiter packages the way gofem's FEM
// struct wires a Domain to a Solver and a DynCoefs bundle (fem/fem.go).
package sph

import (
	"github.com/cpmech/sphcore/capability"
	"github.com/cpmech/sphcore/gradient"
	"github.com/cpmech/sphcore/internal/sphchk"
	"github.com/cpmech/sphcore/kernel"
	"github.com/cpmech/sphcore/limiter"
	"github.com/cpmech/sphcore/smoothlen"
)

// Config bundles every tunable spec §6 names for a full density+gradient
// run: the sub-package configs plus the walk-level resource bounds.
type Config struct {
	Dim kernel.Dim

	Smoothlen smoothlen.Config
	Gradient  gradient.Config
	Limiter   limiter.Config

	// MaxIter bounds the outer smoothing-length iteration count (spec §4.D,
	// §7's ConvergenceError); distinct from walk.WalkSpec.MaxRounds, which
	// bounds a single tree-walk's export/import round count.
	MaxIter int

	BufferSizeMiB int
	Workers       int

	// MaxRounds bounds each individual tree-walk's export/import rounds;
	// the smoothing-length outer loop runs one tree-walk per iteration, so
	// this is independent of MaxIter.
	MaxRounds int

	// Observers is the optional per-pair extension-hook set spec §9 names
	// (density_feedback, gradient_magnetic, gradient_rt, gradient_metals);
	// empty by default, costing nothing in the hot loop.
	Observers capability.Set
}

// Validate checks every sub-config plus the orchestration-level bounds,
// spec §7's ConfigError taxonomy.
func (c Config) Validate() error {
	if c.Dim != kernel.Dim1D && c.Dim != kernel.Dim2D && c.Dim != kernel.Dim3D {
		return sphchk.ConfigError("Dim must be 1, 2 or 3, got %d", c.Dim)
	}
	if err := c.Smoothlen.Validate(); err != nil {
		return err
	}
	if err := c.Gradient.Validate(); err != nil {
		return err
	}
	if err := c.Limiter.Validate(); err != nil {
		return err
	}
	if c.MaxIter <= 0 {
		return sphchk.ConfigError("MaxIter must be positive, got %d", c.MaxIter)
	}
	if c.BufferSizeMiB <= 0 {
		return sphchk.ConfigError("BufferSizeMiB must be positive, got %d", c.BufferSizeMiB)
	}
	if c.MaxRounds <= 0 {
		return sphchk.ConfigError("MaxRounds must be positive, got %d", c.MaxRounds)
	}
	return nil
}
