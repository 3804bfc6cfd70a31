// Package retry drives a transient run to completion despite Newton
// convergence failures, escalating through an ordered list of recovery
// profiles.
package retry

import "github.com/dkoval/circsim/internal/engine"

// Profile is one immutable recovery configuration. Profiles are constructed
// once per run and consumed read-only.
type Profile struct {
	Name    string
	Seeding engine.Seeding
	// MinNewtonIterations raises the user-configured iteration budget to at
	// least this floor. It never lowers it.
	MinNewtonIterations  int
	ForceVoltageLimiting bool
	// MaxVoltageStep clamps per-iteration voltage updates; 0 leaves the
	// user setting untouched.
	MaxVoltageStep float64
	// DtScale multiplies the base timestep. Zero means 1.0.
	DtScale float64
}

// Apply overlays the profile onto a copy of the run settings. The input is
// never mutated.
func (p Profile) Apply(base engine.RunOptions) engine.RunOptions {
	opts := base // value copy

	scale := p.DtScale
	if scale == 0 {
		scale = 1.0
	}
	opts.Dt = base.Dt * scale

	if p.Seeding != engine.SeedNone {
		opts.Newton.Seeding = p.Seeding
	}
	if p.MinNewtonIterations > opts.Newton.MaxIterations {
		opts.Newton.MaxIterations = p.MinNewtonIterations
	}
	if p.ForceVoltageLimiting {
		opts.Newton.ForceVoltageLimiting = true
	}
	if p.MaxVoltageStep > 0 {
		opts.Newton.MaxVoltageStep = p.MaxVoltageStep
	}
	return opts
}

// CanonicalProfiles is the standard escalation ladder, ordered by strictly
// increasing robustness. Each profile is tried at most once per run.
func CanonicalProfiles() []Profile {
	return []Profile{
		{
			Name:    "default",
			DtScale: 1.0,
		},
		{
			Name:                "gmin-seed",
			Seeding:             engine.SeedGmin,
			MinNewtonIterations: 100,
			DtScale:             1.0,
		},
		{
			Name:                 "source-limited-half-step",
			Seeding:              engine.SeedSource,
			MinNewtonIterations:  160,
			ForceVoltageLimiting: true,
			MaxVoltageStep:       3.0,
			DtScale:              0.5,
		},
		{
			Name:                 "pseudo-limited-quarter-step",
			Seeding:              engine.SeedPseudoTransient,
			MinNewtonIterations:  220,
			ForceVoltageLimiting: true,
			MaxVoltageStep:       2.0,
			DtScale:              0.25,
		},
	}
}
