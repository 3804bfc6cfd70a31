// Package config holds run settings with YAML persistence and sane
// defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dkoval/circsim/internal/engine"
)

const (
	DefaultDt               = 1e-6
	DefaultStopTime         = 1e-3
	DefaultMaxIterations    = 50
	DefaultAbsTol           = 1e-6
	DefaultRelTol           = 1e-3
	DefaultCancelCheckSteps = 64
)

// RunSettings is the user-facing simulation configuration. Retry profiles
// overlay these per attempt; the base settings are never mutated.
type RunSettings struct {
	Dt               float64 `yaml:"dt"`
	StopTime         float64 `yaml:"stop_time"`
	MaxIterations    int     `yaml:"max_iterations"`
	AbsTol           float64 `yaml:"abs_tol"`
	RelTol           float64 `yaml:"rel_tol"`
	CancelCheckSteps int     `yaml:"cancel_check_steps"`
}

// DefaultSettings returns the standard transient configuration.
func DefaultSettings() *RunSettings {
	return &RunSettings{
		Dt:               DefaultDt,
		StopTime:         DefaultStopTime,
		MaxIterations:    DefaultMaxIterations,
		AbsTol:           DefaultAbsTol,
		RelTol:           DefaultRelTol,
		CancelCheckSteps: DefaultCancelCheckSteps,
	}
}

// Validate rejects settings the solver cannot run with.
func (s *RunSettings) Validate() error {
	if s.Dt <= 0 {
		return fmt.Errorf("config: dt must be positive, got %g", s.Dt)
	}
	if s.StopTime <= 0 {
		return fmt.Errorf("config: stop_time must be positive, got %g", s.StopTime)
	}
	if s.MaxIterations <= 0 {
		return fmt.Errorf("config: max_iterations must be positive, got %d", s.MaxIterations)
	}
	return nil
}

// RunOptions maps the settings onto the engine option struct.
func (s *RunSettings) RunOptions() engine.RunOptions {
	return engine.RunOptions{
		Dt:       s.Dt,
		StopTime: s.StopTime,
		Newton: engine.NewtonOptions{
			MaxIterations: s.MaxIterations,
			AbsTol:        s.AbsTol,
			RelTol:        s.RelTol,
		},
		CancelCheckSteps: s.CancelCheckSteps,
	}
}

// Load reads settings from a YAML file, filling unset fields with defaults.
func Load(path string) (*RunSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes settings to a YAML file.
func Save(path string, s *RunSettings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
