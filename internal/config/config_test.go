package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if s.Dt != DefaultDt || s.StopTime != DefaultStopTime {
		t.Errorf("unexpected defaults: dt=%g stop=%g", s.Dt, s.StopTime)
	}
	opts := s.RunOptions()
	if opts.Newton.MaxIterations != DefaultMaxIterations {
		t.Errorf("max iterations = %d", opts.Newton.MaxIterations)
	}
	if opts.CancelCheckSteps != DefaultCancelCheckSteps {
		t.Errorf("cancel check steps = %d", opts.CancelCheckSteps)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunSettings)
	}{
		{"zero dt", func(s *RunSettings) { s.Dt = 0 }},
		{"negative dt", func(s *RunSettings) { s.Dt = -1e-6 }},
		{"zero stop time", func(s *RunSettings) { s.StopTime = 0 }},
		{"zero iterations", func(s *RunSettings) { s.MaxIterations = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	want := &RunSettings{
		Dt:               2e-6,
		StopTime:         5e-3,
		MaxIterations:    80,
		AbsTol:           1e-9,
		RelTol:           1e-6,
		CancelCheckSteps: 32,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch: %+v != %+v", got, want)
	}
}

func TestLoadFillsDefaultsForUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("dt: 1.0e-7\nstop_time: 2.0e-3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Dt != 1e-7 || s.StopTime != 2e-3 {
		t.Errorf("explicit fields lost: %+v", s)
	}
	if s.MaxIterations != DefaultMaxIterations || s.CancelCheckSteps != DefaultCancelCheckSteps {
		t.Errorf("defaults not filled: %+v", s)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("dt: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error")
	}
}
