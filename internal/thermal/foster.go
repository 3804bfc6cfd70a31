// Package thermal models transient junction-temperature rise with a Foster
// RC ladder driven by a dissipated-power waveform.
package thermal

import (
	"errors"
	"math"

	"github.com/dkoval/circsim/internal/result"
)

// ErrLengthMismatch indicates time and power arrays of different lengths.
var ErrLengthMismatch = errors.New("thermal: time and power arrays must have equal length")

// ErrNoStages indicates an empty Foster ladder.
var ErrNoStages = errors.New("thermal: network has no stages")

// Stage is one RC rung of the ladder.
type Stage struct {
	R   float64 `yaml:"r"`   // thermal resistance, K/W
	Tau float64 `yaml:"tau"` // time constant, s
}

// FosterNetwork is a ladder of thermal stages above an ambient temperature.
type FosterNetwork struct {
	Stages  []Stage `yaml:"stages"`
	Ambient float64 `yaml:"ambient"` // degrees Celsius
}

// Impedance evaluates the step-response thermal impedance Zth(t).
func (n *FosterNetwork) Impedance(t float64) float64 {
	z := 0.0
	for _, s := range n.Stages {
		z += s.R * (1 - math.Exp(-t/s.Tau))
	}
	return z
}

// Response computes the junction temperature trace for a power waveform.
// Each stage is advanced with its exact single-pole discretization, so the
// result is stable for any timestep.
func (n *FosterNetwork) Response(time, power []float64) (*result.ThermalResult, error) {
	if len(time) != len(power) {
		return nil, ErrLengthMismatch
	}
	if len(n.Stages) == 0 {
		return nil, ErrNoStages
	}

	res := &result.ThermalResult{
		Time:        append([]float64(nil), time...),
		Temperature: make([]float64, len(time)),
	}

	state := make([]float64, len(n.Stages))
	for k := range time {
		if k > 0 {
			dt := time[k] - time[k-1]
			for i, s := range n.Stages {
				a := math.Exp(-dt / s.Tau)
				state[i] = state[i]*a + power[k]*s.R*(1-a)
			}
		}
		temp := n.Ambient
		for _, x := range state {
			temp += x
		}
		res.Temperature[k] = temp
		if temp > res.PeakCelsius {
			res.PeakCelsius = temp
		}
	}
	return res, nil
}
