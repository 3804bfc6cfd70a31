// Package metrics computes summary measurements over simulated waveforms:
// RMS, ripple, total harmonic distortion and settling behavior.
package metrics

import (
	"math"

	"github.com/dkoval/circsim/internal/analysis"
)

// Mean is the arithmetic average of the samples.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// RMS is the root-mean-square value of the samples.
func RMS(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(values)))
}

// PeakToPeak is max minus min.
func PeakToPeak(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// Ripple is peak-to-peak swing relative to the mean, as a fraction. A pure
// DC rail returns 0; a zero-mean waveform returns +Inf.
func Ripple(values []float64) float64 {
	m := Mean(values)
	pp := PeakToPeak(values)
	if pp == 0 {
		return 0
	}
	return pp / math.Abs(m)
}

// THD is the total harmonic distortion of a waveform sampled at dt,
// referenced to the dominant spectral component. Returns 0 when no
// fundamental can be identified.
func THD(values []float64, dt float64) float64 {
	sp, err := analysis.ComputeSpectrum(values, dt)
	if err != nil {
		return 0
	}
	fund, mag := sp.DominantFrequency()
	if mag == 0 {
		return 0
	}

	harmonics := 0.0
	for k := 1; k < len(sp.Frequencies); k++ {
		if sp.Frequencies[k] == fund {
			continue
		}
		// Only count bins near integer multiples of the fundamental.
		ratio := sp.Frequencies[k] / fund
		if math.Abs(ratio-math.Round(ratio)) < 0.02 && ratio > 1.5 {
			harmonics += sp.Magnitude[k] * sp.Magnitude[k]
		}
	}
	return math.Sqrt(harmonics) / mag
}

// Overshoot is the fraction by which the waveform exceeds its final value,
// relative to that final value. Zero when the final value is zero or the
// peak never exceeds it.
func Overshoot(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	final := values[len(values)-1]
	if final == 0 {
		return 0
	}
	peak := values[0]
	for _, v := range values[1:] {
		peak = math.Max(peak, v)
	}
	if over := (peak - final) / math.Abs(final); over > 0 {
		return over
	}
	return 0
}

// SettlingTime is the earliest time after which the waveform stays within
// band (a fraction, e.g. 0.02) of its final value. Returns the last
// timestamp when the waveform never settles.
func SettlingTime(time, values []float64, band float64) float64 {
	if len(time) == 0 || len(time) != len(values) {
		return 0
	}
	final := values[len(values)-1]
	tol := band * math.Abs(final)
	if tol == 0 {
		tol = band
	}

	settled := time[len(time)-1]
	for i := len(values) - 1; i >= 0; i-- {
		if math.Abs(values[i]-final) > tol {
			break
		}
		settled = time[i]
	}
	return settled
}

// Summary bundles the standard measurement set for one signal.
type Summary struct {
	Mean       float64
	RMS        float64
	PeakToPeak float64
	THD        float64
}

// Summarize measures a waveform sampled at dt.
func Summarize(values []float64, dt float64) Summary {
	return Summary{
		Mean:       Mean(values),
		RMS:        RMS(values),
		PeakToPeak: PeakToPeak(values),
		THD:        THD(values, dt),
	}
}
