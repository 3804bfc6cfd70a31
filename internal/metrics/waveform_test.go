package metrics

import (
	"math"
	"testing"
)

func TestBasicMeasurements(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	if m := Mean(vals); m != 2.5 {
		t.Errorf("mean = %g, want 2.5", m)
	}
	want := math.Sqrt((1 + 4 + 9 + 16) / 4.0)
	if r := RMS(vals); math.Abs(r-want) > 1e-12 {
		t.Errorf("rms = %g, want %g", r, want)
	}
	if pp := PeakToPeak(vals); pp != 3 {
		t.Errorf("peak-to-peak = %g, want 3", pp)
	}
	if Mean(nil) != 0 || RMS(nil) != 0 || PeakToPeak(nil) != 0 {
		t.Error("empty input must measure zero")
	}
}

func TestSineRMS(t *testing.T) {
	dt := 1.0 / 10000
	vals := make([]float64, 10000) // exactly one period of 1Hz
	for i := range vals {
		vals[i] = 5 * math.Sin(2*math.Pi*float64(i)*dt)
	}
	want := 5 / math.Sqrt2
	if r := RMS(vals); math.Abs(r-want) > 1e-3 {
		t.Errorf("sine rms = %g, want %g", r, want)
	}
}

func TestRipple(t *testing.T) {
	// 12V rail with 0.6V peak-to-peak ripple: 5%.
	vals := []float64{11.7, 12.3, 11.7, 12.3}
	if r := Ripple(vals); math.Abs(r-0.05) > 1e-9 {
		t.Errorf("ripple = %g, want 0.05", r)
	}
	flat := []float64{5, 5, 5}
	if Ripple(flat) != 0 {
		t.Error("flat rail must have zero ripple")
	}
}

func TestTHDPureSineIsNearZero(t *testing.T) {
	dt := 1.0 / 64000
	vals := make([]float64, 1024)
	for i := range vals {
		vals[i] = math.Sin(2 * math.Pi * 1000 * float64(i) * dt)
	}
	if thd := THD(vals, dt); thd > 1e-6 {
		t.Errorf("pure sine THD = %g, want ~0", thd)
	}
}

func TestTHDDetectsThirdHarmonic(t *testing.T) {
	dt := 1.0 / 64000
	vals := make([]float64, 1024)
	for i := range vals {
		tm := float64(i) * dt
		vals[i] = math.Sin(2*math.Pi*1000*tm) + 0.2*math.Sin(2*math.Pi*3000*tm)
	}
	thd := THD(vals, dt)
	if math.Abs(thd-0.2) > 0.01 {
		t.Errorf("THD = %g, want ~0.2", thd)
	}
}

func TestOvershoot(t *testing.T) {
	vals := []float64{0, 0.8, 1.3, 1.1, 1.0, 1.0}
	if o := Overshoot(vals); math.Abs(o-0.3) > 1e-9 {
		t.Errorf("overshoot = %g, want 0.3", o)
	}
	monotone := []float64{0, 0.5, 0.9, 1.0}
	if Overshoot(monotone) != 0 {
		t.Error("monotone rise must have zero overshoot")
	}
}

func TestSettlingTime(t *testing.T) {
	time := []float64{0, 1, 2, 3, 4, 5}
	vals := []float64{0, 1.5, 0.7, 1.01, 0.99, 1.0}
	// Within 2% of the final value from t=3 onward.
	if s := SettlingTime(time, vals, 0.02); s != 3 {
		t.Errorf("settling time = %g, want 3", s)
	}
	// Never settles inside a tighter band until the last sample.
	if s := SettlingTime(time, vals, 0.001); s != 5 {
		t.Errorf("settling time = %g, want 5", s)
	}
}

func TestSummarize(t *testing.T) {
	dt := 1.0 / 64000
	vals := make([]float64, 1024)
	for i := range vals {
		vals[i] = 2 + math.Sin(2*math.Pi*1000*float64(i)*dt)
	}
	s := Summarize(vals, dt)
	if math.Abs(s.Mean-2) > 1e-3 {
		t.Errorf("mean = %g, want 2", s.Mean)
	}
	if math.Abs(s.PeakToPeak-2) > 1e-3 {
		t.Errorf("peak-to-peak = %g, want 2", s.PeakToPeak)
	}
}
