package analysis

import (
	"errors"
	"math"
	"testing"
)

func sine(n int, dt, freq, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)*dt)
	}
	return out
}

func TestSpectrumRecoversSineAmplitude(t *testing.T) {
	// 1kHz sine sampled at 64kHz over exactly 16 cycles: the fundamental
	// lands on a bin with no leakage.
	dt := 1.0 / 64000
	data := sine(1024, dt, 1000, 3.0)

	sp, err := ComputeSpectrum(data, dt)
	if err != nil {
		t.Fatalf("spectrum: %v", err)
	}
	freq, mag := sp.DominantFrequency()
	if math.Abs(freq-1000) > 1e-9 {
		t.Errorf("dominant frequency = %g, want 1000", freq)
	}
	if math.Abs(mag-3.0) > 1e-9 {
		t.Errorf("amplitude = %g, want 3", mag)
	}
}

func TestSpectrumDCComponent(t *testing.T) {
	dt := 1e-5
	data := make([]float64, 256)
	for i := range data {
		data[i] = 7.5
	}
	sp, err := ComputeSpectrum(data, dt)
	if err != nil {
		t.Fatalf("spectrum: %v", err)
	}
	if math.Abs(sp.Magnitude[0]-7.5) > 1e-9 {
		t.Errorf("DC bin = %g, want 7.5", sp.Magnitude[0])
	}
	for k := 1; k < len(sp.Magnitude); k++ {
		if sp.Magnitude[k] > 1e-9 {
			t.Fatalf("bin %d = %g, want 0", k, sp.Magnitude[k])
		}
	}
}

func TestSpectrumTruncatesToPowerOfTwo(t *testing.T) {
	dt := 1.0 / 64000
	data := sine(1100, dt, 1000, 1.0) // not a power of two
	sp, err := ComputeSpectrum(data, dt)
	if err != nil {
		t.Fatalf("spectrum: %v", err)
	}
	if len(sp.Frequencies) != 512 {
		t.Errorf("bins = %d, want 512", len(sp.Frequencies))
	}
}

func TestSpectrumRejectsShortInput(t *testing.T) {
	if _, err := ComputeSpectrum([]float64{1}, 1e-6); !errors.Is(err, ErrTooShort) {
		t.Errorf("err = %v, want ErrTooShort", err)
	}
	if _, err := ComputeSpectrum([]float64{1, 2}, 0); !errors.Is(err, ErrTooShort) {
		t.Errorf("err = %v, want ErrTooShort for zero dt", err)
	}
}

func TestFFTMatchesParsevalForImpulse(t *testing.T) {
	data := make([]float64, 8)
	data[0] = 1
	bins := FFT(data)
	for i, b := range bins {
		if math.Abs(real(b)-1) > 1e-12 || math.Abs(imag(b)) > 1e-12 {
			t.Errorf("bin %d = %v, want 1+0i", i, b)
		}
	}
}
