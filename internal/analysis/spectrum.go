// Package analysis provides frequency-domain post-processing of sampled
// waveforms.
package analysis

import (
	"errors"
	"math"
	"math/cmplx"
)

// ErrTooShort indicates a waveform with fewer than two samples.
var ErrTooShort = errors.New("analysis: waveform too short for a spectrum")

// FFT computes the discrete Fourier transform with a radix-2
// decimation-in-time split. The input length must be a power of two.
func FFT(data []float64) []complex128 {
	n := len(data)
	out := make([]complex128, n)
	for i, v := range data {
		out[i] = complex(v, 0)
	}
	if n <= 1 {
		return out
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := FFT(even)
	fodd := FFT(odd)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		out[k] = feven[k] + w*fodd[k]
		out[k+n/2] = feven[k] - w*fodd[k]
	}
	return out
}

// Spectrum is the single-sided magnitude spectrum of a uniformly sampled
// waveform.
type Spectrum struct {
	Frequencies []float64 // Hz, bin centers up to Nyquist
	Magnitude   []float64 // amplitude per bin
}

// ComputeSpectrum transforms a waveform sampled at fixed dt. The signal is
// truncated to the largest power-of-two prefix; magnitudes are scaled so a
// pure sine of amplitude A shows A in its bin.
func ComputeSpectrum(values []float64, dt float64) (*Spectrum, error) {
	if len(values) < 2 || dt <= 0 {
		return nil, ErrTooShort
	}

	n := 1
	for n*2 <= len(values) {
		n *= 2
	}
	bins := FFT(values[:n])

	half := n / 2
	sp := &Spectrum{
		Frequencies: make([]float64, half),
		Magnitude:   make([]float64, half),
	}
	fs := 1.0 / dt
	for k := 0; k < half; k++ {
		sp.Frequencies[k] = float64(k) * fs / float64(n)
		mag := cmplx.Abs(bins[k]) / float64(n)
		if k > 0 {
			mag *= 2 // fold the negative-frequency half into the bin
		}
		sp.Magnitude[k] = mag
	}
	return sp, nil
}

// DominantFrequency returns the bin with the largest magnitude, ignoring DC.
func (s *Spectrum) DominantFrequency() (freq, magnitude float64) {
	for k := 1; k < len(s.Magnitude); k++ {
		if s.Magnitude[k] > magnitude {
			magnitude = s.Magnitude[k]
			freq = s.Frequencies[k]
		}
	}
	return freq, magnitude
}
