package engine

import (
	"errors"
	"math/cmplx"

	"github.com/dkoval/circsim/internal/netlist"
)

var errSingularAC = errors.New("engine: singular AC system")

// solveAC assembles and solves the small-signal system at angular frequency
// w. Nonlinear devices are linearized at zero bias; sine sources drive the
// sweep, all other sources are quiesced.
func (s *mnaSystem) solveAC(w float64) ([]complex128, error) {
	n := s.n
	a := make([][]complex128, n)
	for i := range a {
		a[i] = make([]complex128, n)
	}
	b := make([]complex128, n)

	addG := func(p, q int, g complex128) {
		if p >= 0 {
			a[p][p] += g
		}
		if q >= 0 {
			a[q][q] += g
		}
		if p >= 0 && q >= 0 {
			a[p][q] -= g
			a[q][p] -= g
		}
	}
	branchIncidence := func(k, p, q int) {
		if p >= 0 {
			a[p][k]++
			a[k][p]++
		}
		if q >= 0 {
			a[q][k]--
			a[k][q]--
		}
	}

	for di := range s.nl.Devices {
		d := &s.nl.Devices[di]
		p := vIdx(d.Nodes[0])
		q := -1
		if len(d.Nodes) > 1 {
			q = vIdx(d.Nodes[1])
		}
		switch d.Kind {
		case netlist.KindResistor:
			addG(p, q, complex(1/d.Params["resistance"], 0))
		case netlist.KindCapacitor:
			addG(p, q, complex(0, w*d.Params["capacitance"]))
		case netlist.KindInductor:
			k := s.branch[di]
			branchIncidence(k, p, q)
			a[k][k] -= complex(0, w*d.Params["inductance"])
		case netlist.KindVSource:
			k := s.branch[di]
			branchIncidence(k, p, q)
			if d.Metadata["waveform"] == "sine" {
				b[k] += cmplx.Rect(d.Params["amplitude"], d.Params["phase"])
			}
		case netlist.KindISource:
			// Quiesced in the small-signal sweep.
		case netlist.KindDiode:
			g := d.Params["is"] / (d.Params["n"] * thermalVoltage)
			addG(p, q, complex(g, 0))
		case netlist.KindMosfet, netlist.KindIGBT:
			addG(p, vIdx(d.Nodes[2]), complex(1/d.Params["r_off"], 0))
		case netlist.KindSwitch:
			addG(p, q, complex(1/d.Params["r_off"], 0))
		case netlist.KindTransformer:
			k := s.branch[di]
			ratio := complex(d.Params["ratio"], 0)
			s1, s2 := vIdx(d.Nodes[2]), vIdx(d.Nodes[3])
			branchIncidence(k, p, q)
			if s1 >= 0 {
				a[s1][k] -= ratio
				a[k][s1] -= ratio
			}
			if s2 >= 0 {
				a[s2][k] += ratio
				a[k][s2] += ratio
			}
		}
	}

	return gaussComplex(a, b)
}

// gaussComplex solves a dense complex system with partial pivoting.
func gaussComplex(a [][]complex128, b []complex128) ([]complex128, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if cmplx.Abs(a[r][col]) > cmplx.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if cmplx.Abs(a[pivot][col]) < 1e-14 {
			return nil, errSingularAC
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	x := make([]complex128, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}
