package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/dkoval/circsim/internal/netlist"
)

const thermalVoltage = 0.025852 // kT/q at 300K

// mnaSystem holds the modified-nodal-analysis layout of one netlist:
// node-voltage unknowns first, then one branch-current unknown per
// voltage-defined device (sources, inductors, transformer primaries), in
// device order so branch currents line up with SignalNames.
type mnaSystem struct {
	nl     *netlist.Netlist
	nNodes int         // including ground
	n      int         // total unknowns
	branch map[int]int // device index -> unknown index

	// gmin is a diagonal conductance added during gmin stepping. srcScale
	// ramps source magnitudes during source stepping. Both are 0/1 in a
	// plain solve.
	gmin     float64
	srcScale float64
}

func newMNASystem(nl *netlist.Netlist) *mnaSystem {
	s := &mnaSystem{
		nl:       nl,
		nNodes:   nl.NodeCount(),
		branch:   make(map[int]int),
		srcScale: 1.0,
	}
	next := s.nNodes - 1
	for i, d := range nl.Devices {
		switch d.Kind {
		case netlist.KindVSource, netlist.KindInductor, netlist.KindTransformer:
			s.branch[i] = next
			next++
		}
	}
	s.n = next
	return s
}

// vIdx maps a node handle to its unknown index; ground returns -1.
func vIdx(n netlist.NodeID) int { return int(n) - 1 }

func (s *mnaSystem) voltage(x []float64, n netlist.NodeID) float64 {
	if n == netlist.Ground {
		return 0
	}
	return x[vIdx(n)]
}

// sourceValue evaluates a source waveform at time t. A negative t selects
// the DC operating-point value.
func sourceValue(d *netlist.Device, t float64) float64 {
	switch d.Metadata["waveform"] {
	case "sine":
		if t < 0 {
			return d.Params["offset"]
		}
		w := 2 * math.Pi * d.Params["frequency"]
		return d.Params["offset"] + d.Params["amplitude"]*math.Sin(w*t+d.Params["phase"])
	case "pulse":
		if t < 0 {
			return d.Params["v_low"]
		}
		period := d.Params["period"]
		phase := math.Mod(t, period) / period
		if phase < d.Params["duty"] {
			return d.Params["v_high"]
		}
		return d.Params["v_low"]
	case "pwm":
		if t < 0 {
			return d.Params["v_low"]
		}
		period := 1 / d.Params["frequency"]
		phase := math.Mod(t, period) / period
		if phase < d.Params["duty"] {
			return d.Params["v_high"]
		}
		return d.Params["v_low"]
	default: // dc
		if v, ok := d.Params["voltage"]; ok {
			return v
		}
		return d.Params["current"]
	}
}

type stamper struct {
	a *mat.Dense
	b *mat.VecDense
}

func (st *stamper) conductance(i, j int, g float64) {
	if i >= 0 {
		st.a.Set(i, i, st.a.At(i, i)+g)
	}
	if j >= 0 {
		st.a.Set(j, j, st.a.At(j, j)+g)
	}
	if i >= 0 && j >= 0 {
		st.a.Set(i, j, st.a.At(i, j)-g)
		st.a.Set(j, i, st.a.At(j, i)-g)
	}
}

func (st *stamper) current(i, j int, val float64) {
	if i >= 0 {
		st.b.SetVec(i, st.b.AtVec(i)-val)
	}
	if j >= 0 {
		st.b.SetVec(j, st.b.AtVec(j)+val)
	}
}

// assemble builds the linearized MNA system at iterate x. prev is the
// previous accepted timestep solution (companion models); dc selects the
// operating-point stamps for reactive devices.
func (s *mnaSystem) assemble(x, prev []float64, t, dt float64, dc bool) (*mat.Dense, *mat.VecDense) {
	st := &stamper{
		a: mat.NewDense(s.n, s.n, nil),
		b: mat.NewVecDense(s.n, nil),
	}

	for i := 0; i < s.nNodes-1; i++ {
		st.a.Set(i, i, st.a.At(i, i)+s.gmin)
	}

	for di := range s.nl.Devices {
		d := &s.nl.Devices[di]
		switch d.Kind {
		case netlist.KindResistor:
			r := d.Params["resistance"]
			if r <= 0 {
				r = 1e-9
			}
			st.conductance(vIdx(d.Nodes[0]), vIdx(d.Nodes[1]), 1/r)

		case netlist.KindCapacitor:
			if dc {
				continue // open circuit at the operating point
			}
			// Backward-Euler companion: g = C/dt in parallel with a
			// current source carrying the previous voltage.
			g := d.Params["capacitance"] / dt
			vPrev := s.voltage(prev, d.Nodes[0]) - s.voltage(prev, d.Nodes[1])
			st.conductance(vIdx(d.Nodes[0]), vIdx(d.Nodes[1]), g)
			st.current(vIdx(d.Nodes[0]), vIdx(d.Nodes[1]), -g*vPrev)

		case netlist.KindInductor:
			k := s.branch[di]
			p, q := vIdx(d.Nodes[0]), vIdx(d.Nodes[1])
			s.stampBranchIncidence(st, k, p, q)
			if dc {
				// Short circuit: v_p - v_q = 0.
				continue
			}
			// Backward Euler: v = (L/dt)(i - iPrev).
			req := d.Params["inductance"] / dt
			st.a.Set(k, k, st.a.At(k, k)-req)
			st.b.SetVec(k, st.b.AtVec(k)-req*prev[k])

		case netlist.KindVSource:
			k := s.branch[di]
			p, q := vIdx(d.Nodes[0]), vIdx(d.Nodes[1])
			s.stampBranchIncidence(st, k, p, q)
			tv := t
			if dc {
				tv = -1
			}
			st.b.SetVec(k, st.b.AtVec(k)+s.srcScale*sourceValue(d, tv))

		case netlist.KindISource:
			tv := t
			if dc {
				tv = -1
			}
			st.current(vIdx(d.Nodes[0]), vIdx(d.Nodes[1]), s.srcScale*sourceValue(d, tv))

		case netlist.KindDiode:
			s.stampDiode(st, d, x)

		case netlist.KindMosfet, netlist.KindIGBT:
			// Behavioral switch: the channel is r_on when the control
			// voltage exceeds the threshold at the current iterate.
			vCtl := s.voltage(x, d.Nodes[1]) - s.voltage(x, d.Nodes[2])
			r := d.Params["r_off"]
			if vCtl >= d.Params["v_th"] {
				r = d.Params["r_on"]
			}
			st.conductance(vIdx(d.Nodes[0]), vIdx(d.Nodes[2]), 1/r)

		case netlist.KindSwitch:
			vCtl := s.voltage(x, d.Nodes[2])
			r := d.Params["r_off"]
			if vCtl >= d.Params["threshold"] {
				r = d.Params["r_on"]
			}
			st.conductance(vIdx(d.Nodes[0]), vIdx(d.Nodes[1]), 1/r)

		case netlist.KindTransformer:
			// Ideal transformer with turns ratio n: vp = n*vs, and the
			// secondary carries -n times the primary branch current.
			k := s.branch[di]
			ratio := d.Params["ratio"]
			p1, p2 := vIdx(d.Nodes[0]), vIdx(d.Nodes[1])
			s1, s2 := vIdx(d.Nodes[2]), vIdx(d.Nodes[3])
			s.stampBranchIncidence(st, k, p1, p2)
			if s1 >= 0 {
				st.a.Set(s1, k, st.a.At(s1, k)-ratio)
				st.a.Set(k, s1, st.a.At(k, s1)-ratio)
			}
			if s2 >= 0 {
				st.a.Set(s2, k, st.a.At(s2, k)+ratio)
				st.a.Set(k, s2, st.a.At(k, s2)+ratio)
			}

		case netlist.KindVirtual:
			// Virtual components carry no built-in physics.
		}
	}

	return st.a, st.b
}

// stampBranchIncidence wires branch unknown k to nodes p/q: current
// injection rows and the voltage constraint columns.
func (s *mnaSystem) stampBranchIncidence(st *stamper, k, p, q int) {
	if p >= 0 {
		st.a.Set(p, k, st.a.At(p, k)+1)
		st.a.Set(k, p, st.a.At(k, p)+1)
	}
	if q >= 0 {
		st.a.Set(q, k, st.a.At(q, k)-1)
		st.a.Set(k, q, st.a.At(k, q)-1)
	}
}

func (s *mnaSystem) stampDiode(st *stamper, d *netlist.Device, x []float64) {
	isat := d.Params["is"]
	nf := d.Params["n"]
	vt := nf * thermalVoltage
	vd := s.voltage(x, d.Nodes[0]) - s.voltage(x, d.Nodes[1])

	// Clamp the junction voltage fed to the exponential so the stamp stays
	// finite far from the solution.
	ve := vd
	if ve > 0.9 {
		ve = 0.9
	}
	exp := math.Exp(ve / vt)
	id := isat * (exp - 1)
	g := isat * exp / vt
	if g < 1e-12 {
		g = 1e-12
	}
	// Linearize around the clamped voltage: the tangent there pulls a far
	// iterate back toward the junction instead of chasing the overflow.
	ieq := id - g*ve

	p, q := vIdx(d.Nodes[0]), vIdx(d.Nodes[1])
	st.conductance(p, q, g)
	st.current(p, q, ieq)

	// Zener breakdown: a stiff reverse branch past -vz.
	if vz, ok := d.Params["vz"]; ok && vd < -vz {
		gz := 1.0 // breakdown slope conductance
		iz := gz * (vd + vz)
		st.conductance(p, q, gz)
		st.current(p, q, iz-gz*vd)
	}
}

// newtonOutcome captures everything one nonlinear solve produced, whether
// or not it converged.
type newtonOutcome struct {
	x          []float64
	iterations int
	converged  bool
	residual   float64
	history    []V2Iteration
	problems   []V2Problem
	message    string
}

// solveNewton iterates the linearized system until the update is within
// tolerance or the iteration budget is spent.
func (s *mnaSystem) solveNewton(x0, prev []float64, t, dt float64, opts NewtonOptions, dc bool) newtonOutcome {
	out := newtonOutcome{x: append([]float64(nil), x0...)}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 50
	}
	absTol := opts.AbsTol
	if absTol <= 0 {
		absTol = 1e-6
	}
	relTol := opts.RelTol
	if relTol <= 0 {
		relTol = 1e-3
	}

	xNew := mat.NewVecDense(s.n, nil)
	step := make([]float64, s.n)
	for it := 0; it < maxIter; it++ {
		a, b := s.assemble(out.x, prev, t, dt, dc)

		var lu mat.LU
		lu.Factorize(a)
		if err := lu.SolveVecTo(xNew, false, b); err != nil {
			out.iterations = it + 1
			out.message = fmt.Sprintf("singular matrix at t=%.6g: %v", t, err)
			return out
		}

		// Convergence is judged on the proposed full step before damping: a
		// fresh linearization that barely moves the iterate means the iterate
		// is self-consistent. Measuring after the update would compare the
		// iterate against itself.
		settled := true
		damping := 1.0
		for i := 0; i < s.n; i++ {
			dx := xNew.AtVec(i) - out.x[i]
			step[i] = dx
			if math.Abs(dx) > absTol+relTol*math.Abs(out.x[i]) {
				settled = false
			}
			if i < s.nNodes-1 {
				if opts.MaxVoltageStep > 0 && math.Abs(dx) > opts.MaxVoltageStep {
					d := opts.MaxVoltageStep / math.Abs(dx)
					if d < damping {
						damping = d
					}
				} else if opts.ForceVoltageLimiting && math.Abs(dx) > 10*thermalVoltage {
					d := 10 * thermalVoltage / math.Abs(dx)
					if d < damping {
						damping = d
					}
				}
			}
		}

		var vErr, iErr, stepSq float64
		for i := 0; i < s.n; i++ {
			dx := damping * step[i]
			out.x[i] += dx
			stepSq += dx * dx
			if i < s.nNodes-1 {
				vErr = math.Max(vErr, math.Abs(dx))
			} else {
				iErr = math.Max(iErr, math.Abs(dx))
			}
		}

		out.iterations = it + 1
		out.residual = math.Sqrt(stepSq)
		out.history = append(out.history, V2Iteration{
			Residual:     out.residual,
			VoltageError: vErr,
			CurrentError: iErr,
			Damping:      damping,
			StepNorm:     math.Sqrt(stepSq),
		})

		if !out.valid() {
			out.message = fmt.Sprintf("solution diverged at t=%.6g (NaN/Inf)", t)
			return out
		}

		if settled && damping == 1.0 {
			out.converged = true
			return out
		}
	}

	out.problems = s.collectProblems(out.x, step, absTol, relTol)
	out.message = fmt.Sprintf("Newton failed to converge after %d iterations at t=%.6g", out.iterations, t)
	return out
}

func (o *newtonOutcome) valid() bool {
	for _, v := range o.x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// collectProblems lists the unknowns whose last proposed Newton step was
// still outside tolerance, worst first.
func (s *mnaSystem) collectProblems(x, step []float64, absTol, relTol float64) []V2Problem {
	var out []V2Problem
	for i, v := range x {
		lim := absTol + relTol*math.Abs(v)
		norm := math.Abs(step[i]) / lim
		if norm <= 1 {
			continue
		}
		name := fmt.Sprintf("i[%d]", i)
		if i < s.nNodes-1 {
			name = "V(" + s.nl.NodeName(netlist.NodeID(i+1)) + ")"
		}
		out = append(out, V2Problem{
			Index:     i,
			Node:      name,
			Value:     v,
			Change:    step[i],
			Tolerance: lim,
			ErrNorm:   norm,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ErrNorm > out[b].ErrNorm })
	return out
}

// operatingPoint finds the DC solution using the requested seeding strategy.
func (s *mnaSystem) operatingPoint(opts NewtonOptions) newtonOutcome {
	x0 := make([]float64, s.n)

	switch opts.Seeding {
	case SeedGmin:
		// Conductance stepping: start heavily damped and relax by decades.
		total := 0
		var hist []V2Iteration
		for _, g := range []float64{1e-2, 1e-4, 1e-6, 1e-9, 1e-12, 0} {
			s.gmin = g
			out := s.solveNewton(x0, x0, 0, 0, opts, true)
			total += out.iterations
			hist = append(hist, out.history...)
			if out.converged {
				x0 = out.x
			}
			if g == 0 {
				s.gmin = 0
				out.iterations = total
				out.history = hist
				return out
			}
		}
	case SeedSource:
		// Source stepping: ramp sources from 10% to full scale.
		total := 0
		var hist []V2Iteration
		var out newtonOutcome
		for _, sc := range []float64{0.1, 0.25, 0.5, 0.75, 1.0} {
			s.srcScale = sc
			out = s.solveNewton(x0, x0, 0, 0, opts, true)
			total += out.iterations
			hist = append(hist, out.history...)
			if out.converged {
				x0 = out.x
			}
		}
		s.srcScale = 1.0
		out.iterations = total
		out.history = hist
		return out
	case SeedPseudoTransient:
		// March a few artificial timesteps from the zero state, then
		// release into a plain operating-point solve.
		prev := make([]float64, s.n)
		for _, dt := range []float64{1e-3, 1e-2, 1e-1} {
			out := s.solveNewton(prev, prev, 0, dt, opts, false)
			if out.converged {
				prev = out.x
			}
		}
		return s.solveNewton(prev, prev, 0, 0, opts, true)
	}

	return s.solveNewton(x0, x0, 0, 0, opts, true)
}
