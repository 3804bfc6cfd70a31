package engine

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/dkoval/circsim/internal/netlist"
	"github.com/dkoval/circsim/internal/schematic"
)

// CancelledMessage is the canonical error text of a cancelled run.
const CancelledMessage = "Simulation cancelled"

// Reference is the built-in solver adapter. It speaks the v2 API generation
// and exposes all three transient execution entry points, so the transport
// and retry layers can be exercised end-to-end without a native engine.
type Reference struct {
	placements map[string]schematic.Layout
}

// NewReference returns a ready-to-use built-in engine.
func NewReference() *Reference {
	return &Reference{placements: make(map[string]schematic.Layout)}
}

func (e *Reference) Name() string           { return "reference-mna" }
func (e *Reference) Generation() Generation { return GenV2 }

func (e *Reference) Capabilities() Capabilities {
	return Capabilities{Transient: true, DC: true, AC: true, Layout: true}
}

// PlaceDevice records editor placement. The reference solver has no use for
// geometry; it keeps the data so round-trips preserve it.
func (e *Reference) PlaceDevice(name string, l schematic.Layout) error {
	e.placements[name] = l
	return nil
}

// simulate is the shared transient core. emit is called once per accepted
// step with the row values in SignalNames order; returning false cancels
// the run.
func (e *Reference) simulate(nl *netlist.Netlist, opts RunOptions, emit func(step, total int, t float64, vals []float64) bool) *V2Raw {
	sys := newMNASystem(nl)
	names := SignalNames(nl)
	total := opts.Steps()

	raw := &V2Raw{
		Signals: make(map[string][]float64, len(names)),
		Stats:   map[string]float64{},
	}

	op := sys.operatingPoint(opts.Newton)
	raw.Stats["dc_iterations"] = float64(op.iterations)
	if !op.converged {
		raw.ErrorMessage = op.message
		raw.Solver = outcomeToSolver(&op, opts.Newton)
		return raw
	}

	x := op.x
	totalNewton := 0
	t := 0.0
	for step := 0; step < total; step++ {
		vals := sys.rowValues(x)
		raw.Time = append(raw.Time, t)
		for i, name := range names {
			raw.Signals[name] = append(raw.Signals[name], vals[i])
		}
		if !emit(step, total, t, vals) {
			raw.ErrorMessage = CancelledMessage
			return raw
		}
		if step == total-1 {
			break
		}

		t += opts.Dt
		out := sys.solveNewton(x, x, t, opts.Dt, opts.Newton, false)
		totalNewton += out.iterations
		if !out.converged {
			raw.ErrorMessage = out.message
			raw.Solver = outcomeToSolver(&out, opts.Newton)
			raw.Stats["newton_iterations"] = float64(totalNewton)
			return raw
		}
		x = out.x
	}

	raw.Stats["steps"] = float64(len(raw.Time))
	raw.Stats["newton_iterations"] = float64(totalNewton)
	raw.Solution = append([]float64(nil), x...)
	raw.Solver = &V2Solver{
		Converged:     true,
		NumIterations: totalNewton,
		Strategy:      opts.Newton.Seeding.String(),
	}
	return raw
}

// rowValues flattens one solution vector into SignalNames order: node
// voltages first, then branch currents in device order.
func (s *mnaSystem) rowValues(x []float64) []float64 {
	vals := make([]float64, 0, s.n)
	vals = append(vals, x[:s.nNodes-1]...)
	for di := range s.nl.Devices {
		if k, ok := s.branch[di]; ok {
			vals = append(vals, x[k])
		}
	}
	return vals
}

func outcomeToSolver(o *newtonOutcome, opts NewtonOptions) *V2Solver {
	return &V2Solver{
		Converged:     o.converged,
		NumIterations: o.iterations,
		FinalResidual: o.residual,
		Strategy:      opts.Seeding.String(),
		History:       o.history,
		Problems:      o.problems,
	}
}

// RunBatch is the chunked entry point: one blocking call, full arrays.
func (e *Reference) RunBatch(ctx context.Context, nl *netlist.Netlist, opts RunOptions) (RawResult, error) {
	every := pollEvery(opts)
	raw := e.simulate(nl, opts, func(step, total int, t float64, vals []float64) bool {
		if step%every != 0 {
			return true
		}
		return ctx.Err() == nil
	})
	return raw, nil
}

// RunStreaming invokes the per-step callback surface, throttled to
// hooks.EmitEvery steps.
func (e *Reference) RunStreaming(ctx context.Context, nl *netlist.Netlist, opts RunOptions, hooks StreamHooks) (RawResult, error) {
	names := SignalNames(nl)
	emitEvery := hooks.EmitEvery
	if emitEvery < 1 {
		emitEvery = 1
	}
	pollAt := pollEvery(opts)

	raw := e.simulate(nl, opts, func(step, total int, t float64, vals []float64) bool {
		if step%pollAt == 0 {
			if hooks.WaitIfPaused != nil {
				hooks.WaitIfPaused()
			}
			if ctx.Err() != nil {
				return false
			}
			if hooks.Cancelled != nil && hooks.Cancelled() {
				return false
			}
		}
		if step%emitEvery != 0 && step != total-1 {
			return true
		}
		if hooks.OnProgress != nil && total > 0 {
			hooks.OnProgress(100 * float64(step+1) / float64(total))
		}
		if hooks.OnData != nil {
			sample := make(map[string]float64, len(names))
			for i, n := range names {
				sample[n] = vals[i]
			}
			hooks.OnData(t, sample)
		}
		return true
	})
	return raw, nil
}

// RunShared steps the solver while appending rows into the caller-owned
// buffer. The call is synchronous; the transport runs it on a worker and
// polls the buffer's status word.
func (e *Reference) RunShared(nl *netlist.Netlist, opts RunOptions, buf *SharedBuffer) error {
	pollAt := pollEvery(opts)
	raw := e.simulate(nl, opts, func(step, total int, t float64, vals []float64) bool {
		if step%pollAt == 0 {
			buf.BlockWhilePaused()
			if buf.CancelRequested() {
				return false
			}
		}
		buf.Append(t, vals)
		return true
	})

	switch {
	case raw.ErrorMessage == CancelledMessage:
		buf.Finish(StatusCancelled, ErrCodeNone, CancelledMessage)
	case raw.ErrorMessage != "":
		buf.Finish(StatusError, ErrCodeConvergence, raw.ErrorMessage)
	default:
		buf.Finish(StatusCompleted, ErrCodeNone, "")
	}
	return nil
}

// RunDC computes the operating point with full convergence diagnostics.
func (e *Reference) RunDC(ctx context.Context, nl *netlist.Netlist, opts NewtonOptions) (RawResult, error) {
	if ctx.Err() != nil {
		return &V2Raw{ErrorMessage: CancelledMessage}, nil
	}
	sys := newMNASystem(nl)
	out := sys.operatingPoint(opts)

	raw := &V2Raw{
		Stats:  map[string]float64{"dc_iterations": float64(out.iterations)},
		Solver: outcomeToSolver(&out, opts),
	}
	if out.converged {
		raw.Solution = append([]float64(nil), out.x...)
	} else {
		raw.ErrorMessage = out.message
	}
	return raw, nil
}

// RunAC sweeps the linearized circuit over the given frequencies. The Time
// axis of the result carries the frequency points; each node contributes a
// magnitude and a phase signal.
func (e *Reference) RunAC(ctx context.Context, nl *netlist.Netlist, freqs []float64) (RawResult, error) {
	sys := newMNASystem(nl)
	raw := &V2Raw{
		Time:    append([]float64(nil), freqs...),
		Signals: make(map[string][]float64),
		Stats:   map[string]float64{"points": float64(len(freqs))},
	}

	for _, f := range freqs {
		if ctx.Err() != nil {
			raw.ErrorMessage = CancelledMessage
			return raw, nil
		}
		x, err := sys.solveAC(2 * math.Pi * f)
		if err != nil {
			raw.ErrorMessage = fmt.Sprintf("AC solve failed at %g Hz: %v", f, err)
			return raw, nil
		}
		for i := 1; i < sys.nNodes; i++ {
			name := "V(" + nl.NodeName(netlist.NodeID(i)) + ")"
			raw.Signals[name+".mag"] = append(raw.Signals[name+".mag"], cmplx.Abs(x[i-1]))
			raw.Signals[name+".phase"] = append(raw.Signals[name+".phase"], cmplx.Phase(x[i-1]))
		}
	}
	return raw, nil
}

func pollEvery(opts RunOptions) int {
	if opts.CancelCheckSteps > 0 {
		return opts.CancelCheckSteps
	}
	return 64
}
