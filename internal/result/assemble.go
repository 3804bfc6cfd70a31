package result

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/netlist"
	"github.com/dkoval/circsim/internal/transport"
)

// AssembleDC normalizes whichever native result shape the engine produced
// into one DC result. The three generations expose their solution and
// diagnostics under different names; the type switch resolves the shape
// once instead of probing per field.
func AssembleDC(raw engine.RawResult, nl *netlist.Netlist) *DCResult {
	res := &DCResult{NodeVoltages: map[string]float64{}}

	switch r := raw.(type) {
	case *engine.LegacyRaw:
		res.ErrorMessage = legacyError(r)
		res.Convergence = ConvergenceInfo{
			Converged:  r.Success,
			Iterations: r.Iterations,
		}
		mapSolution(res.NodeVoltages, r.Solution, nl)

	case *engine.V1Raw:
		res.ErrorMessage = r.Err
		if r.Conv != nil {
			res.Convergence = fromV1(r.Conv)
		}
		mapSolution(res.NodeVoltages, r.Solution, nl)

	case *engine.V2Raw:
		res.ErrorMessage = r.ErrorMessage
		if r.Solver != nil {
			res.Convergence = fromV2(r.Solver)
		}
		mapSolution(res.NodeVoltages, r.Solution, nl)

	default:
		res.ErrorMessage = fmt.Sprintf("unrecognized native result shape %T", raw)
	}

	if res.ErrorMessage == "" && !res.Convergence.Converged {
		res.ErrorMessage = synthesizeFailureReason(&res.Convergence)
	}
	return res
}

// AssembleTransient lifts a normalized attempt result into the public
// transient schema.
func AssembleTransient(att *transport.AttemptResult) *TransientResult {
	return &TransientResult{
		Time:         att.Time,
		Signals:      att.Signals,
		Stats:        att.Stats,
		ErrorMessage: att.Err,
	}
}

// AssembleAC splits the engine's flat signal map into magnitude and phase
// tables keyed by node signal name.
func AssembleAC(raw engine.RawResult) *ACResult {
	res := &ACResult{
		Magnitude: map[string][]float64{},
		Phase:     map[string][]float64{},
	}
	var signals map[string][]float64
	switch r := raw.(type) {
	case *engine.LegacyRaw:
		res.ErrorMessage = legacyError(r)
		res.Frequencies = r.Time
		signals = r.Signals
	case *engine.V1Raw:
		res.ErrorMessage = r.Err
		res.Frequencies = r.Time
		signals = r.Signals
	case *engine.V2Raw:
		res.ErrorMessage = r.ErrorMessage
		res.Frequencies = r.Time
		signals = r.Signals
	default:
		res.ErrorMessage = fmt.Sprintf("unrecognized native result shape %T", raw)
		return res
	}
	for name, vals := range signals {
		switch {
		case strings.HasSuffix(name, ".mag"):
			res.Magnitude[strings.TrimSuffix(name, ".mag")] = vals
		case strings.HasSuffix(name, ".phase"):
			res.Phase[strings.TrimSuffix(name, ".phase")] = vals
		}
	}
	return res
}

func legacyError(r *engine.LegacyRaw) string {
	if r.Success {
		return ""
	}
	if r.Message != "" {
		return r.Message
	}
	return "solver reported failure without a message"
}

// mapSolution maps solution-vector indices onto node names. Entries past
// the node count are branch currents and stay out of the voltage map.
func mapSolution(dst map[string]float64, solution []float64, nl *netlist.Netlist) {
	for i := 1; i < nl.NodeCount() && i-1 < len(solution); i++ {
		dst[nl.NodeName(netlist.NodeID(i))] = solution[i-1]
	}
}

func fromV1(c *engine.V1Convergence) ConvergenceInfo {
	info := ConvergenceInfo{
		Converged:     c.Converged,
		Iterations:    c.Iter,
		FinalResidual: c.Residual,
	}
	for _, row := range c.Hist {
		info.History = append(info.History, IterationRecord{
			Residual:     row[0],
			VoltageError: row[1],
			CurrentError: row[2],
			Damping:      row[3],
			StepNorm:     row[4],
		})
	}
	for _, bv := range c.BadVars {
		info.Problematic = append(info.Problematic, ProblematicVariable{
			Index:     bv.Index,
			Name:      bv.Var,
			Value:     bv.Val,
			Change:    bv.Delta,
			Tolerance: bv.Tol,
			NormError: bv.NormErr,
		})
	}
	sortProblematic(info.Problematic)
	return info
}

func fromV2(s *engine.V2Solver) ConvergenceInfo {
	info := ConvergenceInfo{
		Converged:     s.Converged,
		Iterations:    s.NumIterations,
		FinalResidual: s.FinalResidual,
		Strategy:      s.Strategy,
	}
	for _, it := range s.History {
		info.History = append(info.History, IterationRecord{
			Residual:     it.Residual,
			VoltageError: it.VoltageError,
			CurrentError: it.CurrentError,
			Damping:      it.Damping,
			StepNorm:     it.StepNorm,
		})
	}
	for _, p := range s.Problems {
		info.Problematic = append(info.Problematic, ProblematicVariable{
			Index:     p.Index,
			Name:      p.Node,
			Value:     p.Value,
			Change:    p.Change,
			Tolerance: p.Tolerance,
			NormError: p.ErrNorm,
		})
	}
	sortProblematic(info.Problematic)
	return info
}

func sortProblematic(vars []ProblematicVariable) {
	sort.SliceStable(vars, func(a, b int) bool {
		return vars[a].NormError > vars[b].NormError
	})
}

// synthesizeFailureReason builds a human-readable reason when the engine
// reported non-convergence without any diagnostic text.
func synthesizeFailureReason(c *ConvergenceInfo) string {
	if len(c.Problematic) > 0 {
		worst := c.Problematic[0]
		return fmt.Sprintf(
			"solver did not converge after %d iterations; %d variable(s) out of tolerance, worst %s (error %.3gx tolerance)",
			c.Iterations, len(c.Problematic), worst.Name, worst.NormError)
	}
	return fmt.Sprintf("solver did not converge after %d iterations", c.Iterations)
}
