// Package result normalizes the heterogeneous native result shapes of the
// engine's API generations into one schema with convergence diagnostics.
package result

// IterationRecord is one row of the Newton iteration history.
type IterationRecord struct {
	Residual     float64
	VoltageError float64
	CurrentError float64
	Damping      float64
	StepNorm     float64
}

// ProblematicVariable describes one solver unknown that failed to settle.
type ProblematicVariable struct {
	Index     int
	Name      string
	Value     float64
	Change    float64
	Tolerance float64
	// NormError is the error normalized by tolerance; > 1 means out of
	// tolerance. Lists are sorted by this field, worst offender first.
	NormError float64
}

// ConvergenceInfo is the normalized convergence diagnostic block. Built
// once from a raw native result, immutable thereafter.
type ConvergenceInfo struct {
	Converged     bool
	Iterations    int
	FinalResidual float64
	Strategy      string
	History       []IterationRecord
	Problematic   []ProblematicVariable
}

// DCResult is a DC operating-point result.
type DCResult struct {
	NodeVoltages map[string]float64
	Convergence  ConvergenceInfo
	ErrorMessage string // empty = success
}

// TransientResult is a completed (or failed) transient run.
type TransientResult struct {
	Time         []float64
	Signals      map[string][]float64
	Stats        map[string]any
	ErrorMessage string
}

// ACResult is a small-signal frequency sweep.
type ACResult struct {
	Frequencies  []float64
	Magnitude    map[string][]float64
	Phase        map[string][]float64
	ErrorMessage string
}

// ThermalResult is a transient junction-temperature trace.
type ThermalResult struct {
	Time         []float64
	Temperature  []float64
	PeakCelsius  float64
	ErrorMessage string
}
