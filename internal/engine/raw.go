package engine

// RawResult is the sealed union of native result shapes. Exactly one
// concrete type exists per API generation; the result assembler switches on
// the concrete type instead of probing field names.
type RawResult interface {
	RawGeneration() Generation
}

// LegacyRaw is the oldest shape: flat arrays and a (success, message) pair.
// No iteration history and no per-variable diagnostics.
type LegacyRaw struct {
	Success    bool
	Message    string
	Time       []float64
	Signals    map[string][]float64
	Solution   []float64 // DC solution by node index
	Iterations int
}

func (*LegacyRaw) RawGeneration() Generation { return GenLegacy }

// V1BadVar is the v1 naming for a variable that failed to converge.
type V1BadVar struct {
	Index   int
	Var     string
	Val     float64
	Delta   float64
	Tol     float64
	NormErr float64
}

// V1Convergence is the v1 nested convergence block. History rows are packed
// [residual, verr, ierr, damping, stepnorm].
type V1Convergence struct {
	Converged bool
	Iter      int
	Residual  float64
	Hist      [][5]float64
	BadVars   []V1BadVar
}

// V1Raw is the v1-namespace result shape.
type V1Raw struct {
	Time     []float64
	Signals  map[string][]float64
	Stats    map[string]float64
	Err      string
	Solution []float64
	Conv     *V1Convergence
}

func (*V1Raw) RawGeneration() Generation { return GenV1 }

// V2Iteration is one row of the v2 solver history.
type V2Iteration struct {
	Residual     float64
	VoltageError float64
	CurrentError float64
	Damping      float64
	StepNorm     float64
}

// V2Problem is the v2 naming for a problematic variable.
type V2Problem struct {
	Index     int
	Node      string
	Value     float64
	Change    float64
	Tolerance float64
	ErrNorm   float64
}

// V2Solver is the v2 solver diagnostics block.
type V2Solver struct {
	Converged     bool
	NumIterations int
	FinalResidual float64
	Strategy      string
	History       []V2Iteration
	Problems      []V2Problem
}

// V2Raw is the current result shape.
type V2Raw struct {
	Time         []float64
	Signals      map[string][]float64
	Stats        map[string]float64
	ErrorMessage string
	Solution     []float64
	Solver       *V2Solver
}

func (*V2Raw) RawGeneration() Generation { return GenV2 }
