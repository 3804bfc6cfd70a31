// Package engine abstracts the native circuit solver behind one versioned
// interface. The solver has shipped several incompatible API generations;
// callers never probe attributes at runtime — they resolve the generation
// once and type-switch on tagged raw-result variants.
package engine

import (
	"context"
	"errors"

	"github.com/dkoval/circsim/internal/netlist"
)

// ErrCapabilityUnavailable indicates the active engine build does not
// support the requested analysis kind or execution entry point.
var ErrCapabilityUnavailable = errors.New("engine: capability unavailable")

// Generation identifies which native API generation an engine speaks.
type Generation int

const (
	GenLegacy Generation = iota // flat arrays, (success, message) pairs
	GenV1                       // v1 namespace: nested convergence struct
	GenV2                       // v2 namespace: full solver diagnostics
)

func (g Generation) String() string {
	switch g {
	case GenLegacy:
		return "legacy"
	case GenV1:
		return "v1"
	case GenV2:
		return "v2"
	}
	return "unknown"
}

// Capabilities enumerates analysis kinds the active engine build supports.
type Capabilities struct {
	Transient bool
	DC        bool
	AC        bool
	Thermal   bool
	Layout    bool
}

// Engine is the minimal surface every solver adapter exposes. Execution
// entry points are optional interfaces probed by the transport layer:
// BatchRunner, StreamRunner, SharedMemRunner, DCRunner, ACRunner.
type Engine interface {
	Name() string
	Generation() Generation
	Capabilities() Capabilities
}

// Seeding selects the DC operating-point seeding strategy.
type Seeding int

const (
	SeedNone Seeding = iota
	SeedGmin
	SeedSource
	SeedPseudoTransient
)

func (s Seeding) String() string {
	switch s {
	case SeedGmin:
		return "gmin"
	case SeedSource:
		return "source"
	case SeedPseudoTransient:
		return "pseudo-transient"
	}
	return "none"
}

// NewtonOptions configures the nonlinear solve of one attempt.
type NewtonOptions struct {
	MaxIterations        int
	AbsTol               float64
	RelTol               float64
	Seeding              Seeding
	ForceVoltageLimiting bool
	// MaxVoltageStep clamps the per-iteration node voltage update.
	// Zero means unclamped.
	MaxVoltageStep float64
}

// RunOptions configures one transient attempt.
type RunOptions struct {
	Dt       float64
	StopTime float64
	Newton   NewtonOptions
	// CancelCheckSteps bounds how many steps the solver may take between
	// cancellation/pause polls.
	CancelCheckSteps int
}

// Steps estimates the number of transient steps the run will take.
func (o RunOptions) Steps() int {
	if o.Dt <= 0 {
		return 0
	}
	return int(o.StopTime/o.Dt) + 1
}

// StreamHooks carries the per-step callbacks of the streaming entry point.
// Any field may be nil. EmitEvery throttles data/progress emission.
type StreamHooks struct {
	EmitEvery    int
	OnProgress   func(percent float64)
	OnData       func(t float64, samples map[string]float64)
	Cancelled    func() bool
	WaitIfPaused func()
}

// BatchRunner is the chunked execution entry point: one blocking call,
// complete arrays, no interim callbacks.
type BatchRunner interface {
	RunBatch(ctx context.Context, nl *netlist.Netlist, opts RunOptions) (RawResult, error)
}

// StreamRunner is the streaming-callback execution entry point.
type StreamRunner interface {
	RunStreaming(ctx context.Context, nl *netlist.Netlist, opts RunOptions, hooks StreamHooks) (RawResult, error)
}

// SharedMemRunner is the shared-memory execution entry point: the solver
// writes into a caller-owned buffer as it steps; the caller polls.
type SharedMemRunner interface {
	RunShared(nl *netlist.Netlist, opts RunOptions, buf *SharedBuffer) error
}

// DCRunner computes a DC operating point.
type DCRunner interface {
	RunDC(ctx context.Context, nl *netlist.Netlist, opts NewtonOptions) (RawResult, error)
}

// ACRunner computes a small-signal frequency sweep.
type ACRunner interface {
	RunAC(ctx context.Context, nl *netlist.Netlist, freqs []float64) (RawResult, error)
}

// SignalNames lists, in deterministic order, the signals a transient run of
// the netlist produces: one voltage per non-ground node, then one current
// per branch-forming device. Transports use it to pre-allocate buffers.
func SignalNames(nl *netlist.Netlist) []string {
	names := make([]string, 0, nl.NodeCount())
	for _, n := range nl.NodeNames() {
		if n == netlist.GroundLabel {
			continue
		}
		names = append(names, "V("+n+")")
	}
	for _, d := range nl.Devices {
		switch d.Kind {
		case netlist.KindVSource, netlist.KindInductor, netlist.KindTransformer:
			names = append(names, "I("+d.Name+")")
		}
	}
	return names
}
