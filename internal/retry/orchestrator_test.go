package retry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/netlist"
	"github.com/dkoval/circsim/internal/schematic"
	"github.com/dkoval/circsim/internal/transport"
)

func baseOptions(maxIter int) engine.RunOptions {
	return engine.RunOptions{
		Dt:       1e-6,
		StopTime: 1e-4,
		Newton:   engine.NewtonOptions{MaxIterations: maxIter, AbsTol: 1e-9, RelTol: 1e-6},
	}
}

func testSchematic() *schematic.Schematic {
	return &schematic.Schematic{
		Components: []schematic.Component{
			{
				ID: "V1", Type: schematic.TypeVoltageSource,
				Pins:   []schematic.Pin{{Name: "p", Node: "a"}, {Name: "n", Node: "0"}},
				Params: map[string]any{"voltage": 1.0},
			},
			{
				ID: "R1", Type: schematic.TypeResistor,
				Pins:   []schematic.Pin{{Name: "p", Node: "a"}, {Name: "n", Node: "0"}},
				Params: map[string]any{"resistance": 1.0},
			},
		},
	}
}

// scriptedEngine exposes only the batch entry point and replays a list of
// error messages, one per attempt, recording the options of each call.
type scriptedEngine struct {
	errs     []string
	calls    []engine.RunOptions
	netlists []*netlist.Netlist
	panics   bool
}

func (e *scriptedEngine) Name() string                  { return "scripted" }
func (e *scriptedEngine) Generation() engine.Generation { return engine.GenV2 }
func (e *scriptedEngine) Capabilities() engine.Capabilities {
	return engine.Capabilities{Transient: true}
}

func (e *scriptedEngine) RunBatch(ctx context.Context, nl *netlist.Netlist, opts engine.RunOptions) (engine.RawResult, error) {
	if e.panics {
		panic("native crash")
	}
	attempt := len(e.calls)
	e.calls = append(e.calls, opts)
	e.netlists = append(e.netlists, nl)

	msg := ""
	if attempt < len(e.errs) {
		msg = e.errs[attempt]
	}
	return &engine.V2Raw{
		Time:         []float64{0},
		Signals:      map[string][]float64{"V(a)": {1}},
		Stats:        map[string]float64{},
		ErrorMessage: msg,
	}, nil
}

func TestFirstSuccessMakesExactlyOneAttempt(t *testing.T) {
	eng := &scriptedEngine{}
	orch := NewOrchestrator(eng, nil, nil)

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), transport.Callbacks{})
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Len(t, eng.calls, 1)
	// No retry occurred, so no retry annotations.
	require.NotContains(t, res.Stats, "retry_count")
}

func TestConvergenceFailureEscalatesToGminSeed(t *testing.T) {
	eng := &scriptedEngine{errs: []string{"Newton failed to converge"}}
	orch := NewOrchestrator(eng, nil, nil)

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), transport.Callbacks{})
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Len(t, eng.calls, 2)

	second := eng.calls[1]
	require.Equal(t, engine.SeedGmin, second.Newton.Seeding)
	require.GreaterOrEqual(t, second.Newton.MaxIterations, 100)

	require.Equal(t, "gmin-seed", res.Stats["retry_profile"])
	require.Equal(t, 1, res.Stats["retry_count"])
	require.Equal(t, []string{"Newton failed to converge"}, res.Stats["attempt_errors"])
}

func TestExhaustionAppliesAllProfilesInOrder(t *testing.T) {
	eng := &scriptedEngine{errs: []string{
		"Newton failed to converge",
		"solution diverged at t=1e-6 (NaN/Inf)",
		"singular matrix at t=0",
		"Newton failed to converge",
	}}
	orch := NewOrchestrator(eng, nil, nil)
	base := baseOptions(50)

	res, err := orch.Run(context.Background(), testSchematic(), base, transport.Callbacks{})
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Len(t, eng.calls, 4, "at most one attempt per profile")

	wantScales := []float64{1.0, 1.0, 0.5, 0.25}
	for i, opts := range eng.calls {
		require.InDelta(t, base.Dt*wantScales[i], opts.Dt, 1e-18, "attempt %d dt", i)
	}

	require.Equal(t, "pseudo-limited-quarter-step", res.Stats["retry_profile"])
	require.Equal(t, 3, res.Stats["retry_count"])
	require.Len(t, res.Stats["attempt_errors"], 3)
}

func TestTerminalFailureStopsImmediately(t *testing.T) {
	eng := &scriptedEngine{errs: []string{"license verification failed"}}
	orch := NewOrchestrator(eng, nil, nil)

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), transport.Callbacks{})
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Len(t, eng.calls, 1)
	require.Equal(t, "default", res.Stats["retry_profile"])
}

func TestCancellationShortCircuitsRetries(t *testing.T) {
	eng := &scriptedEngine{errs: []string{engine.CancelledMessage, "", "", ""}}
	orch := NewOrchestrator(eng, nil, nil)

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), transport.Callbacks{})
	require.NoError(t, err)
	require.Equal(t, engine.CancelledMessage, res.Err)
	require.Len(t, eng.calls, 1, "no attempt after cancellation")
}

func TestCancelledCallbackStopsBeforeAttempt(t *testing.T) {
	eng := &scriptedEngine{}
	orch := NewOrchestrator(eng, nil, nil)
	cb := transport.Callbacks{CheckCancelled: func() bool { return true }}

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), cb)
	require.NoError(t, err)
	require.Equal(t, engine.CancelledMessage, res.Err)
	require.Empty(t, eng.calls)
	// Nothing ran, so there is no retry trail to report.
	require.NotContains(t, res.Stats, "retry_profile")
}

func TestBoundaryCancellationNamesLastAttemptedProfile(t *testing.T) {
	eng := &scriptedEngine{errs: []string{"Newton failed to converge"}}
	orch := NewOrchestrator(eng, nil, nil)

	// Cancelled after the first attempt fails, before the retry starts.
	checks := 0
	cb := transport.Callbacks{CheckCancelled: func() bool {
		checks++
		return checks > 1
	}}

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), cb)
	require.NoError(t, err)
	require.Equal(t, engine.CancelledMessage, res.Err)
	require.Len(t, eng.calls, 1)
	require.Equal(t, "default", res.Stats["retry_profile"], "only the default profile ever ran")
	require.Equal(t, 0, res.Stats["retry_count"])
	require.Equal(t, []string{"Newton failed to converge"}, res.Stats["attempt_errors"])
}

func TestNetlistRebuiltFreshPerAttempt(t *testing.T) {
	eng := &scriptedEngine{errs: []string{"Newton failed to converge", "diverged"}}
	orch := NewOrchestrator(eng, nil, nil)

	_, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), transport.Callbacks{})
	require.NoError(t, err)
	require.Len(t, eng.netlists, 3)
	require.NotSame(t, eng.netlists[0], eng.netlists[1])
	require.NotSame(t, eng.netlists[1], eng.netlists[2])
}

func TestConversionErrorAbortsBeforeAnyAttempt(t *testing.T) {
	eng := &scriptedEngine{}
	orch := NewOrchestrator(eng, nil, nil)

	bad := &schematic.Schematic{Components: []schematic.Component{
		{ID: "R1", Type: schematic.TypeResistor}, // no pins
	}}
	_, err := orch.Run(context.Background(), bad, baseOptions(50), transport.Callbacks{})
	require.ErrorIs(t, err, netlist.ErrMissingConnectivity)
	require.Empty(t, eng.calls)
}

func TestEnginePanicBecomesFailureResult(t *testing.T) {
	eng := &scriptedEngine{panics: true}
	orch := NewOrchestrator(eng, []Profile{{Name: "default", DtScale: 1.0}}, nil)

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), transport.Callbacks{})
	require.NoError(t, err, "panics must not escape the attempt")
	require.True(t, res.Failed())
	require.Contains(t, res.Err, "engine internal error")
}

// streamThenChunk fails its streaming entry point and records whether the
// chunked fallback ran.
type streamThenChunk struct {
	scriptedEngine
	streamCalls int
}

func (e *streamThenChunk) RunStreaming(ctx context.Context, nl *netlist.Netlist, opts engine.RunOptions, hooks engine.StreamHooks) (engine.RawResult, error) {
	e.streamCalls++
	return &engine.V2Raw{ErrorMessage: "stream transport io error"}, nil
}

func TestStreamingFallsBackToChunkedWithinSameAttempt(t *testing.T) {
	eng := &streamThenChunk{}
	orch := NewOrchestrator(eng, nil, nil)

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), transport.Callbacks{})
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Equal(t, 1, eng.streamCalls, "fallback must not re-enter streaming")
	require.Len(t, eng.calls, 1, "chunked fallback is the same attempt, not a retry")
	require.Equal(t, "chunked", res.Stats["transport"])
	require.NotContains(t, res.Stats, "retry_count")
}

// cancelInStream reports cancellation from the streaming call itself.
type cancelInStream struct {
	scriptedEngine
}

func (e *cancelInStream) RunStreaming(ctx context.Context, nl *netlist.Netlist, opts engine.RunOptions, hooks engine.StreamHooks) (engine.RawResult, error) {
	return &engine.V2Raw{ErrorMessage: engine.CancelledMessage}, nil
}

func TestStreamingCancellationSkipsChunkedFallback(t *testing.T) {
	eng := &cancelInStream{}
	orch := NewOrchestrator(eng, nil, nil)

	res, err := orch.Run(context.Background(), testSchematic(), baseOptions(50), transport.Callbacks{})
	require.NoError(t, err)
	require.Equal(t, engine.CancelledMessage, res.Err)
	require.Empty(t, eng.calls, "no chunked call after cancellation")
}
