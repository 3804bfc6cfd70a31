package transport

import (
	"context"
	"fmt"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/netlist"
)

// targetCallbackCount is the rough number of interim callbacks a streaming
// run emits regardless of total step count, bounding callback overhead.
const targetCallbackCount = 50

// StreamingStrategy invokes the solver once with per-step callbacks for
// progress, interim data, and cancellation polling. Full-resolution arrays
// still come back at the end of the call.
type StreamingStrategy struct {
	runner engine.StreamRunner
}

func (s *StreamingStrategy) Name() string { return "streaming" }

func (s *StreamingStrategy) Execute(ctx context.Context, nl *netlist.Netlist, opts engine.RunOptions, cb Callbacks) (*AttemptResult, error) {
	emitEvery := opts.Steps() / targetCallbackCount
	if emitEvery < 1 {
		emitEvery = 1
	}

	hooks := engine.StreamHooks{
		EmitEvery: emitEvery,
		OnProgress: func(pct float64) {
			cb.progress(pct, "running")
		},
		OnData:       cb.dataPoint,
		Cancelled:    cb.cancelled,
		WaitIfPaused: cb.waitIfPaused,
	}

	raw, err := s.runner.RunStreaming(ctx, nl, opts, hooks)
	if err != nil {
		return &AttemptResult{
			Signals: map[string][]float64{},
			Stats:   map[string]any{"transport": s.Name()},
			Err:     fmt.Sprintf("streaming call failed: %v", err),
		}, nil
	}
	return normalize(raw, s.Name()), nil
}
