package transport

import (
	"context"
	"fmt"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/netlist"
)

// ChunkedStrategy is the plainest delivery mechanism: one blocking call
// returning complete arrays, no interim callbacks. Used when neither richer
// entry point exists, or as the streaming-failure fallback.
type ChunkedStrategy struct {
	runner engine.BatchRunner
}

func (s *ChunkedStrategy) Name() string { return "chunked" }

func (s *ChunkedStrategy) Execute(ctx context.Context, nl *netlist.Netlist, opts engine.RunOptions, cb Callbacks) (*AttemptResult, error) {
	cb.progress(0, "running")
	raw, err := s.runner.RunBatch(ctx, nl, opts)
	if err != nil {
		return &AttemptResult{
			Signals: map[string][]float64{},
			Stats:   map[string]any{"transport": s.Name()},
			Err:     fmt.Sprintf("batch call failed: %v", err),
		}, nil
	}
	res := normalize(raw, s.Name())
	if !res.Failed() {
		cb.progress(100, "completed")
	}
	return res, nil
}
