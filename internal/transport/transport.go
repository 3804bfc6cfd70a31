// Package transport delivers solver output back to the caller. Exactly one
// of three mutually-exclusive strategies runs a given attempt, selected by
// probing which execution entry points the active engine exposes.
package transport

import (
	"context"
	"fmt"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/netlist"
)

// Callbacks is the contract the calling GUI/automation layer supplies. Any
// field may be nil; invocations happen on whichever goroutine the active
// strategy uses.
type Callbacks struct {
	Progress       func(percent float64, message string)
	DataPoint      func(t float64, samples map[string]float64)
	CheckCancelled func() bool
	// WaitIfPaused blocks the calling goroutine while paused; strategies
	// whose solver runs on the caller's goroutine use it directly.
	WaitIfPaused func()
	// IsPaused is the non-blocking pause query. The shared-memory strategy
	// mirrors it into the solver buffer so the worker stops between rows
	// instead of simulating through a pause.
	IsPaused func() bool
}

func (c Callbacks) progress(pct float64, msg string) {
	if c.Progress != nil {
		c.Progress(pct, msg)
	}
}

func (c Callbacks) dataPoint(t float64, samples map[string]float64) {
	if c.DataPoint != nil {
		c.DataPoint(t, samples)
	}
}

func (c Callbacks) cancelled() bool {
	return c.CheckCancelled != nil && c.CheckCancelled()
}

func (c Callbacks) waitIfPaused() {
	if c.WaitIfPaused != nil {
		c.WaitIfPaused()
	}
}

func (c Callbacks) paused() bool {
	return c.IsPaused != nil && c.IsPaused()
}

// AttemptResult is the normalized outcome of one solver attempt. A non-empty
// Err short-circuits to failure without any panic crossing the boundary.
// Never mutated after return.
type AttemptResult struct {
	Time    []float64
	Signals map[string][]float64
	Stats   map[string]any
	Err     string
}

// Failed reports whether the attempt produced an error.
func (r *AttemptResult) Failed() bool { return r.Err != "" }

// Strategy runs one solver attempt and normalizes its output.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, nl *netlist.Netlist, opts engine.RunOptions, cb Callbacks) (*AttemptResult, error)
}

// Select probes the engine's execution entry points in priority order:
// shared-memory, then streaming, then chunked. The first available wins;
// each is a complete substitute for the others.
func Select(eng engine.Engine) (Strategy, error) {
	if sm, ok := eng.(engine.SharedMemRunner); ok {
		return &SharedMemStrategy{runner: sm}, nil
	}
	if st, ok := eng.(engine.StreamRunner); ok {
		return &StreamingStrategy{runner: st}, nil
	}
	if ba, ok := eng.(engine.BatchRunner); ok {
		return &ChunkedStrategy{runner: ba}, nil
	}
	return nil, fmt.Errorf("%w: engine %q exposes no transient entry point",
		engine.ErrCapabilityUnavailable, eng.Name())
}

// SelectChunked returns the chunked strategy when the engine exposes the
// batch entry point, for the streaming-failure fallback path.
func SelectChunked(eng engine.Engine) (Strategy, bool) {
	if ba, ok := eng.(engine.BatchRunner); ok {
		return &ChunkedStrategy{runner: ba}, true
	}
	return nil, false
}

// normalize maps any raw generation onto the one attempt-result schema.
func normalize(raw engine.RawResult, transportName string) *AttemptResult {
	res := &AttemptResult{
		Signals: map[string][]float64{},
		Stats:   map[string]any{"transport": transportName},
	}
	switch r := raw.(type) {
	case *engine.LegacyRaw:
		res.Time = r.Time
		if r.Signals != nil {
			res.Signals = r.Signals
		}
		res.Stats["iterations"] = r.Iterations
		if !r.Success {
			res.Err = r.Message
			if res.Err == "" {
				res.Err = "solver reported failure without a message"
			}
		}
	case *engine.V1Raw:
		res.Time = r.Time
		if r.Signals != nil {
			res.Signals = r.Signals
		}
		for k, v := range r.Stats {
			res.Stats[k] = v
		}
		res.Err = r.Err
	case *engine.V2Raw:
		res.Time = r.Time
		if r.Signals != nil {
			res.Signals = r.Signals
		}
		for k, v := range r.Stats {
			res.Stats[k] = v
		}
		res.Err = r.ErrorMessage
	default:
		res.Err = fmt.Sprintf("unrecognized native result shape %T", raw)
	}
	return res
}
