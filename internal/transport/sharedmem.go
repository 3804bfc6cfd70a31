package transport

import (
	"context"
	"time"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/netlist"
)

// pollInterval is the caller-side status-word polling cadence (~60 Hz).
const pollInterval = 16 * time.Millisecond

// SharedMemStrategy pre-allocates fixed buffers, runs the solver on a
// background worker, and polls the buffer's status word from the calling
// goroutine, pushing zero-copy interim slices as the write index advances.
type SharedMemStrategy struct {
	runner engine.SharedMemRunner
}

func (s *SharedMemStrategy) Name() string { return "shared-memory" }

func (s *SharedMemStrategy) Execute(ctx context.Context, nl *netlist.Netlist, opts engine.RunOptions, cb Callbacks) (*AttemptResult, error) {
	steps := opts.Steps()
	capacity := steps + steps/5 // 20% safety margin over the estimate
	names := engine.SignalNames(nl)
	buf := engine.NewSharedBuffer(names, capacity)

	done := make(chan error, 1)
	go func() {
		done <- s.runner.RunShared(nl, opts, buf)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var workerErr error
	lastSeen := 0
poll:
	for {
		select {
		case workerErr = <-done:
			break poll
		case <-ticker.C:
			if ctx.Err() != nil || cb.cancelled() {
				buf.RequestCancel()
			}
			// Pause is mirrored into the buffer rather than blocking this
			// goroutine, so the solver stops at its next poll point while
			// cancellation stays responsive.
			buf.SetPaused(cb.paused())

			published := buf.Published()
			if published > lastSeen {
				// Zero-copy view of the newest published row.
				t := buf.TimeSlice(published)[published-1]
				sample := make(map[string]float64, len(names))
				for c, n := range names {
					sample[n] = buf.SignalSlice(c, published)[published-1]
				}
				cb.dataPoint(t, sample)
				if steps > 0 {
					cb.progress(100*float64(published)/float64(steps), "running")
				}
				lastSeen = published
			}

			if buf.Status() != engine.StatusRunning {
				// Terminal status published; join the worker. The timeout
				// is derived from the expected run duration rather than a
				// fixed constant, so a legitimately slow solver is not
				// truncated.
				select {
				case workerErr = <-done:
				case <-time.After(joinTimeout(steps)):
					return &AttemptResult{
						Signals: map[string][]float64{},
						Stats:   map[string]any{"transport": s.Name()},
						Err:     "shared-memory worker did not terminate within the join timeout",
					}, nil
				}
				break poll
			}
		}
	}

	res := &AttemptResult{
		Signals: map[string][]float64{},
		Stats:   map[string]any{"transport": s.Name()},
	}
	if workerErr != nil {
		res.Err = workerErr.Error()
		return res, nil
	}

	// The full published buffers are the authoritative result.
	published := buf.Published()
	res.Time = append([]float64(nil), buf.TimeSlice(published)...)
	for c, n := range names {
		res.Signals[n] = append([]float64(nil), buf.SignalSlice(c, published)...)
	}
	res.Stats["steps"] = published

	switch buf.Status() {
	case engine.StatusCancelled:
		res.Err = engine.CancelledMessage
	case engine.StatusError:
		res.Err = buf.ErrMessage()
		if res.Err == "" {
			res.Err = "solver reported an error status without a message"
		}
	case engine.StatusCompleted:
		cb.progress(100, "completed")
	default:
		res.Err = "shared-memory run ended without a terminal status"
	}
	return res, nil
}

// joinTimeout bounds how long the caller waits for the worker after a
// terminal status is observed. Scaled to the step count with a generous
// floor; once the status word is terminal the worker has almost no work
// left, so this should never bind in practice.
func joinTimeout(steps int) time.Duration {
	d := time.Duration(steps) * time.Millisecond
	if d < 30*time.Second {
		return 30 * time.Second
	}
	return d
}
