package engine

import (
	"sync/atomic"
	"time"
)

// RunStatus is the status word of a shared-memory run.
type RunStatus int32

const (
	StatusRunning RunStatus = iota
	StatusCompleted
	StatusError
	StatusCancelled
)

// Shared-memory error codes.
const (
	ErrCodeNone int32 = iota
	ErrCodeConvergence
	ErrCodeInternal
)

// SharedBuffer is the caller-owned exchange area of the shared-memory entry
// point. The solver appends rows and publishes the write index after the
// data is in place; readers load the index first and only read rows below
// it, so the row contents need no lock.
type SharedBuffer struct {
	names   []string
	timeBuf []float64
	sigBuf  [][]float64 // one column per signal name

	written atomic.Int64
	status  atomic.Int32
	errCode atomic.Int32

	cancel atomic.Bool
	paused atomic.Bool

	// errMsg is written once by the solver before the terminal status is
	// published, and read only after a terminal status is observed.
	errMsg string
}

// NewSharedBuffer allocates fixed-size buffers for the given signals and
// step capacity. Callers size capacity to the estimated step count plus a
// safety margin; rows past capacity are dropped.
func NewSharedBuffer(names []string, capacity int) *SharedBuffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &SharedBuffer{
		names:   names,
		timeBuf: make([]float64, capacity),
		sigBuf:  make([][]float64, len(names)),
	}
	for i := range b.sigBuf {
		b.sigBuf[i] = make([]float64, capacity)
	}
	return b
}

// Names returns the signal column order.
func (b *SharedBuffer) Names() []string { return b.names }

// Capacity returns the allocated row count.
func (b *SharedBuffer) Capacity() int { return len(b.timeBuf) }

// Append writes one row and publishes it. values must follow Names() order.
func (b *SharedBuffer) Append(t float64, values []float64) {
	i := int(b.written.Load())
	if i >= len(b.timeBuf) {
		return
	}
	b.timeBuf[i] = t
	for c := range b.sigBuf {
		if c < len(values) {
			b.sigBuf[c][i] = values[c]
		}
	}
	// Publish after the row is fully written.
	b.written.Store(int64(i + 1))
}

// Published returns how many rows are safe to read.
func (b *SharedBuffer) Published() int { return int(b.written.Load()) }

// TimeSlice returns a zero-copy view of the first n published time points.
func (b *SharedBuffer) TimeSlice(n int) []float64 { return b.timeBuf[:n] }

// SignalSlice returns a zero-copy view of the first n published rows of one
// signal column.
func (b *SharedBuffer) SignalSlice(col, n int) []float64 { return b.sigBuf[col][:n] }

// Finish publishes the terminal status. msg is only meaningful for error
// and cancelled statuses.
func (b *SharedBuffer) Finish(status RunStatus, errCode int32, msg string) {
	b.errMsg = msg
	b.errCode.Store(errCode)
	b.status.Store(int32(status))
}

// Status returns the current run status.
func (b *SharedBuffer) Status() RunStatus { return RunStatus(b.status.Load()) }

// ErrCode returns the error code published with a terminal status.
func (b *SharedBuffer) ErrCode() int32 { return b.errCode.Load() }

// ErrMessage returns the error message. Valid only after Status() reports a
// terminal state.
func (b *SharedBuffer) ErrMessage() string { return b.errMsg }

// RequestCancel asks the solver to stop at its next poll point.
func (b *SharedBuffer) RequestCancel() { b.cancel.Store(true) }

// CancelRequested reports whether cancellation was requested.
func (b *SharedBuffer) CancelRequested() bool { return b.cancel.Load() }

// SetPaused toggles the cooperative pause flag.
func (b *SharedBuffer) SetPaused(p bool) { b.paused.Store(p) }

// BlockWhilePaused spins the solver at a bounded interval while paused.
func (b *SharedBuffer) BlockWhilePaused() {
	for b.paused.Load() && !b.cancel.Load() {
		time.Sleep(5 * time.Millisecond)
	}
}
