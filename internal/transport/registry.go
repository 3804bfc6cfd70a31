package transport

import (
	"sync"

	"github.com/google/uuid"
)

// Handle controls one tracked simulation run: cooperative cancellation and
// pause. Both are polled, never preemptive.
type Handle struct {
	id string

	mu        sync.Mutex
	cond      *sync.Cond
	cancelled bool
	paused    bool
}

func newHandle() *Handle {
	h := &Handle{id: uuid.NewString()}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// ID returns the run identifier.
func (h *Handle) ID() string { return h.id }

// RequestCancel marks the run cancelled and releases any paused waiter.
// Cancellation always wins over pause.
func (h *Handle) RequestCancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.cond.Broadcast()
}

// Cancelled reports whether cancellation was requested.
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// SetPaused toggles the pause flag.
func (h *Handle) SetPaused(p bool) {
	h.mu.Lock()
	h.paused = p
	h.mu.Unlock()
	h.cond.Broadcast()
}

// Paused reports the pause flag.
func (h *Handle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// WaitIfPaused blocks the caller while the run is paused. A cancellation
// request unblocks it immediately.
func (h *Handle) WaitIfPaused() {
	h.mu.Lock()
	for h.paused && !h.cancelled {
		h.cond.Wait()
	}
	h.mu.Unlock()
}

// Callbacks adapts the handle's control surface into the callback contract,
// layering the given progress/data sinks on top.
func (h *Handle) Callbacks(progress func(float64, string), data func(float64, map[string]float64)) Callbacks {
	return Callbacks{
		Progress:       progress,
		DataPoint:      data,
		CheckCancelled: h.Cancelled,
		WaitIfPaused:   h.WaitIfPaused,
		IsPaused:       h.Paused,
	}
}

// Registry tracks in-flight runs by identifier. Multiple runs may be
// tracked concurrently, so the map is lock-protected; the handles
// themselves carry their own synchronization.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Handle
}

// NewRegistry returns an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Handle)}
}

// Register creates and tracks a new run handle.
func (r *Registry) Register() *Handle {
	h := newHandle()
	r.mu.Lock()
	r.runs[h.id] = h
	r.mu.Unlock()
	return h
}

// Get looks up a tracked run.
func (r *Registry) Get(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.runs[id]
	return h, ok
}

// Remove stops tracking a run. The handle stays valid for any goroutine
// still holding it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.runs, id)
	r.mu.Unlock()
}

// Len reports how many runs are tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
