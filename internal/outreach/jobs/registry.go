package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the cancel functions of campaign runs in this process.
type Registry struct {
	mu   sync.Mutex
	runs map[uuid.UUID]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[uuid.UUID]context.CancelFunc)}
}

// Track registers cancel for jobID. The returned release must be called when the run ends.
func (r *Registry) Track(jobID uuid.UUID, cancel context.CancelFunc) (release func()) {
	r.mu.Lock()
	r.runs[jobID] = cancel
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.runs, jobID)
	}
}

// Cancel interrupts the local run of jobID and reports whether one was running here.
func (r *Registry) Cancel(jobID uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.runs[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running is the number of runs currently tracked.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
