package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an append-only in-memory repository with a fixed capacity.
// Once full, the oldest events are discarded. The trail is volatile across
// restarts, like the rest of the service's state.
type MemoryRepo struct {
	mu     sync.Mutex
	cap    int
	events []Event
}

func NewMemoryRepo(capacity int) *MemoryRepo {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryRepo{cap: capacity}
}

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if len(r.events) > r.cap {
		r.events = r.events[len(r.events)-r.cap:]
	}
	return nil
}

// Recent returns up to n events, newest first.
func (r *MemoryRepo) Recent(ctx context.Context, n int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.events) {
		n = len(r.events)
	}
	out := make([]Event, 0, n)
	for i := len(r.events) - 1; i >= len(r.events)-n; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}
