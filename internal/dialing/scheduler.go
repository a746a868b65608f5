package dialing

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrTaskNotFound = errors.New("dialing: scheduled task not found")

// Task is a pending delayed call origination.
type Task struct {
	ID     string    `json:"task_id"`
	FireAt time.Time `json:"fire_at"`
}

// Scheduler owns cancellable delayed tasks. IDs are UUIDs rather than
// timestamp-derived strings, so rapid repeated scheduling cannot collide.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*pendingTask

	clock func() time.Time
	log   *slog.Logger
}

type pendingTask struct {
	task  Task
	timer *time.Timer
}

func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		pending: make(map[string]*pendingTask),
		clock:   time.Now,
		log:     log,
	}
}

// Schedule runs fn after delay unless cancelled first. The returned task
// carries the cancellation handle (its ID).
func (s *Scheduler) Schedule(delay time.Duration, fn func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Task{
		ID:     uuid.NewString(),
		FireAt: s.clock().UTC().Add(delay),
	}
	p := &pendingTask{task: t}
	p.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, t.ID)
		s.mu.Unlock()
		fn()
	})
	s.pending[t.ID] = p

	s.log.Info("call scheduled", "task_id", t.ID, "fire_at", t.FireAt)
	return t
}

// Cancel stops a pending task. ErrTaskNotFound when the ID is unknown or the
// task already fired.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return ErrTaskNotFound
	}
	p.timer.Stop()
	delete(s.pending, id)
	s.log.Info("scheduled call cancelled", "task_id", id)
	return nil
}

// List returns the pending tasks, unordered.
func (s *Scheduler) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.task)
	}
	return out
}

// Stop cancels everything; used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
}
