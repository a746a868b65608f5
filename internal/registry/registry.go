package registry

import (
	"log/slog"
	"sync"
	"time"
)

// Record tracks one outbound or inbound call.
//
// Records are created when a call is originated (before the carrier confirms)
// and mutated by status callbacks and the dialogue engines. They are never
// explicitly deleted; a retention sweep bounds growth instead.
type Record struct {
	CallID string `json:"call_id"`

	Status Status `json:"status"`

	// UnlockSatisfied flips to true when a termination phrase is honored
	// while the doorbell gate is armed. It never flips back.
	UnlockSatisfied bool `json:"unlock_satisfied"`

	// Mode is fixed at call-creation time and never changes for that call.
	Mode Mode `json:"mode"`

	DurationSeconds int `json:"duration,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusAnswered  Status = "answered"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusBusy      Status = "busy"
	StatusNoAnswer  Status = "no-answer"
)

// Mode is the conversation style chosen for a call.
type Mode string

const (
	ModeTurnBased Mode = "turn-based"
	ModeRealtime  Mode = "realtime-streaming"
)

// Registry is the in-memory call store shared by webhook handlers and the
// orchestrator. All methods are safe for concurrent use; updates are
// infrequent and brief, so a single mutex guards the map.
type Registry struct {
	mu        sync.Mutex
	records   map[string]*Record
	retention time.Duration
	lastSweep time.Time

	clock func() time.Time
	log   *slog.Logger
}

// DefaultRetention bounds record lifetime; the reference behavior had no
// eviction at all, which leaks under sustained operation.
const DefaultRetention = 24 * time.Hour

func New(retention time.Duration, log *slog.Logger) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		records:   make(map[string]*Record),
		retention: retention,
		clock:     time.Now,
		log:       log,
	}
}

// Put registers a new call with status "initiated".
func (r *Registry) Put(callID string, mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	r.sweepLocked(now)
	r.records[callID] = &Record{
		CallID:    callID,
		Status:    StatusInitiated,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Get returns a copy of the record, if present.
func (r *Registry) Get(callID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[callID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// UpdateStatus applies a carrier status callback. Callbacks may arrive out of
// order relative to call placement, so an absent record is created rather
// than rejected. Last write wins; UnlockSatisfied is never touched here.
func (r *Registry) UpdateStatus(callID string, status Status, durationSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	r.sweepLocked(now)

	rec, ok := r.records[callID]
	if !ok {
		rec = &Record{CallID: callID, CreatedAt: now}
		r.records[callID] = rec
	}
	rec.Status = status
	if durationSeconds > 0 {
		rec.DurationSeconds = durationSeconds
	}
	rec.UpdatedAt = now
}

// MarkUnlocked sets UnlockSatisfied on an existing record. A miss is
// anomalous (we should only unlock calls we originated) and is logged.
func (r *Registry) MarkUnlocked(callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[callID]
	if !ok {
		r.log.Warn("unlock for unknown call", "call_sid", callID)
		return false
	}
	rec.UnlockSatisfied = true
	rec.UpdatedAt = r.clock().UTC()
	return true
}

// Len reports the number of live records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// sweepLocked evicts records untouched for longer than the retention window.
// Piggybacked on writes so no janitor goroutine is needed; throttled to at
// most once per quarter of the retention window.
func (r *Registry) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < r.retention/4 {
		return
	}
	r.lastSweep = now
	for id, rec := range r.records {
		if now.Sub(rec.UpdatedAt) > r.retention {
			delete(r.records, id)
		}
	}
}
