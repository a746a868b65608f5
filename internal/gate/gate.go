// Package gate tracks the doorbell-activated unlock window.
//
// A spoken "goodbye" only ends a wake-up call while the gate is armed, which
// requires a real-world action (touching the doorbell fingerprint sensor)
// first. Arming is temporary: a timer disarms the gate after a fixed timeout.
package gate

import (
	"log/slog"
	"sync"
	"time"
)

// Gate is the process-wide armed/disarmed state.
//
// Contract:
// - Arm cancels any pending disarm timer and schedules a fresh one, so at
//   most one expiry is pending at a time. Re-arming never stacks timers.
// - Disarm is idempotent.
type Gate struct {
	mu      sync.Mutex
	armed   bool
	armedAt time.Time
	expiry  *time.Timer

	// gen identifies the current arming. Stop on a timer that has already
	// fired returns false and cannot recall the callback, so each expiry
	// callback carries the generation it was armed for and is a no-op once
	// a newer Arm has superseded it.
	gen uint64

	timeout time.Duration
	clock   func() time.Time
	log     *slog.Logger
}

func New(timeout time.Duration, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		timeout: timeout,
		clock:   time.Now,
		log:     log,
	}
}

// Arm opens the unlock window, superseding any prior arming.
func (g *Gate) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.expiry != nil {
		g.expiry.Stop()
	}
	g.gen++
	gen := g.gen
	g.armed = true
	g.armedAt = g.clock()
	g.expiry = time.AfterFunc(g.timeout, func() { g.expire(gen) })
	g.log.Info("doorbell gate armed", "timeout", g.timeout)
}

// expire disarms when the timer for the given arming fires. A callback whose
// arming has been superseded (its Stop raced the firing) must not close the
// newer window.
func (g *Gate) expire(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.gen {
		return
	}
	g.disarmLocked()
}

// Disarm closes the window. Safe to call whether or not the gate is armed.
func (g *Gate) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disarmLocked()
}

func (g *Gate) disarmLocked() {
	if !g.armed {
		return
	}
	if g.expiry != nil {
		g.expiry.Stop()
		g.expiry = nil
	}
	g.armed = false
	g.armedAt = time.Time{}
	g.log.Info("doorbell gate disarmed")
}

// IsArmed is a cheap read for the dialogue engines.
func (g *Gate) IsArmed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// Status reports the armed flag and the time left before self-expiry
// (zero when disarmed).
func (g *Gate) Status() (armed bool, remaining time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed {
		return false, 0
	}
	remaining = g.timeout - g.clock().Sub(g.armedAt)
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining
}
