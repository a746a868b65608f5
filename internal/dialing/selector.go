// Package dialing decides how and when calls get placed: which conversation
// mode a call uses, and delayed/cancellable call tasks.
package dialing

import (
	"errors"
	"math/rand"
	"sync"

	"wakeup-coach/internal/registry"
)

var ErrInvalidProbability = errors.New("dialing: probability must be within [0,1]")

// Selector makes the weighted choice between the two conversation modes.
//
// The probability is runtime-mutable through the admin surface; reads always
// see the latest committed value. The choice is drawn once per call placement
// and the resulting entry URL is fixed for that call's lifetime.
type Selector struct {
	mu sync.RWMutex
	p  float64

	// draw returns a uniform float in [0,1); injected in tests.
	draw func() float64
}

func NewSelector(realtimeProbability float64) (*Selector, error) {
	if realtimeProbability < 0 || realtimeProbability > 1 {
		return nil, ErrInvalidProbability
	}
	return &Selector{p: realtimeProbability, draw: rand.Float64}, nil
}

// Choose draws a mode: realtime-streaming with the configured probability,
// turn-based otherwise.
func (s *Selector) Choose() registry.Mode {
	s.mu.RLock()
	p := s.p
	s.mu.RUnlock()

	if s.draw() < p {
		return registry.ModeRealtime
	}
	return registry.ModeTurnBased
}

// Probability returns the current realtime-mode probability.
func (s *Selector) Probability() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// SetProbability commits a new probability. Inclusive bounds; out-of-range
// values are rejected with no state change.
func (s *Selector) SetProbability(p float64) error {
	if p < 0 || p > 1 {
		return ErrInvalidProbability
	}
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
	return nil
}
