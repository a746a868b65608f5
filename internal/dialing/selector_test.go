package dialing

import (
	"testing"

	"wakeup-coach/internal/registry"
)

func TestNewSelector_RejectsOutOfRange(t *testing.T) {
	if _, err := NewSelector(-0.01); err != ErrInvalidProbability {
		t.Fatalf("expected ErrInvalidProbability, got %v", err)
	}
	if _, err := NewSelector(1.01); err != ErrInvalidProbability {
		t.Fatalf("expected ErrInvalidProbability, got %v", err)
	}
}

func TestChoose_ZeroAlwaysTurnBased(t *testing.T) {
	s, err := NewSelector(0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for i := 0; i < 100; i++ {
		if got := s.Choose(); got != registry.ModeTurnBased {
			t.Fatalf("trial %d: expected turn-based, got %q", i, got)
		}
	}
}

func TestChoose_OneAlwaysRealtime(t *testing.T) {
	s, err := NewSelector(1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for i := 0; i < 100; i++ {
		if got := s.Choose(); got != registry.ModeRealtime {
			t.Fatalf("trial %d: expected realtime, got %q", i, got)
		}
	}
}

func TestChoose_ThresholdBoundary(t *testing.T) {
	s, _ := NewSelector(0.5)

	s.draw = func() float64 { return 0.49 }
	if got := s.Choose(); got != registry.ModeRealtime {
		t.Fatalf("draw below p must be realtime, got %q", got)
	}
	s.draw = func() float64 { return 0.5 }
	if got := s.Choose(); got != registry.ModeTurnBased {
		t.Fatalf("draw at p must be turn-based, got %q", got)
	}
}

func TestSetProbability(t *testing.T) {
	s, _ := NewSelector(0.5)

	if err := s.SetProbability(2); err != ErrInvalidProbability {
		t.Fatalf("expected rejection, got %v", err)
	}
	if s.Probability() != 0.5 {
		t.Fatalf("rejected update must not mutate, got %v", s.Probability())
	}

	if err := s.SetProbability(0.25); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.Probability() != 0.25 {
		t.Fatalf("expected committed value visible, got %v", s.Probability())
	}
}
