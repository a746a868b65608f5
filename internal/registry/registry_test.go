package registry

import (
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) (*Registry, *time.Time) {
	t.Helper()
	r := New(DefaultRetention, nil)
	now := time.Unix(1700000000, 0).UTC()
	r.clock = func() time.Time { return now }
	return r, &now
}

func TestPutAndGet(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.Put("CA1", ModeTurnBased)
	rec, ok := r.Get("CA1")
	if !ok {
		t.Fatalf("expected record")
	}
	if rec.Status != StatusInitiated {
		t.Fatalf("expected initiated, got %q", rec.Status)
	}
	if rec.Mode != ModeTurnBased {
		t.Fatalf("expected turn-based mode, got %q", rec.Mode)
	}
	if rec.UnlockSatisfied {
		t.Fatalf("expected unlock false on creation")
	}
}

func TestUpdateStatus_LastWriteWins(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Put("CA1", ModeRealtime)

	// Out-of-order delivery: completed before ringing.
	r.UpdateStatus("CA1", StatusCompleted, 42)
	r.UpdateStatus("CA1", StatusRinging, 0)

	rec, _ := r.Get("CA1")
	if rec.Status != StatusRinging {
		t.Fatalf("expected last-applied status ringing, got %q", rec.Status)
	}
	if rec.DurationSeconds != 42 {
		t.Fatalf("expected duration preserved, got %d", rec.DurationSeconds)
	}
	if rec.Mode != ModeRealtime {
		t.Fatalf("mode must never change, got %q", rec.Mode)
	}
}

func TestUpdateStatus_CreatesAbsentRecord(t *testing.T) {
	r, _ := newTestRegistry(t)

	// A status callback can beat the placement bookkeeping.
	r.UpdateStatus("CA9", StatusRinging, 0)
	rec, ok := r.Get("CA9")
	if !ok {
		t.Fatalf("expected record created on callback")
	}
	if rec.UnlockSatisfied {
		t.Fatalf("expected default unlock false")
	}
}

func TestMarkUnlocked_NeverReset(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Put("CA1", ModeTurnBased)

	if !r.MarkUnlocked("CA1") {
		t.Fatalf("expected unlock to succeed")
	}
	// Later status updates must not clear the flag.
	r.UpdateStatus("CA1", StatusCompleted, 10)
	rec, _ := r.Get("CA1")
	if !rec.UnlockSatisfied {
		t.Fatalf("unlock flag must survive status updates")
	}
}

func TestMarkUnlocked_UnknownCallIsNoOp(t *testing.T) {
	r, _ := newTestRegistry(t)
	if r.MarkUnlocked("missing") {
		t.Fatalf("expected false for unknown call")
	}
}

func TestRetentionSweep(t *testing.T) {
	r, now := newTestRegistry(t)
	r.Put("old", ModeTurnBased)

	*now = now.Add(DefaultRetention + time.Hour)
	r.Put("fresh", ModeTurnBased)

	if _, ok := r.Get("old"); ok {
		t.Fatalf("expected old record evicted")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Fatalf("expected fresh record retained")
	}
}
