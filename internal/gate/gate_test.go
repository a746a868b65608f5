package gate

import (
	"testing"
	"time"
)

func TestArmAndStatus(t *testing.T) {
	g := New(5*time.Minute, nil)
	now := time.Unix(1700000000, 0).UTC()
	g.clock = func() time.Time { return now }

	armed, remaining := g.Status()
	if armed || remaining != 0 {
		t.Fatalf("expected disarmed zero state, got %v %v", armed, remaining)
	}

	g.Arm()
	now = now.Add(2 * time.Minute)

	armed, remaining = g.Status()
	if !armed {
		t.Fatalf("expected armed")
	}
	if remaining != 3*time.Minute {
		t.Fatalf("expected 3m remaining, got %v", remaining)
	}
}

func TestStatus_RemainingNeverNegative(t *testing.T) {
	g := New(time.Minute, nil)
	now := time.Unix(1700000000, 0).UTC()
	g.clock = func() time.Time { return now }

	g.Arm()
	now = now.Add(time.Hour)

	armed, remaining := g.Status()
	if !armed {
		t.Fatalf("expected armed until timer fires")
	}
	if remaining != 0 {
		t.Fatalf("expected clamped remaining, got %v", remaining)
	}
}

func TestDisarm_Idempotent(t *testing.T) {
	g := New(time.Minute, nil)

	g.Disarm()
	g.Disarm()

	g.Arm()
	g.Disarm()
	g.Disarm()

	if g.IsArmed() {
		t.Fatalf("expected disarmed")
	}
}

func TestRearm_SupersedesPriorTimer(t *testing.T) {
	g := New(40*time.Millisecond, nil)

	g.Arm()
	time.Sleep(25 * time.Millisecond)
	// The second arm must cancel the first timer, so the gate stays armed
	// past the first timer's original deadline.
	g.Arm()
	time.Sleep(25 * time.Millisecond)

	if !g.IsArmed() {
		t.Fatalf("first timer fired despite re-arm")
	}

	time.Sleep(40 * time.Millisecond)
	if g.IsArmed() {
		t.Fatalf("expected second timer to disarm")
	}
}

func TestRearm_StaleExpiryCallbackIsNoOp(t *testing.T) {
	g := New(time.Hour, nil)

	g.Arm()
	stale := g.gen
	g.Arm()

	// A fired timer cannot be recalled by Stop; its callback may still run
	// after a re-arm. It must not touch the newer window.
	g.expire(stale)
	if !g.IsArmed() {
		t.Fatalf("stale expiry callback disarmed the re-armed gate")
	}

	g.expire(g.gen)
	if g.IsArmed() {
		t.Fatalf("current expiry callback should disarm")
	}
}

func TestRearm_NearExpiryKeepsGateArmed(t *testing.T) {
	const timeout = 25 * time.Millisecond
	g := New(timeout, nil)

	// Re-arm repeatedly right around the prior timer's firing so Stop loses
	// the race some of the time; the fresh window must survive regardless.
	for i := 0; i < 20; i++ {
		g.Arm()
		time.Sleep(timeout)
		g.Arm()
		time.Sleep(3 * time.Millisecond)
		if !g.IsArmed() {
			t.Fatalf("iteration %d: prior timer disarmed the gate right after re-arm", i)
		}
		g.Disarm()
	}
}

func TestExpiryDisarms(t *testing.T) {
	g := New(15*time.Millisecond, nil)
	g.Arm()
	time.Sleep(50 * time.Millisecond)
	if g.IsArmed() {
		t.Fatalf("expected self-expiry")
	}
}
