// Package orchestrator owns the call lifecycle: placing wake-up calls,
// reacting to carrier status callbacks, and the daily wake-time sweep.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wakeup-coach/internal/dialing"
	"wakeup-coach/internal/registry"
	"wakeup-coach/internal/telephony"
)

// Entry-point paths per conversation mode. The URL handed to the carrier is
// fixed at placement time, so a call can never switch modes mid-conversation.
const (
	pathTurnBasedEntry = "/voice"
	pathRealtimeEntry  = "/voice-realtime"
	pathStatusCallback = "/call-status"
)

const (
	// callbackDelay is the pause before re-dialing after a call completed
	// without the unlock being satisfied.
	callbackDelay = 5 * time.Second

	// sweepInterval is how often the wake-time loop checks the clock.
	sweepInterval = 30 * time.Second

	// callCooldown keeps the sweep from placing duplicate wake calls when
	// several ticks land inside the target minute. It gates only
	// sweep-placed calls; manual, scheduled, and callback placements never
	// suppress the wake-time call.
	callCooldown = time.Hour
)

type Config struct {
	BaseURL string
	To      string
	From    string

	WakeHour   int
	WakeMinute int
	Location   *time.Location
}

// Orchestrator is safe for concurrent use by HTTP handlers and the sweep.
type Orchestrator struct {
	cfg       Config
	caller    telephony.Caller
	registry  *registry.Registry
	selector  *dialing.Selector
	scheduler *dialing.Scheduler
	log       *slog.Logger

	mu             sync.Mutex
	lastWakeCallAt time.Time

	clock func() time.Time
}

func New(cfg Config, caller telephony.Caller, reg *registry.Registry, sel *dialing.Selector, sched *dialing.Scheduler, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Orchestrator{
		cfg:       cfg,
		caller:    caller,
		registry:  reg,
		selector:  sel,
		scheduler: sched,
		log:       log,
		clock:     time.Now,
	}
}

// EntryURL maps a conversation mode to its dialogue entry point.
func (o *Orchestrator) EntryURL(mode registry.Mode) string {
	if mode == registry.ModeRealtime {
		return o.cfg.BaseURL + pathRealtimeEntry
	}
	return o.cfg.BaseURL + pathTurnBasedEntry
}

// PlaceCall chooses a conversation mode, originates the call, and registers
// it. The chosen mode is recorded and never changes for that call.
func (o *Orchestrator) PlaceCall(ctx context.Context) (string, registry.Mode, error) {
	mode := o.selector.Choose()

	callSID, err := o.caller.CreateCall(ctx, telephony.CreateCallRequest{
		To:             o.cfg.To,
		From:           o.cfg.From,
		TwimlURL:       o.EntryURL(mode),
		StatusCallback: o.cfg.BaseURL + pathStatusCallback,
	})
	if err != nil {
		o.log.Error("call origination failed", "err", err)
		return "", mode, err
	}

	o.registry.Put(callSID, mode)
	o.log.Info("call placed", "call_sid", callSID, "mode", mode)
	return callSID, mode, nil
}

// HandleStatusUpdate applies a carrier status callback. A call that completed
// without the unlock being satisfied gets a short-delay re-dial: the wake-up
// demand escalates into repeated calls until the sensor is touched.
func (o *Orchestrator) HandleStatusUpdate(callID string, status registry.Status, durationSeconds int) {
	o.registry.UpdateStatus(callID, status, durationSeconds)

	if status != registry.StatusCompleted {
		return
	}
	rec, ok := o.registry.Get(callID)
	if !ok || rec.UnlockSatisfied {
		return
	}

	o.log.Info("call completed without unlock, scheduling callback", "call_sid", callID, "delay", callbackDelay)
	o.scheduler.Schedule(callbackDelay, func() {
		if _, _, err := o.PlaceCall(context.Background()); err != nil {
			o.log.Error("callback call failed", "err", err)
		}
	})
}

// ScheduleCall registers a cancellable delayed placement.
func (o *Orchestrator) ScheduleCall(delay time.Duration) dialing.Task {
	return o.scheduler.Schedule(delay, func() {
		if _, _, err := o.PlaceCall(context.Background()); err != nil {
			o.log.Error("scheduled call failed", "err", err)
		}
	})
}

// CancelScheduled removes a pending delayed placement.
func (o *Orchestrator) CancelScheduled(id string) error {
	return o.scheduler.Cancel(id)
}

// ListScheduled returns the pending delayed placements.
func (o *Orchestrator) ListScheduled() []dialing.Task {
	return o.scheduler.List()
}

// RunWakeSweep wakes every 30 seconds and places a call when the local time
// matches the configured target minute. Blocks until ctx is cancelled.
func (o *Orchestrator) RunWakeSweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	o.log.Info("wake sweep running",
		"target", o.cfg.WakeHour, "minute", o.cfg.WakeMinute, "tz", o.cfg.Location.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweepTick(ctx)
		}
	}
}

// sweepTick is one sweep iteration: place a wake call when the target minute
// matches and the cooldown has elapsed. The cooldown timestamp only moves on
// successful sweep placements, so a failed origination retries on the next
// tick within the same minute.
func (o *Orchestrator) sweepTick(ctx context.Context) {
	now := o.clock()
	if !o.shouldPlaceWakeCall(now) {
		return
	}
	if _, _, err := o.PlaceCall(ctx); err != nil {
		o.log.Error("wake-time call failed", "err", err)
		return
	}
	o.mu.Lock()
	o.lastWakeCallAt = now
	o.mu.Unlock()
}

// shouldPlaceWakeCall decides whether a sweep tick places a call: the local
// minute must match the target and the cooldown since the last sweep-placed
// call must have elapsed, so two ticks inside the same target minute never
// place two calls.
func (o *Orchestrator) shouldPlaceWakeCall(now time.Time) bool {
	local := now.In(o.cfg.Location)
	if local.Hour() != o.cfg.WakeHour || local.Minute() != o.cfg.WakeMinute {
		return false
	}

	o.mu.Lock()
	last := o.lastWakeCallAt
	o.mu.Unlock()

	return last.IsZero() || now.Sub(last) >= callCooldown
}
