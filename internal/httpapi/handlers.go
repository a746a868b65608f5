// Package httpapi holds the operational HTTP surface: health, manual call
// triggers, doorbell status, and the admin endpoints.
//
// Keep these thin: parse/validate input, call internal components, return JSON.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wakeup-coach/internal/audit"
	"wakeup-coach/internal/dialing"
	"wakeup-coach/internal/gate"
	"wakeup-coach/internal/orchestrator"
	"wakeup-coach/internal/registry"
	"wakeup-coach/internal/telephony"
	"wakeup-coach/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Orchestrator *orchestrator.Orchestrator
	Gate         *gate.Gate
	Selector     *dialing.Selector
	Registry     *registry.Registry
	Audit        *audit.Service

	// StreamURL is the websocket URL served in realtime-entry TwiML.
	StreamURL string
}

// record appends to the operational trail; failures are logged, never
// surfaced to the caller.
func (h Handlers) record(c *gin.Context, log func(*audit.Service) error) {
	if h.Audit == nil {
		return
	}
	if err := log(h.Audit); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

// Root reports liveness and a summary of the interesting state.
func (h Handlers) Root(c *gin.Context) {
	armed, remaining := h.Gate.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":                  "Wake-up Coach is running",
		"doorbell_armed":          armed,
		"doorbell_seconds_left":   int(remaining.Seconds()),
		"realtime_probability":    h.Selector.Probability(),
		"tracked_calls":           h.Registry.Len(),
		"pending_scheduled_calls": len(h.Orchestrator.ListScheduled()),
	})
}

// TriggerCall places a wake-up call immediately. Serves both the manual
// /call endpoint and the /test-call convenience route.
func (h Handlers) TriggerCall(c *gin.Context) {
	callSID, mode, err := h.Orchestrator.PlaceCall(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("manual call failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "call origination failed"})
		return
	}
	h.record(c, func(a *audit.Service) error {
		return a.LogAdminAction(c.Request.Context(), "manual call placed", fmt.Sprintf(`{"call_sid":%q,"mode":%q}`, callSID, mode))
	})
	c.JSON(http.StatusOK, gin.H{"status": "Call initiated", "call_sid": callSID, "mode": mode})
}

// StatusCallback receives carrier lifecycle events. Registered behind the
// signature middleware.
func (h Handlers) StatusCallback(c *gin.Context) {
	form, err := telephony.ParseStatusCallback(c.Request)
	if err != nil || form.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	status := telephony.MapStatus(form.CallStatus)
	h.Orchestrator.HandleStatusUpdate(form.CallSid, status, form.CallDuration)
	h.record(c, func(a *audit.Service) error {
		return a.LogCallStatus(c.Request.Context(), form.CallSid, string(status))
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RealtimeVoice is the TwiML entry point for realtime-streaming calls: it
// tells the carrier to open the media stream socket.
func (h Handlers) RealtimeVoice(c *gin.Context) {
	doc, err := telephony.Render(telephony.Response{Verbs: []any{
		telephony.Connect{Stream: telephony.Stream{URL: h.StreamURL}},
	}})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, doc)
}

// DoorbellStatus reports the gate state.
func (h Handlers) DoorbellStatus(c *gin.Context) {
	armed, remaining := h.Gate.Status()
	c.JSON(http.StatusOK, gin.H{"armed": armed, "seconds_remaining": int(remaining.Seconds())})
}

// ActivateDoorbell arms the gate manually, useful when testing without the
// physical sensor.
func (h Handlers) ActivateDoorbell(c *gin.Context) {
	h.Gate.Arm()
	h.record(c, func(a *audit.Service) error {
		return a.LogDoorbell(c.Request.Context(), "armed manually")
	})
	armed, remaining := h.Gate.Status()
	c.JSON(http.StatusOK, gin.H{"status": "activated", "armed": armed, "seconds_remaining": int(remaining.Seconds())})
}

// --- admin: realtime-mode probability ---

type probabilityRequest struct {
	Probability *float64 `json:"probability"`
}

func (h Handlers) GetProbability(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"probability": h.Selector.Probability()})
}

func (h Handlers) SetProbability(c *gin.Context) {
	var req probabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Probability == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "probability required"})
		return
	}
	if err := h.Selector.SetProbability(*req.Probability); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "probability must be within [0,1]"})
		return
	}
	h.record(c, func(a *audit.Service) error {
		return a.LogAdminAction(c.Request.Context(), "realtime probability changed", fmt.Sprintf(`{"probability":%g}`, *req.Probability))
	})
	c.JSON(http.StatusOK, gin.H{"probability": h.Selector.Probability()})
}

// --- admin: scheduled test calls ---

type scheduleRequest struct {
	DelaySeconds int `json:"delay_seconds"`
}

func (h Handlers) ScheduleCall(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DelaySeconds <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "delay_seconds must be positive"})
		return
	}
	task := h.Orchestrator.ScheduleCall(time.Duration(req.DelaySeconds) * time.Second)
	h.record(c, func(a *audit.Service) error {
		return a.LogAdminAction(c.Request.Context(), "call scheduled", fmt.Sprintf(`{"task_id":%q,"delay_seconds":%d}`, task.ID, req.DelaySeconds))
	})
	c.JSON(http.StatusOK, gin.H{"task_id": task.ID, "fire_at": task.FireAt})
}

func (h Handlers) ListScheduledCalls(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.Orchestrator.ListScheduled()})
}

func (h Handlers) CancelScheduledCall(c *gin.Context) {
	id := c.Param("id")
	if err := h.Orchestrator.CancelScheduled(id); err != nil {
		if errors.Is(err, dialing.ErrTaskNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "task_id": id})
}

// --- admin: operational trail ---

// RecentEvents returns the newest trail entries, optionally limited by ?n=.
func (h Handlers) RecentEvents(c *gin.Context) {
	if h.Audit == nil {
		c.JSON(http.StatusOK, gin.H{"events": []audit.Event{}})
		return
	}
	n := 50
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
			return
		}
		n = v
	}
	events, err := h.Audit.Recent(c.Request.Context(), n)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "trail unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
