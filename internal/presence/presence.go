// Package presence turns doorbell sensor webhooks into policy-gate arming.
//
// The sensor integration posts an opaque JSON envelope. We only classify it:
// recognized event types arm the gate, everything else is logged and ignored.
package presence

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wakeup-coach/internal/audit"
	"wakeup-coach/internal/gate"
	"wakeup-coach/pkg/logger"
)

const secretHeader = "X-Webhook-Secret"

// recognizedEventTypes are the substrings that mark an event as a physical
// presence confirmation. The fingerprint reader reports
// "doorbell.fingerprint.authenticated"; plain button presses and ring events
// also count as someone standing at the door.
var recognizedEventTypes = []string{"fingerprint", "doorbell_press", "ring"}

// envelope pulls out the fields sensor firmwares commonly use for the event
// type. The rest of the payload stays opaque.
type envelope struct {
	EventType string `json:"event_type"`
	Type      string `json:"type"`
	Event     string `json:"event"`
	DeviceID  string `json:"device_id"`
}

// Handler owns the presence webhook endpoint.
type Handler struct {
	gate  *gate.Gate
	trail *audit.Service

	// secret, when non-empty, must match the X-Webhook-Secret header.
	// Optional so sensors that cannot set headers still work.
	secret string
}

func NewHandler(g *gate.Gate, secret string, trail *audit.Service) *Handler {
	return &Handler{gate: g, secret: secret, trail: trail}
}

// HandleWebhook classifies a sensor event and arms the gate on a match.
func (h *Handler) HandleWebhook(c *gin.Context) {
	log := logger.FromGin(c)

	if h.secret != "" {
		got := c.GetHeader(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			log.Warn("presence webhook secret rejected")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	var env envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	kind, ok := Classify(env.EventType, env.Type, env.Event)
	if !ok {
		log.Info("presence event ignored", "event_type", env.EventType, "device_id", env.DeviceID)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event_type": env.EventType})
		return
	}

	h.gate.Arm()
	if h.trail != nil {
		// Best-effort; arming never fails on a trail error.
		if err := h.trail.LogDoorbell(c.Request.Context(), "armed by sensor ("+kind+")"); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	log.Info("presence confirmed, gate armed", "match", kind, "device_id", env.DeviceID)
	c.JSON(http.StatusOK, gin.H{"status": "doorbell activated", "event_type": env.EventType})
}

// Classify reports whether any candidate event-type string contains a
// recognized presence marker, and which marker matched.
func Classify(candidates ...string) (string, bool) {
	for _, c := range candidates {
		c = strings.ToLower(c)
		for _, want := range recognizedEventTypes {
			if strings.Contains(c, want) {
				return want, true
			}
		}
	}
	return "", false
}
