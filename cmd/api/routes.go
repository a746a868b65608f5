package main

import (
	"github.com/gin-gonic/gin"

	"wakeup-coach/internal/bridge"
	"wakeup-coach/internal/config"
	"wakeup-coach/internal/dialogue"
	"wakeup-coach/internal/httpapi"
	"wakeup-coach/internal/presence"
	"wakeup-coach/internal/telephony"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(
	r *gin.Engine,
	cfg config.Config,
	h httpapi.Handlers,
	engine *dialogue.Engine,
	mediaBridge *bridge.Bridge,
	presenceHandler *presence.Handler,
) {
	// Operational surface (public; single-operator deployment).
	r.GET("/", h.Root)
	r.GET("/test-call", h.TriggerCall)
	r.POST("/call", h.TriggerCall)

	// Doorbell sensor integration. The webhook carries its own shared-secret
	// check; status and manual activation are operator conveniences.
	r.POST("/doorbell-webhook", presenceHandler.HandleWebhook)
	r.GET("/doorbell-status", h.DoorbellStatus)
	r.POST("/activate-doorbell", h.ActivateDoorbell)

	// Carrier webhooks: every entry point is signature-verified, and
	// signature failures never reach dialogue logic.
	sig := telephony.RequireSignature(cfg.Twilio.AuthToken)
	r.POST("/call-status", sig, h.StatusCallback)
	r.POST(dialogue.PathVoice, sig, engine.HandleVoice)
	r.POST(dialogue.PathRespond, sig, engine.HandleRespond)
	r.POST(dialogue.PathSleepCheck, sig, engine.HandleSleepCheck)
	r.POST("/voice-realtime", sig, h.RealtimeVoice)

	// Media stream socket. The carrier does not sign websocket upgrades;
	// the bridge requires a well-formed start frame before doing anything.
	r.GET("/media-stream", mediaBridge.HandleMediaStream)

	// Admin surface.
	admin := r.Group("/admin")
	{
		admin.GET("/realtime-probability", h.GetProbability)
		admin.PUT("/realtime-probability", h.SetProbability)
		admin.POST("/scheduled-calls", h.ScheduleCall)
		admin.GET("/scheduled-calls", h.ListScheduledCalls)
		admin.DELETE("/scheduled-calls/:id", h.CancelScheduledCall)
		admin.GET("/events", h.RecentEvents)
	}
}
