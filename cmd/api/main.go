package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"wakeup-coach/internal/audit"
	"wakeup-coach/internal/bridge"
	"wakeup-coach/internal/config"
	"wakeup-coach/internal/dialing"
	"wakeup-coach/internal/dialogue"
	"wakeup-coach/internal/gate"
	"wakeup-coach/internal/httpapi"
	"wakeup-coach/internal/orchestrator"
	"wakeup-coach/internal/presence"
	"wakeup-coach/internal/registry"
	"wakeup-coach/internal/telephony"
	"wakeup-coach/pkg/logger"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	caller, err := telephony.NewTwilioCaller(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	if err != nil {
		log.Error("carrier init failed", "err", err)
		os.Exit(1)
	}

	// Shared state: one registry, one gate, one selector, one scheduler.
	reg := registry.New(registry.DefaultRetention, log)
	doorGate := gate.New(cfg.Doorbell.Timeout, log)
	selector, err := dialing.NewSelector(cfg.WakeUp.RealtimeProbability)
	if err != nil {
		log.Error("selector init failed", "err", err)
		os.Exit(1)
	}
	scheduler := dialing.NewScheduler(log)
	defer scheduler.Stop()

	loc, err := time.LoadLocation(cfg.WakeUp.Timezone)
	if err != nil {
		log.Error("timezone load failed", "err", err)
		os.Exit(1)
	}
	wakeHour, wakeMinute, err := config.ParseWakeTime(cfg.WakeUp.Time)
	if err != nil {
		log.Error("wake time parse failed", "err", err)
		os.Exit(1)
	}

	orch := orchestrator.New(orchestrator.Config{
		BaseURL:    cfg.App.BaseURL,
		To:         cfg.WakeUp.ToNumber,
		From:       cfg.Twilio.FromNumber,
		WakeHour:   wakeHour,
		WakeMinute: wakeMinute,
		Location:   loc,
	}, caller, reg, selector, scheduler, log)

	engine := dialogue.NewEngine(reg, doorGate, dialogue.NewOpenAICompleter(cfg.OpenAI.APIKey))
	mediaBridge := bridge.New(doorGate, reg, caller, cfg.OpenAI.APIKey, log)
	trail := audit.NewService(audit.NewMemoryRepo(0))
	presenceHandler := presence.NewHandler(doorGate, cfg.Doorbell.WebhookSecret, trail)

	handlers := httpapi.Handlers{
		Orchestrator: orch,
		Gate:         doorGate,
		Selector:     selector,
		Registry:     reg,
		Audit:        trail,
		StreamURL:    cfg.MediaStreamURL(),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, cfg, handlers, engine, mediaBridge, presenceHandler)

	// Daily wake-time sweep.
	go orch.RunWakeSweep(rootCtx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: media-stream websockets stay open for the whole
		// call and must not be cut off by the server.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "wake_up_time", cfg.WakeUp.Time)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
