// Package bridge relays the carrier's media-stream socket to the realtime
// speech AI socket for one call at a time, interpreting events inline:
// speech-start detection, buffer clearing, and the doorbell-gated supervised
// hang-up timer.
package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"wakeup-coach/internal/gate"
	"wakeup-coach/internal/registry"
	"wakeup-coach/internal/telephony"
)

const realtimeURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview"

// DefaultGraceDelay is the supervised hang-up backstop: once the sleeper has
// touched the sensor and then spoken again, a goodbye was likely said; if the
// AI has not ended the call conversationally by then, we do.
const DefaultGraceDelay = 12 * time.Second

const realtimeInstructions = "You are a supportive wake-up coach on a phone call, helping someone get out of bed. " +
	"Be warm, brief, and encouraging. You must refuse to end the call unless you believe the person " +
	"has physically left their bed and touched the doorbell fingerprint sensor by the front door. " +
	"If they ask to hang up before doing that, remind them to get up and touch the sensor first."

const greetingInstruction = "Greet the person warmly, tell them it is time to wake up, and ask how they slept."

// socket is the subset of *websocket.Conn both relay loops need; tests
// substitute in-memory fakes.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Bridge accepts media-stream connections and runs one session per call.
type Bridge struct {
	gate     *gate.Gate
	registry *registry.Registry
	caller   telephony.Caller
	log      *slog.Logger

	graceDelay time.Duration
	upgrader   websocket.Upgrader

	// dialAI opens the realtime AI socket; swapped out in tests.
	dialAI func() (socket, error)
}

func New(g *gate.Gate, reg *registry.Registry, caller telephony.Caller, apiKey string, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		gate:       g,
		registry:   reg,
		caller:     caller,
		log:        log,
		graceDelay: DefaultGraceDelay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dialAI: func() (socket, error) {
			headers := http.Header{}
			headers.Set("Authorization", "Bearer "+apiKey)
			headers.Set("OpenAI-Beta", "realtime=v1")
			conn, _, err := websocket.DefaultDialer.Dial(realtimeURL, headers)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
}

// HandleMediaStream upgrades the carrier's websocket and runs the session to
// completion. The HTTP handler returns when the call ends.
func (b *Bridge) HandleMediaStream(c *gin.Context) {
	carrier, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.log.Error("media stream upgrade failed", "err", err)
		return
	}
	b.Run(carrier)
}

// session owns the per-call shared state both relay loops touch.
type session struct {
	mu        sync.Mutex
	streamSID string
	callSID   string

	goodbyeTimer  *time.Timer
	goodbyeActive bool
}

func (s *session) ids() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID, s.callSID
}

func (s *session) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.goodbyeTimer != nil {
		s.goodbyeTimer.Stop()
		s.goodbyeTimer = nil
	}
}

// Run drives one bridged call. It blocks until either socket closes and
// guarantees both sockets and the grace timer are released on exit.
func (b *Bridge) Run(carrier socket) {
	defer carrier.Close()

	s := &session{}

	// Wait for the carrier's start event before opening the AI leg: the
	// correlation identifiers arrive there and the hang-up path needs them.
	if !b.awaitStart(carrier, s) {
		return
	}
	streamSID, callSID := s.ids()
	log := b.log.With("call_sid", callSID, "stream_sid", streamSID)
	log.Info("media stream started")

	ai, err := b.dialAI()
	if err != nil {
		log.Error("realtime ai dial failed", "err", err)
		b.stopCall(callSID, log)
		return
	}
	defer ai.Close()
	defer s.stopTimer()

	if err := b.configureSession(ai); err != nil {
		log.Error("realtime session setup failed", "err", err)
		b.stopCall(callSID, log)
		return
	}

	// Two independent relay loops; the session ends when either exits.
	done := make(chan struct{}, 2)
	go func() {
		b.relayCarrierToAI(carrier, ai, log)
		done <- struct{}{}
	}()
	go func() {
		b.relayAIToCarrier(ai, carrier, s, log)
		done <- struct{}{}
	}()
	<-done

	// Closing both sockets (deferred) unblocks the surviving loop.
	log.Info("media stream session ended")
}

// awaitStart consumes carrier events until start arrives, capturing the
// correlation identifiers. Returns false if the socket dies first.
func (b *Bridge) awaitStart(carrier socket, s *session) bool {
	for {
		_, data, err := carrier.ReadMessage()
		if err != nil {
			b.log.Warn("media stream closed before start", "err", err)
			return false
		}
		ev, err := DecodeCarrierEvent(data)
		if err != nil {
			b.log.Debug("undecodable carrier event before start", "err", err)
			continue
		}
		switch ev.Type {
		case CarrierStart:
			s.mu.Lock()
			s.streamSID = ev.StreamSID
			s.callSID = ev.CallSID
			s.mu.Unlock()
			return true
		case CarrierStop:
			return false
		default:
			// connected and any early noise are fine to skip.
		}
	}
}

// configureSession sends the session configuration and the speak-first
// nudge so the assistant greets before the human says anything.
func (b *Bridge) configureSession(ai socket) error {
	update, err := EncodeSessionUpdate(realtimeInstructions)
	if err != nil {
		return err
	}
	if err := ai.WriteMessage(websocket.TextMessage, update); err != nil {
		return err
	}
	greet, err := EncodeGreetingItem(greetingInstruction)
	if err != nil {
		return err
	}
	if err := ai.WriteMessage(websocket.TextMessage, greet); err != nil {
		return err
	}
	create, err := EncodeResponseCreate()
	if err != nil {
		return err
	}
	return ai.WriteMessage(websocket.TextMessage, create)
}

// relayCarrierToAI forwards caller audio to the AI until the stream stops.
func (b *Bridge) relayCarrierToAI(carrier, ai socket, log *slog.Logger) {
	for {
		_, data, err := carrier.ReadMessage()
		if err != nil {
			log.Info("carrier read ended", "err", err)
			return
		}
		ev, err := DecodeCarrierEvent(data)
		if err != nil {
			log.Debug("undecodable carrier event", "err", err)
			continue
		}
		switch ev.Type {
		case CarrierMedia:
			msg, err := EncodeAudioAppend(ev.AudioPayload)
			if err != nil {
				continue
			}
			if err := ai.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("ai write failed", "err", err)
				return
			}
		case CarrierStop:
			log.Info("carrier stream stopped")
			return
		case CarrierUnknown:
			log.Debug("unrecognized carrier event", "event", ev.Name)
		}
	}
}

// relayAIToCarrier forwards synthesized audio to the caller, clears the
// carrier's buffer when the human starts speaking, and arms the supervised
// hang-up timer once speech starts while the doorbell gate is armed.
func (b *Bridge) relayAIToCarrier(ai, carrier socket, s *session, log *slog.Logger) {
	for {
		_, data, err := ai.ReadMessage()
		if err != nil {
			log.Info("ai read ended", "err", err)
			return
		}
		ev, err := DecodeAIEvent(data)
		if err != nil {
			log.Debug("undecodable ai event", "err", err)
			continue
		}
		switch ev.Type {
		case AIAudioDelta:
			streamSID, _ := s.ids()
			msg, err := EncodeCarrierMedia(streamSID, ev.Delta)
			if err != nil {
				continue
			}
			if err := carrier.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("carrier write failed", "err", err)
				return
			}
		case AISpeechStarted:
			streamSID, _ := s.ids()
			if msg, err := EncodeCarrierClear(streamSID); err == nil {
				if err := carrier.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Warn("carrier write failed", "err", err)
					return
				}
			}
			b.maybeArmGoodbyeTimer(s, log)
		case AIError:
			// Non-fatal; the AI keeps the session open.
			log.Warn("realtime ai error", "message", ev.ErrorMessage)
		case AIUnknown:
			log.Debug("unrecognized ai event", "event", ev.Name)
		}
	}
}

// maybeArmGoodbyeTimer starts the one-shot grace timer: the sleeper has
// touched the sensor (gate armed) and is speaking again, so a goodbye is
// likely in flight. Only one timer may exist per session.
func (b *Bridge) maybeArmGoodbyeTimer(s *session, log *slog.Logger) {
	if !b.gate.IsArmed() {
		return
	}

	s.mu.Lock()
	if s.goodbyeActive {
		s.mu.Unlock()
		return
	}
	s.goodbyeActive = true
	callSID := s.callSID
	s.goodbyeTimer = time.AfterFunc(b.graceDelay, func() {
		log.Info("goodbye grace timer fired, ending call")
		b.stopCall(callSID, log)
	})
	s.mu.Unlock()

	// The termination condition is satisfied; record it so the lifecycle
	// orchestrator does not call back after hang-up.
	b.registry.MarkUnlocked(callSID)
	log.Info("goodbye grace timer armed", "delay", b.graceDelay)
}

// stopCall asks the carrier to end the call; best effort.
func (b *Bridge) stopCall(callSID string, log *slog.Logger) {
	if callSID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.caller.EndCall(ctx, callSID); err != nil {
		log.Warn("carrier hangup failed", "err", err)
	}
}
