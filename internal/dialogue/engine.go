// Package dialogue drives the turn-based wake-up conversation over carrier
// webhook cycles: greet, listen, respond, listen again, with a sleep-check
// when the caller stays silent.
package dialogue

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wakeup-coach/internal/gate"
	"wakeup-coach/internal/registry"
	"wakeup-coach/internal/telephony"
	"wakeup-coach/pkg/logger"
)

// Webhook paths, referenced by TwiML actions and wired in cmd/api/routes.go.
const (
	PathVoice      = "/voice"
	PathRespond    = "/handle-response"
	PathSleepCheck = "/sleep-check"
)

const (
	greetingLine   = "Good morning! Time to wake up. How are you feeling?"
	sleepCheckLine = "Hello? Are you sleeping? Talk to me so I know you are awake."
	refusalLine    = "Not so fast. Get out of bed and touch the doorbell sensor, then we can say goodbye."
	farewellLine   = "Well done getting up. Have a wonderful day. Goodbye!"
	apologyLine    = "Sorry, I lost my train of thought. Are you out of bed yet?"
)

const personaPrompt = "You are a supportive wake-up coach. Your goal is to help the person wake up gently and start their day positively. Keep responses brief and encouraging."

const unlockReminder = " The person cannot end this call by voice until they get out of bed and touch the doorbell fingerprint sensor by the front door. If they try to say goodbye, remind them to do that first."

// terminationPhrases end the call when spoken while the gate is armed.
var terminationPhrases = []string{"goodbye", "end call"}

// Engine is the turn-based dialogue state machine. Each webhook request is
// one transition; all per-call state lives in the registry and the gate, so
// the engine itself is stateless and safe for concurrent requests.
type Engine struct {
	registry  *registry.Registry
	gate      *gate.Gate
	completer Completer
}

func NewEngine(reg *registry.Registry, g *gate.Gate, completer Completer) *Engine {
	return &Engine{registry: reg, gate: g, completer: completer}
}

// HandleVoice is the call's dialogue entry point: speak the greeting and
// start the first listen cycle.
func (e *Engine) HandleVoice(c *gin.Context) {
	e.render(c, telephony.Response{Verbs: []any{
		telephony.Say{Text: greetingLine},
		telephony.NewGather(PathRespond),
		telephony.Redirect{Method: "POST", URL: PathSleepCheck},
	}})
}

// HandleSleepCheck runs when a listen cycle times out without speech: ask if
// they fell back asleep and listen again.
func (e *Engine) HandleSleepCheck(c *gin.Context) {
	e.render(c, telephony.Response{Verbs: []any{
		telephony.Say{Text: sleepCheckLine},
		telephony.NewGather(PathRespond),
		telephony.Redirect{Method: "POST", URL: PathSleepCheck},
	}})
}

// HandleRespond processes captured speech and speaks the next turn.
func (e *Engine) HandleRespond(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseSpeechResult(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	resp := e.Respond(c.Request.Context(), form.CallSid, form.SpeechResult)
	log.Info("dialogue turn", "call_sid", form.CallSid, "speech_len", len(form.SpeechResult))
	e.render(c, resp)
}

// Respond computes one dialogue turn. Exported separately from the HTTP
// handler so the state machine is testable without TwiML parsing.
func (e *Engine) Respond(ctx context.Context, callSID, speech string) telephony.Response {
	if wantsToHangUp(speech) {
		if e.gate.IsArmed() {
			// Physical presence confirmed; honor the goodbye. No further
			// gather, so the call winds down naturally.
			e.registry.MarkUnlocked(callSID)
			return telephony.Response{Verbs: []any{
				telephony.Say{Text: farewellLine},
			}}
		}
		return e.listenAgain(refusalLine)
	}

	prompt := personaPrompt
	if !e.gate.IsArmed() {
		prompt += unlockReminder
	}

	reply, err := e.completer.Complete(ctx, prompt, speech)
	if err != nil {
		// Conversational continuity beats surfacing the failure: apologize
		// and keep listening rather than dropping the call.
		return e.listenAgain(apologyLine)
	}
	return e.listenAgain(reply)
}

func (e *Engine) listenAgain(line string) telephony.Response {
	return telephony.Response{Verbs: []any{
		telephony.Say{Text: line},
		telephony.NewGather(PathRespond),
		telephony.Redirect{Method: "POST", URL: PathSleepCheck},
	}}
}

func (e *Engine) render(c *gin.Context, r telephony.Response) {
	doc, err := telephony.Render(r)
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, doc)
}

func wantsToHangUp(speech string) bool {
	normalized := strings.ToLower(strings.TrimSpace(speech))
	for _, phrase := range terminationPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}
