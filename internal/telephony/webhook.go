package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"wakeup-coach/internal/registry"
)

// StatusCallbackForm captures the subset of status callback fields we care
// about. Twilio sends application/x-www-form-urlencoded by default.
type StatusCallbackForm struct {
	CallSid      string
	CallStatus   string
	CallDuration int
}

func ParseStatusCallback(r *http.Request) (StatusCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallbackForm{}, err
	}
	f := StatusCallbackForm{
		CallSid:    r.PostFormValue("CallSid"),
		CallStatus: strings.TrimSpace(r.PostFormValue("CallStatus")),
	}
	if v := r.PostFormValue("CallDuration"); v != "" {
		// Duration is optional and only present on terminal callbacks.
		if n, err := strconv.Atoi(v); err == nil {
			f.CallDuration = n
		}
	}
	return f, nil
}

// SpeechForm is the dialogue webhook payload: what the caller said.
type SpeechForm struct {
	CallSid      string
	SpeechResult string
}

func ParseSpeechResult(r *http.Request) (SpeechForm, error) {
	if err := r.ParseForm(); err != nil {
		return SpeechForm{}, err
	}
	return SpeechForm{
		CallSid:      r.PostFormValue("CallSid"),
		SpeechResult: r.PostFormValue("SpeechResult"),
	}, nil
}

// MapStatus converts a carrier status string to the registry vocabulary.
// Unknown strings pass through untranslated; the registry is last-write-wins
// and does not enumerate them.
func MapStatus(s string) registry.Status {
	switch s {
	case "queued", "initiated":
		return registry.StatusInitiated
	case "ringing":
		return registry.StatusRinging
	case "in-progress", "answered":
		return registry.StatusAnswered
	case "completed":
		return registry.StatusCompleted
	case "failed", "canceled":
		return registry.StatusFailed
	case "busy":
		return registry.StatusBusy
	case "no-answer":
		return registry.StatusNoAnswer
	default:
		return registry.Status(s)
	}
}
