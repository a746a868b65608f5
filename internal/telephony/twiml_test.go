package telephony

import (
	"strings"
	"testing"
)

func TestRender_SayGatherRedirect(t *testing.T) {
	doc, err := Render(Response{Verbs: []any{
		Say{Text: "Good morning! Time to wake up."},
		NewGather("/respond"),
		Redirect{Method: "POST", URL: "/sleep-check"},
	}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, want := range []string{
		"<Response>",
		"Good morning! Time to wake up.",
		`input="speech"`,
		`action="/respond"`,
		`language="en-US"`,
		"<Redirect method=\"POST\">/sleep-check</Redirect>",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in document:\n%s", want, doc)
		}
	}
}

func TestRender_ConnectStream(t *testing.T) {
	doc, err := Render(Response{Verbs: []any{
		Connect{Stream: Stream{URL: "wss://coach.example.com/media-stream"}},
	}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(doc, `<Stream url="wss://coach.example.com/media-stream">`) {
		t.Fatalf("expected stream url in document:\n%s", doc)
	}
}

func TestRender_FarewellHasNoGather(t *testing.T) {
	doc, err := Render(Response{Verbs: []any{
		Say{Text: "Great job getting up. Goodbye!"},
	}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(doc, "<Gather") {
		t.Fatalf("farewell must not re-listen:\n%s", doc)
	}
}
