package telephony

import (
	"bytes"
	"encoding/xml"
)

// Minimal TwiML builder for the verbs the dialogue engines need.
// It intentionally avoids the provider SDK's TwiML helpers: the documents we
// produce are small and a hand-rolled encoder keeps the surface auditable.

type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

// Say speaks text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather captures speech and posts the transcription to Action. When the
// caller says nothing within the timeout the document falls through to
// whatever verb follows the Gather (we always append a Redirect).
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Language      string   `xml:"language,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
}

// Redirect sends the call to another webhook.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Connect opens a bidirectional media stream to the given websocket URL.
type Connect struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  Stream   `xml:"Stream"`
}

type Stream struct {
	URL string `xml:"url,attr"`
}

// NewGather returns a speech Gather with the settings every listen cycle
// uses: 5 second capture window, en-US, POST back to action.
func NewGather(action string) Gather {
	return Gather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		Language:      "en-US",
		SpeechTimeout: "auto",
		Timeout:       5,
	}
}

// Render encodes the response as a TwiML document.
func Render(r Response) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
