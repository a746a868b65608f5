package bridge

import "encoding/json"

// Both sockets speak JSON event vocabularies keyed by a type string. Each is
// decoded once at the boundary into a closed tag set; unrecognized types get
// a distinct tag, logged and ignored, never a crash.

// CarrierEventType tags inbound media-stream events.
type CarrierEventType int

const (
	CarrierUnknown CarrierEventType = iota
	CarrierConnected
	CarrierStart
	CarrierMedia
	CarrierMark
	CarrierStop
)

// CarrierEvent is one decoded media-stream event.
type CarrierEvent struct {
	Type CarrierEventType

	// Raw event name, kept for logging unrecognized types.
	Name string

	// Set on start.
	StreamSID string
	CallSID   string

	// Set on media: base64 payload, forwarded opaquely (no transcoding).
	AudioPayload string
}

type carrierWire struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid,omitempty"`
	Start     *struct {
		StreamSid string `json:"streamSid"`
		CallSid   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
}

func DecodeCarrierEvent(data []byte) (CarrierEvent, error) {
	var w carrierWire
	if err := json.Unmarshal(data, &w); err != nil {
		return CarrierEvent{}, err
	}
	ev := CarrierEvent{Name: w.Event}
	switch w.Event {
	case "connected":
		ev.Type = CarrierConnected
	case "start":
		ev.Type = CarrierStart
		if w.Start != nil {
			ev.StreamSID = w.Start.StreamSid
			ev.CallSID = w.Start.CallSid
		}
	case "media":
		ev.Type = CarrierMedia
		if w.Media != nil {
			ev.AudioPayload = w.Media.Payload
		}
	case "mark":
		ev.Type = CarrierMark
	case "stop":
		ev.Type = CarrierStop
	default:
		ev.Type = CarrierUnknown
	}
	return ev, nil
}

// AIEventType tags inbound realtime-AI events.
type AIEventType int

const (
	AIUnknown AIEventType = iota
	AIAudioDelta
	AISpeechStarted
	AIResponseDone
	AIError
)

// AIEvent is one decoded realtime-AI event.
type AIEvent struct {
	Type AIEventType
	Name string

	// Set on audio delta: base64 payload for the carrier.
	Delta string

	// Set on error.
	ErrorMessage string
}

type aiWire struct {
	Type  string `json:"type"`
	Delta string `json:"delta,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func DecodeAIEvent(data []byte) (AIEvent, error) {
	var w aiWire
	if err := json.Unmarshal(data, &w); err != nil {
		return AIEvent{}, err
	}
	ev := AIEvent{Name: w.Type}
	switch w.Type {
	case "response.audio.delta":
		ev.Type = AIAudioDelta
		ev.Delta = w.Delta
	case "input_audio_buffer.speech_started":
		ev.Type = AISpeechStarted
	case "response.done":
		ev.Type = AIResponseDone
	case "error":
		ev.Type = AIError
		if w.Error != nil {
			ev.ErrorMessage = w.Error.Message
		}
	default:
		ev.Type = AIUnknown
	}
	return ev, nil
}

// --- outbound messages ---

type mediaOut struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

// EncodeCarrierMedia wraps an audio payload for the media-stream socket.
func EncodeCarrierMedia(streamSID, payload string) ([]byte, error) {
	return json.Marshal(mediaOut{Event: "media", StreamSid: streamSID, Media: mediaPayload{Payload: payload}})
}

// EncodeCarrierClear tells the carrier to drop buffered outbound audio,
// cutting the assistant off when the human starts speaking.
func EncodeCarrierClear(streamSID string) ([]byte, error) {
	return json.Marshal(map[string]string{"event": "clear", "streamSid": streamSID})
}

// EncodeAudioAppend wraps a carrier audio payload for the AI socket.
func EncodeAudioAppend(payload string) ([]byte, error) {
	return json.Marshal(map[string]string{"type": "input_audio_buffer.append", "audio": payload})
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	TurnDetection     turnDetection `json:"turn_detection"`
	InputAudioFormat  string        `json:"input_audio_format"`
	OutputAudioFormat string        `json:"output_audio_format"`
	Voice             string        `json:"voice"`
	Instructions      string        `json:"instructions"`
	Modalities        []string      `json:"modalities"`
	Temperature       float64       `json:"temperature"`
}

type turnDetection struct {
	Type string `json:"type"`
}

// EncodeSessionUpdate builds the session-configuration message. Audio is
// passed through as telephony-rate mulaw on both legs.
func EncodeSessionUpdate(instructions string) ([]byte, error) {
	return json.Marshal(sessionUpdate{
		Type: "session.update",
		Session: sessionConfig{
			TurnDetection:     turnDetection{Type: "server_vad"},
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
			Voice:             "echo",
			Instructions:      instructions,
			Modalities:        []string{"text", "audio"},
			Temperature:       0.8,
		},
	})
}

type conversationItem struct {
	Type string          `json:"type"`
	Item conversationMsg `json:"item"`
}

type conversationMsg struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// EncodeGreetingItem injects a synthetic user turn so the assistant speaks
// first instead of waiting for the sleeper.
func EncodeGreetingItem(text string) ([]byte, error) {
	return json.Marshal(conversationItem{
		Type: "conversation.item.create",
		Item: conversationMsg{
			Type:    "message",
			Role:    "user",
			Content: []contentPart{{Type: "input_text", Text: text}},
		},
	})
}

// EncodeResponseCreate asks the AI to produce a response now.
func EncodeResponseCreate() ([]byte, error) {
	return json.Marshal(map[string]string{"type": "response.create"})
}
