// Package telephony is the carrier adapter boundary: originating calls,
// verifying webhook signatures, parsing webhook forms, and rendering TwiML.
//
// No business logic here. Dialogue decisions live in internal/dialogue and
// internal/bridge; call lifecycle decisions in internal/orchestrator.
package telephony

import (
	"context"
	"errors"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// Caller is the provider-agnostic interface the orchestrator and bridge use.
//
// Rules:
// - No provider SDK calls outside this package.
// - Keep request/response types provider-agnostic.
type Caller interface {
	// CreateCall originates an outbound call. The carrier fetches dialogue
	// instructions from twimlURL and posts lifecycle events to statusCallback.
	CreateCall(ctx context.Context, req CreateCallRequest) (callSID string, err error)

	// EndCall hangs up an in-progress call.
	EndCall(ctx context.Context, callSID string) error
}

type CreateCallRequest struct {
	To   string
	From string

	// TwimlURL is the dialogue entry point, fixed for the call's lifetime.
	TwimlURL string

	StatusCallback string
}

// statusCallbackEvents are the lifecycle events the carrier reports back.
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// TwilioCaller implements Caller against the Twilio REST API.
type TwilioCaller struct {
	client *twilio.RestClient
}

func NewTwilioCaller(accountSID, authToken string) (*TwilioCaller, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("telephony: account SID and auth token are required")
	}
	return &TwilioCaller{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
	}, nil
}

func (t *TwilioCaller) CreateCall(ctx context.Context, req CreateCallRequest) (string, error) {
	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetUrl(req.TwimlURL)
	params.SetStatusCallback(req.StatusCallback)
	params.SetStatusCallbackEvent(statusCallbackEvents)

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", errors.New("telephony: carrier returned call without sid")
	}
	return *resp.Sid, nil
}

func (t *TwilioCaller) EndCall(ctx context.Context, callSID string) error {
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	_, err := t.client.Api.UpdateCall(callSID, params)
	return err
}
