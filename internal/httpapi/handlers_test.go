package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"wakeup-coach/internal/audit"
	"wakeup-coach/internal/dialing"
	"wakeup-coach/internal/gate"
	"wakeup-coach/internal/orchestrator"
	"wakeup-coach/internal/registry"
	"wakeup-coach/internal/telephony"
)

type stubCaller struct{ sid string }

func (s stubCaller) CreateCall(context.Context, telephony.CreateCallRequest) (string, error) {
	return s.sid, nil
}

func (s stubCaller) EndCall(context.Context, string) error { return nil }

func newTestHandlers(t *testing.T) (Handlers, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sel, err := dialing.NewSelector(0)
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	sched := dialing.NewScheduler(nil)
	t.Cleanup(sched.Stop)
	reg := registry.New(registry.DefaultRetention, nil)
	g := gate.New(time.Hour, nil)
	t.Cleanup(g.Disarm)

	orch := orchestrator.New(orchestrator.Config{
		BaseURL: "https://coach.example.com",
		To:      "+15552223333",
		From:    "+15550001111",
	}, stubCaller{sid: "CA1"}, reg, sel, sched, nil)

	h := Handlers{
		Orchestrator: orch,
		Gate:         g,
		Selector:     sel,
		Registry:     reg,
		Audit:        audit.NewService(audit.NewMemoryRepo(0)),
		StreamURL:    "wss://coach.example.com/media-stream",
	}

	r := gin.New()
	r.GET("/", h.Root)
	r.POST("/call", h.TriggerCall)
	r.POST("/voice-realtime", h.RealtimeVoice)
	r.GET("/doorbell-status", h.DoorbellStatus)
	r.POST("/activate-doorbell", h.ActivateDoorbell)
	r.GET("/admin/realtime-probability", h.GetProbability)
	r.PUT("/admin/realtime-probability", h.SetProbability)
	r.POST("/admin/scheduled-calls", h.ScheduleCall)
	r.GET("/admin/scheduled-calls", h.ListScheduledCalls)
	r.DELETE("/admin/scheduled-calls/:id", h.CancelScheduledCall)
	r.GET("/admin/events", h.RecentEvents)
	return h, r
}

func doRequest(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	_, r := newTestHandlers(t)
	w := doRequest(r, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Wake-up Coach is running") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestTriggerCall(t *testing.T) {
	h, r := newTestHandlers(t)
	w := doRequest(r, http.MethodPost, "/call", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := h.Registry.Get("CA1"); !ok {
		t.Fatalf("expected call registered")
	}
}

func TestRealtimeVoice_ServesStreamTwiML(t *testing.T) {
	_, r := newTestHandlers(t)
	w := doRequest(r, http.MethodPost, "/voice-realtime", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), `url="wss://coach.example.com/media-stream"`) {
		t.Fatalf("expected stream url, got %s", w.Body.String())
	}
}

func TestDoorbellEndpoints(t *testing.T) {
	_, r := newTestHandlers(t)

	w := doRequest(r, http.MethodGet, "/doorbell-status", "")
	if !strings.Contains(w.Body.String(), `"armed":false`) {
		t.Fatalf("expected disarmed, got %s", w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/activate-doorbell", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/doorbell-status", "")
	var status struct {
		Armed            bool `json:"armed"`
		SecondsRemaining int  `json:"seconds_remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !status.Armed || status.SecondsRemaining <= 0 {
		t.Fatalf("expected armed with time remaining, got %+v", status)
	}
}

func TestProbabilityEndpoints(t *testing.T) {
	h, r := newTestHandlers(t)

	w := doRequest(r, http.MethodPut, "/admin/realtime-probability", `{"probability":0.75}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if h.Selector.Probability() != 0.75 {
		t.Fatalf("expected committed probability, got %v", h.Selector.Probability())
	}

	w = doRequest(r, http.MethodPut, "/admin/realtime-probability", `{"probability":1.5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range, got %d", w.Code)
	}
	if h.Selector.Probability() != 0.75 {
		t.Fatalf("rejected update must not mutate, got %v", h.Selector.Probability())
	}

	w = doRequest(r, http.MethodPut, "/admin/realtime-probability", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing field, got %d", w.Code)
	}
}

func TestScheduledCallEndpoints(t *testing.T) {
	_, r := newTestHandlers(t)

	w := doRequest(r, http.MethodPost, "/admin/scheduled-calls", `{"delay_seconds":60}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.TaskID == "" {
		t.Fatalf("expected task id, got %s", w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/admin/scheduled-calls", "")
	if !strings.Contains(w.Body.String(), created.TaskID) {
		t.Fatalf("expected task listed, got %s", w.Body.String())
	}

	w = doRequest(r, http.MethodDelete, "/admin/scheduled-calls/"+created.TaskID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doRequest(r, http.MethodDelete, "/admin/scheduled-calls/"+created.TaskID, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task, got %d", w.Code)
	}
}

func TestStatusCallbackHandler(t *testing.T) {
	h, r := newTestHandlers(t)
	r.POST("/call-status", h.StatusCallback)

	req := httptest.NewRequest(http.MethodPost, "/call-status", strings.NewReader("CallSid=CA7&CallStatus=ringing"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	rec, ok := h.Registry.Get("CA7")
	if !ok || rec.Status != registry.StatusRinging {
		t.Fatalf("expected ringing record, got %+v ok=%v", rec, ok)
	}
}

func TestRecentEvents(t *testing.T) {
	_, r := newTestHandlers(t)

	// Arming the doorbell and placing a call both leave trail entries.
	doRequest(r, http.MethodPost, "/activate-doorbell", "")
	doRequest(r, http.MethodPost, "/call", "")

	w := doRequest(r, http.MethodGet, "/admin/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Events []audit.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(resp.Events))
	}
	// Newest first: the call trigger follows the doorbell arm.
	if resp.Events[0].Type != audit.EventTypeAdminAction || resp.Events[1].Type != audit.EventTypeDoorbell {
		t.Fatalf("unexpected ordering: %+v", resp.Events)
	}

	if w := doRequest(r, http.MethodGet, "/admin/events?n=zero", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad n, got %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/admin/events?n=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(resp.Events))
	}
}
