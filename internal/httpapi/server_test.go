package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"buddyd/internal/settings"
	"buddyd/internal/supervisor"
	"buddyd/pkg/types"
)

type mockService struct {
	mu       sync.Mutex
	startErr error
	started  []supervisor.StartRequest
	running  bool
	last     string
	ready    bool
	settings map[string]string
}

func newMock() *mockService {
	return &mockService{ready: true, settings: map[string]string{"external_api_key": "", "local_model_directory": "/m"}}
}

func (m *mockService) known(slot string) error {
	switch slot {
	case supervisor.SlotChat, supervisor.SlotImage, supervisor.SlotTTS, supervisor.SlotSTT:
		return nil
	}
	return supervisor.ErrUnknownSlot(slot)
}

func (m *mockService) Start(ctx context.Context, slot string, req supervisor.StartRequest) (supervisor.StartOutcome, error) {
	if err := m.known(slot); err != nil {
		return supervisor.StartOutcome{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, req)
	m.last = req.ModelPath
	if m.startErr != nil {
		return supervisor.StartOutcome{}, m.startErr
	}
	if m.running {
		return supervisor.StartOutcome{Message: "Server already running", AlreadyRunning: true}, nil
	}
	m.running = true
	return supervisor.StartOutcome{Message: "Server started", Model: req.ModelPath, PID: 42}, nil
}

func (m *mockService) Stop(ctx context.Context, slot string) (supervisor.StopOutcome, error) {
	if err := m.known(slot); err != nil {
		return supervisor.StopOutcome{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.running
	m.running = false
	if !was {
		return supervisor.StopOutcome{Message: "Server not running"}, nil
	}
	return supervisor.StopOutcome{Message: "Server stopped", WasRunning: true}, nil
}

func (m *mockService) Status(slot string) (supervisor.StatusResult, error) {
	if err := m.known(slot); err != nil {
		return supervisor.StatusResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return supervisor.StatusResult{IsRunning: m.running}, nil
}

func (m *mockService) LastModel(slot string) (string, error) {
	if err := m.known(slot); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *mockService) Slots() types.SlotsResponse {
	return types.SlotsResponse{Slots: []types.SlotStatus{{Name: "chat", State: "idle"}}}
}

func (m *mockService) Models(ctx context.Context, slot string) (types.ModelsResponse, error) {
	if err := m.known(slot); err != nil {
		return types.ModelsResponse{}, err
	}
	return types.ModelsResponse{Slot: slot, Dir: "/m", Models: []types.Model{{ID: "a.gguf", Path: "/m/a.gguf"}}}, nil
}

func (m *mockService) Usage(ctx context.Context, slot string) (types.UsageResponse, error) {
	if err := m.known(slot); err != nil {
		return types.UsageResponse{}, err
	}
	return types.UsageResponse{Slot: slot}, nil
}

func (m *mockService) GetSettings(ctx context.Context, keys []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(keys) == 0 {
		out := map[string]string{}
		for k, v := range m.settings {
			out[k] = v
		}
		return out, nil
	}
	if unknown := settings.UnknownKeys(m.settings, keys); len(unknown) > 0 {
		return nil, settings.UnknownKeyError{Keys: unknown}
	}
	out := map[string]string{}
	for _, k := range keys {
		out[k] = m.settings[k]
	}
	return out, nil
}

func (m *mockService) SetSettings(ctx context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	if unknown := settings.UnknownKeys(m.settings, keys); len(unknown) > 0 {
		return settings.UnknownKeyError{Keys: unknown}
	}
	for k, v := range values {
		m.settings[k] = v
	}
	return nil
}

func (m *mockService) Ready() bool { return m.ready }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStartStopStatusFlow(t *testing.T) {
	svc := newMock()
	h := NewMux(svc)

	w := do(t, h, http.MethodPost, "/chat/start", `{"model_path":"Meta-Llama-3-8B.gguf","gpu_layers":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start status=%d body=%s", w.Code, w.Body.String())
	}
	var msg types.MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("json: %v", err)
	}
	if msg.Message != "Server started" || msg.PID != 42 {
		t.Fatalf("unexpected body: %+v", msg)
	}
	if gl := svc.started[0].GPULayers; gl == nil || *gl != 0 {
		t.Fatalf("gpu_layers not passed through: %v", gl)
	}

	w = do(t, h, http.MethodGet, "/chat/status", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"isRunning":true`) {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/chat/start", `{"model_path":"other.gguf"}`)
	if !strings.Contains(w.Body.String(), "already running") {
		t.Fatalf("second start: %s", w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/chat/stop", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Server stopped") {
		t.Fatalf("stop: %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, "/chat/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("idempotent stop: %d", w.Code)
	}

	w = do(t, h, http.MethodGet, "/chat/lastModel", "")
	var lm types.LastModelResponse
	_ = json.Unmarshal(w.Body.Bytes(), &lm)
	if lm.LastModel != "other.gguf" {
		t.Fatalf("lastModel = %q", lm.LastModel)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestStartErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{supervisor.ErrConfiguration("chat", "no API key"), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := newMock()
		svc.startErr = tc.err
		w := do(t, NewMux(svc), http.MethodPost, "/chat/start", `{"model_path":"a.gguf"}`)
		if w.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.want)
		}
		var er types.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != tc.want {
			t.Fatalf("error body: %s", w.Body.String())
		}
	}
}

func TestStartBadRequests(t *testing.T) {
	h := NewMux(newMock())
	if w := do(t, h, http.MethodPost, "/video/start", `{"model_path":"a"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown slot: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/chat/start", "not-json"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/chat/start", `{"model_path":"a","gpu_layers":-1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("negative gpu layers: %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/chat/start", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("media type: %d", w.Code)
	}
	big := `{"model_path":"` + strings.Repeat("a", int(maxBodyBytes)) + `"}`
	if w := do(t, h, http.MethodPost, "/chat/start", big); w.Code != http.StatusBadRequest {
		t.Fatalf("too large: %d", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	h := NewMux(newMock())
	w := do(t, h, http.MethodGet, "/settings?keys=local_model_directory", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"local_model_directory":"/m"`) {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/settings?keys=nope,local_model_directory", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown key: %d", w.Code)
	}
	w = do(t, h, http.MethodPut, "/settings", `{"external_api_key":"sk-1"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "sk-1") {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodPut, "/settings", `{"bogus":"1"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("put unknown: %d", w.Code)
	}
}

func TestListingEndpoints(t *testing.T) {
	h := NewMux(newMock())
	if w := do(t, h, http.MethodGet, "/slots", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"name":"chat"`) {
		t.Fatalf("slots: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/chat/models", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "a.gguf") {
		t.Fatalf("models: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/tts/usage", ""); w.Code != http.StatusOK {
		t.Fatalf("usage: %d", w.Code)
	}
}

func TestProbes(t *testing.T) {
	svc := newMock()
	h := NewMux(svc)
	if w := do(t, h, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz: %d", w.Code)
	}
	svc.ready = false
	if w := do(t, h, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz not ready: %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	SetCORSOptions(true, []string{"http://localhost:5173"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	h := NewMux(newMock())
	req := httptest.NewRequest(http.MethodOptions, "/chat/start", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(supervisor.ErrUnknownSlot("x")); got != http.StatusNotFound {
		t.Fatalf("unknown slot: %d", got)
	}
	if got := statusFor(settings.UnknownKeyError{Keys: []string{"x"}}); got != http.StatusBadRequest {
		t.Fatalf("unknown key: %d", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitCSV = %q", got)
	}
	if splitCSV("") != nil {
		t.Fatalf("empty input should yield nil")
	}
}
