package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/database/mock"
	"github.com/kozaktomas/face-checkin/internal/frame"
)

// manualTicker fires only when the test says so.
type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

// tick fires once, failing the test if no scheduler is listening.
func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("scheduler is not listening for ticks")
	}
}

// recordingVerifier returns a fixed outcome and remembers what it saw.
type recordingVerifier struct {
	mu       sync.Mutex
	outcome  *checkin.Outcome
	err      error
	contexts []string
	frames   []*frame.Frame
}

func (v *recordingVerifier) Verify(_ context.Context, contextID string, f *frame.Frame) (*checkin.Outcome, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contexts = append(v.contexts, contextID)
	v.frames = append(v.frames, f)
	return v.outcome, v.err
}

func (v *recordingVerifier) seen() []*frame.Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*frame.Frame(nil), v.frames...)
}

type checkerFunc func(ctx context.Context, id string) error

func (f checkerFunc) CheckContext(ctx context.Context, id string) error { return f(ctx, id) }

type enderFunc func(ctx context.Context, id string) error

func (f enderFunc) EndSession(ctx context.Context, id string) error { return f(ctx, id) }

// testEnv is a SessionsHandler wired to fakes.
type testEnv struct {
	handler *SessionsHandler
	manager *SessionManager
	store   *mock.MockConfirmationStore
	ticker  *manualTicker
	self    *recordingVerifier
	batch   *recordingVerifier
	// tokens are the attendee tokens self check-in sessions were built with.
	tokens []string
}

func newTestEnv(t *testing.T, mods ...func(*Backend)) *testEnv {
	t.Helper()
	nop := zerolog.Nop()
	env := &testEnv{
		manager: NewSessionManager(0),
		store:   mock.NewMockConfirmationStore(),
		ticker:  &manualTicker{ch: make(chan time.Time)},
		self: &recordingVerifier{outcome: &checkin.Outcome{
			Kind:  checkin.OutcomeMatched,
			Match: &checkin.Match{Subject: "alice", ConfirmedAt: "09:05 AM"},
		}},
		batch: &recordingVerifier{outcome: &checkin.Outcome{
			Kind:    checkin.OutcomeBatch,
			Matches: []checkin.Match{{Subject: "alice"}, {Subject: "bob"}},
		}},
	}
	backend := Backend{
		Attendee: func(token string) (checkin.Verifier, checkin.ContextChecker) {
			env.tokens = append(env.tokens, token)
			return env.self, nil
		},
		BatchVerifier: env.batch,
		Store:         env.store,
		Interval:      time.Second,
		MaxFrameSize:  64,
		Ticker:        func(time.Duration) checkin.Ticker { return env.ticker },
		Logger:        &nop,
	}
	for _, mod := range mods {
		mod(&backend)
	}
	env.handler = NewSessionsHandler(backend, env.manager)
	t.Cleanup(env.manager.Close)
	return env
}

// create starts a session through the handler and returns the recorder.
func (e *testEnv) create(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	e.handler.Create(recorder, req)
	return recorder
}

// createOK starts a session and returns its snapshot.
func (e *testEnv) createOK(t *testing.T, body string) checkin.Snapshot {
	t.Helper()
	recorder := e.create(t, body)
	assertStatusCode(t, recorder, http.StatusCreated)
	var snap checkin.Snapshot
	parseJSONResponse(t, recorder, &snap)
	return snap
}

// waitClosed waits for a session to tear down and its last attempt to return.
func (e *testEnv) waitClosed(t *testing.T, id string) *kioskSession {
	t.Helper()
	sess := e.manager.Get(id)
	if sess == nil {
		t.Fatalf("session %s not registered", id)
	}
	select {
	case <-sess.ctrl.Done():
	case <-time.After(time.Second):
		t.Fatalf("session %s did not close, state %s", id, sess.ctrl.State())
	}
	sess.ctrl.Wait()
	return sess
}

// testPNG encodes a w x h image.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}
