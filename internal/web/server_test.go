package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/config"
	"github.com/kozaktomas/face-checkin/internal/database"
	"github.com/kozaktomas/face-checkin/internal/frame"
	"github.com/kozaktomas/face-checkin/internal/web/handlers"
)

func testServer(t *testing.T, token string) *Server {
	t.Helper()
	nop := zerolog.Nop()
	verifier := checkin.VerifyFunc(func(context.Context, string, *frame.Frame) (*checkin.Outcome, error) {
		return &checkin.Outcome{Kind: checkin.OutcomeNoMatch}, nil
	})
	cfg := &config.Config{Web: config.WebConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		APIToken:       token,
		AllowedOrigins: []string{"*"},
		FrameRateLimit: 5,
	}}
	s := NewServer(cfg, handlers.Backend{
		Attendee: func(string) (checkin.Verifier, checkin.ContextChecker) {
			return verifier, nil
		},
		BatchVerifier: verifier,
		Store:         database.NewMemoryStore(),
		Interval:      time.Hour,
		Logger:        &nop,
	})
	t.Cleanup(s.Sessions().Close)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func TestServer_Health(t *testing.T) {
	s := testServer(t, "s3cret")

	rr := serve(s, httptest.NewRequest("GET", "/api/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rr.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := testServer(t, "")

	rr := serve(s, httptest.NewRequest("GET", "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "checkin_skipped_ticks_total") {
		t.Error("expected check-in metrics to be exported")
	}
}

func TestServer_KioskPage(t *testing.T) {
	s := testServer(t, "")

	for _, path := range []string{"/", "/kiosk/anything"} {
		rr := serve(s, httptest.NewRequest("GET", path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("%s content type = %q", path, ct)
		}
		if !strings.Contains(rr.Body.String(), "getUserMedia") {
			t.Errorf("%s did not serve the kiosk page", path)
		}
	}
}

func TestServer_APIRequiresToken(t *testing.T) {
	s := testServer(t, "s3cret")

	rr := serve(s, httptest.NewRequest("GET", "/api/v1/sessions", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr = serve(s, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", rr.Code)
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	s := testServer(t, "")

	req := httptest.NewRequest("POST", "/api/v1/sessions", strings.NewReader(`{"event_id": 3, "mode": "batch"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(s, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	if s.Sessions().Len() != 1 {
		t.Fatalf("expected 1 session, got %d", s.Sessions().Len())
	}

	id := s.Sessions().List()[0].ID
	rr = serve(s, httptest.NewRequest("GET", "/api/v1/sessions/"+id, nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"state":"scanning"`) {
		t.Errorf("get status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = serve(s, httptest.NewRequest("DELETE", "/api/v1/sessions/"+id, nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"state":"stopped"`) {
		t.Errorf("stop status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestServer_ShutdownStopsSessions(t *testing.T) {
	s := testServer(t, "")

	req := httptest.NewRequest("POST", "/api/v1/sessions", strings.NewReader(`{"event_id": 3, "attendee_token": "alice-token"}`))
	req.Header.Set("Content-Type", "application/json")
	if rr := serve(s, req); rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	for _, snap := range s.Sessions().List() {
		if snap.State != checkin.StateStopped {
			t.Errorf("session %s state = %s after shutdown, want stopped", snap.ID, snap.State)
		}
	}
}
