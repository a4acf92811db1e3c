package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/database"
	"github.com/kozaktomas/face-checkin/internal/frame"
	"github.com/kozaktomas/face-checkin/internal/log"
)

const (
	errMissingSessionID = "missing session ID"
	errSessionNotFound  = "session not found"
	errSessionClosed    = "session closed"

	errAttendeeTokenRequired = "attendee_token is required for self check-in"

	// maxFrameUpload bounds one uploaded still before decoding.
	maxFrameUpload = 8 << 20
)

// AttendeeFunc builds the self check-in verifier and event pre-check acting
// as the attendee who owns token. A nil checker falls back to Backend.Checker.
type AttendeeFunc func(token string) (checkin.Verifier, checkin.ContextChecker)

// Backend is what kiosk sessions are built from. Batch sessions use the
// server's own credentials; self check-in sessions use the attendee's.
type Backend struct {
	Attendee      AttendeeFunc
	BatchVerifier checkin.Verifier
	Checker       checkin.ContextChecker
	Ender         checkin.SessionEnder
	Store         database.ConfirmationStore
	Classifier    *checkin.Classifier
	Interval      time.Duration
	CallTimeout   time.Duration
	MaxFrameSize  int
	Ticker        checkin.TickerFunc
	Logger        *zerolog.Logger
}

// SessionsHandler handles kiosk session endpoints.
type SessionsHandler struct {
	backend Backend
	manager *SessionManager
	logger  zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(backend Backend, manager *SessionManager) *SessionsHandler {
	logger := log.WithComponent("web")
	if backend.Logger != nil {
		logger = *backend.Logger
	}
	return &SessionsHandler{backend: backend, manager: manager, logger: logger}
}

// eventID accepts the event id as a JSON number or string.
type eventID string

func (e *eventID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*e = eventID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("event_id must be a number or string")
	}
	*e = eventID(strings.TrimSpace(s))
	return nil
}

// CreateSessionRequest starts a kiosk session.
type CreateSessionRequest struct {
	EventID eventID `json:"event_id"`
	Mode    string  `json:"mode"`
	// AttendeeToken is the attendee's API token. Required for self check-in,
	// which marks whoever the token belongs to.
	AttendeeToken string `json:"attendee_token"`
}

// startFailure is the body returned when a session could not start.
type startFailure struct {
	Error    string           `json:"error"`
	Category checkin.Category `json:"category,omitempty"`
	Session  checkin.Snapshot `json:"session"`
}

// Create starts a new session and returns its snapshot.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	mode := checkin.ModeSingle
	if req.Mode != "" {
		parsed, err := checkin.ParseMode(req.Mode)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = parsed
	}

	verifier, checker, status, msg := h.sessionVerifier(mode, strings.TrimSpace(req.AttendeeToken))
	if status != 0 {
		respondError(w, status, msg)
		return
	}

	mailbox := frame.NewMailbox()
	opts := checkin.Options{
		Mode:        mode,
		Source:      mailbox,
		Verifier:    verifier,
		Checker:     checker,
		Classifier:  h.backend.Classifier,
		Interval:    h.backend.Interval,
		CallTimeout: h.backend.CallTimeout,
		Ticker:      h.backend.Ticker,
		Logger:      h.backend.Logger,
	}
	if mode == checkin.ModeBatch {
		opts.Ender = h.backend.Ender
	}
	if h.backend.Store != nil {
		opts.Journal = h.backend.Store
	}

	ctrl, err := checkin.New(opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess := &kioskSession{ctrl: ctrl, mailbox: mailbox}
	h.manager.Add(sess)

	if err := ctrl.Start(h.manager.Context(), string(req.EventID)); err != nil {
		h.logger.Warn().Err(err).
			Str("session", ctrl.ID()).
			Str("event", sanitizeForLog(string(req.EventID))).
			Msg("kiosk session failed to start")

		body := startFailure{Error: err.Error(), Session: ctrl.Snapshot()}
		var cerr *checkin.Error
		if errors.As(err, &cerr) {
			body.Category = cerr.Category
		}
		respondJSON(w, startFailureStatus(err), body)
		return
	}

	respondJSON(w, http.StatusCreated, ctrl.Snapshot())
}

// sessionVerifier picks the verifier and pre-check for mode. A non-zero
// status means the session cannot be created.
func (h *SessionsHandler) sessionVerifier(mode checkin.Mode, token string) (checkin.Verifier, checkin.ContextChecker, int, string) {
	unavailable := fmt.Sprintf("%s sessions are not available", mode)

	if mode == checkin.ModeBatch {
		if h.backend.BatchVerifier == nil {
			return nil, nil, http.StatusNotImplemented, unavailable
		}
		return h.backend.BatchVerifier, h.backend.Checker, 0, ""
	}

	if h.backend.Attendee == nil {
		return nil, nil, http.StatusNotImplemented, unavailable
	}
	if token == "" {
		return nil, nil, http.StatusUnauthorized, errAttendeeTokenRequired
	}
	verifier, checker := h.backend.Attendee(token)
	if verifier == nil {
		return nil, nil, http.StatusNotImplemented, unavailable
	}
	if checker == nil {
		checker = h.backend.Checker
	}
	return verifier, checker, 0, ""
}

// startFailureStatus maps a start error to an HTTP status.
func startFailureStatus(err error) int {
	switch {
	case errors.Is(err, checkin.ErrInvalidContext):
		return http.StatusBadRequest
	case errors.Is(err, checkin.ErrNotEnrolled):
		return http.StatusForbidden
	case errors.Is(err, checkin.ErrNotOpen):
		return http.StatusConflict
	case errors.Is(err, checkin.ErrCameraUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// lookup resolves the "id" URL parameter, writing an error response when the
// session is missing.
func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) *kioskSession {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, errMissingSessionID)
		return nil
	}
	sess := h.manager.Get(id)
	if sess == nil {
		respondError(w, http.StatusNotFound, errSessionNotFound)
		return nil
	}
	return sess
}

// List returns all known sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.manager.Prune()
	respondJSON(w, http.StatusOK, h.manager.List())
}

// Get returns a session snapshot.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := h.lookup(w, r)
	if sess == nil {
		return
	}
	respondJSON(w, http.StatusOK, sess.ctrl.Snapshot())
}

// Events streams session events via SSE.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSessionEvents(w, r, h.manager.Get)
}

// PushFrame accepts the latest camera still for a session. The body is
// either a raw image or JSON {"image": "<data URL or base64>"}.
func (h *SessionsHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	sess := h.lookup(w, r)
	if sess == nil {
		return
	}
	if sess.closed() {
		respondError(w, http.StatusGone, errSessionClosed)
		return
	}

	data, err := readFrameUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	normalized, err := frame.Normalize(data, h.backend.MaxFrameSize)
	if errors.Is(err, frame.ErrFrameTooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "image dimensions too large")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image")
		return
	}

	if err := sess.mailbox.Publish(normalized, "image/jpeg"); err != nil {
		if errors.Is(err, frame.ErrClosed) {
			respondError(w, http.StatusGone, errSessionClosed)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"state":    sess.ctrl.State(),
	})
}

// frameUpload is the JSON form of a frame upload.
type frameUpload struct {
	Image string `json:"image"`
}

// readFrameUpload extracts image bytes from a raw or JSON body.
func readFrameUpload(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameUpload+1))
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	if len(body) > maxFrameUpload {
		return nil, errors.New("frame too large")
	}
	if len(body) == 0 {
		return nil, errors.New("empty frame")
	}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return body, nil
	}

	var upload frameUpload
	if err := json.Unmarshal(body, &upload); err != nil {
		return nil, errors.New(errInvalidRequestBody)
	}
	return decodeDataURL(upload.Image)
}

// decodeDataURL accepts "data:<type>;base64,<payload>" or bare base64.
func decodeDataURL(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("image is required")
	}
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.Contains(s[:len(s)-len(payload)], ";base64") {
			return nil, errors.New("image must be a base64 data URL")
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	return data, nil
}

// Stop ends a session from any state.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	sess := h.lookup(w, r)
	if sess == nil {
		return
	}
	sess.ctrl.Stop()
	respondJSON(w, http.StatusOK, sess.ctrl.Snapshot())
}

// End stops a batch session and closes it on the attendance server.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	sess := h.lookup(w, r)
	if sess == nil {
		return
	}

	if err := sess.ctrl.EndSession(r.Context()); err != nil {
		switch {
		case errors.Is(err, checkin.ErrWrongMode):
			respondError(w, http.StatusConflict, "only batch sessions can be ended")
		case errors.Is(err, checkin.ErrInvalidContext):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Str("session", sess.ctrl.ID()).Msg("failed to end session on server")
			respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, sess.ctrl.Snapshot())
}

// Confirmations lists the journaled confirmations of a session. It reads
// from the store, so records remain available after the session is pruned.
func (h *SessionsHandler) Confirmations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, errMissingSessionID)
		return
	}
	if h.backend.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "confirmation journal not configured")
		return
	}

	records, err := h.backend.Store.ListBySession(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("session", sanitizeForLog(id)).Msg("failed to list confirmations")
		respondError(w, http.StatusInternalServerError, "failed to list confirmations")
		return
	}
	if records == nil {
		records = []database.StoredConfirmation{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":    id,
		"count":         len(records),
		"confirmations": records,
	})
}

// EventConfirmations lists every confirmation journaled for an event.
func (h *SessionsHandler) EventConfirmations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventId")
	if _, err := strconv.Atoi(id); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event ID")
		return
	}
	if h.backend.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "confirmation journal not configured")
		return
	}

	records, err := h.backend.Store.ListByContext(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("event", id).Msg("failed to list confirmations")
		respondError(w, http.StatusInternalServerError, "failed to list confirmations")
		return
	}
	if records == nil {
		records = []database.StoredConfirmation{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"event_id":      id,
		"count":         len(records),
		"confirmations": records,
	})
}
