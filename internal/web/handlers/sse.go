package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// setupSSEConnection finds the session named by the "id" URL parameter and
// sets up SSE headers. On failure it writes an error response and returns
// false.
func setupSSEConnection(w http.ResponseWriter, r *http.Request, lookup func(string) *kioskSession) (*kioskSession, http.Flusher, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, errMissingSessionID)
		return nil, nil, false
	}

	sess := lookup(id)
	if sess == nil {
		respondError(w, http.StatusNotFound, errSessionNotFound)
		return nil, nil, false
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return sess, flusher, true
}

// sendSSEEvent writes one event frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// streamSessionEvents sends the current snapshot, then every session event
// until the session closes or the client disconnects.
func streamSessionEvents(w http.ResponseWriter, r *http.Request, lookup func(string) *kioskSession) {
	sess, flusher, ok := setupSSEConnection(w, r, lookup)
	if !ok {
		return
	}

	ch := sess.ctrl.Subscribe()
	defer sess.ctrl.Unsubscribe(ch)

	sendSSEEvent(w, flusher, "snapshot", sess.ctrl.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				sendSSEEvent(w, flusher, "closed", sess.ctrl.Snapshot())
				return
			}
			sendSSEEvent(w, flusher, string(event.Type), event)
		}
	}
}
