package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// FrameRateLimit limits frame uploads per session and client. The capture
// loop only ever consumes the latest frame, so anything faster than a few
// frames a second is wasted work.
func FrameRateLimit(perSecond int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		perSecond = 5
	}
	return httprate.Limit(
		perSecond,
		time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP, keyBySession),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", 1))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many frames"}`))
		}),
	)
}

func keyBySession(r *http.Request) (string, error) {
	return chi.URLParam(r, "id"), nil
}
