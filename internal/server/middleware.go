package server

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/teemow/meetwise/internal/instrumentation"
	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/session"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the websocket upgrade needs.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records request metrics and logs every request at debug level.
// pattern is used as the path label to keep cardinality bounded.
func instrument(metrics *instrumentation.Metrics, logger *slog.Logger, pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, rec.status, duration)
		logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", pattern),
			slog.Int("status", rec.status),
			slog.Duration(logging.KeyDuration, duration))
	})
}

// requireSession rejects requests without a valid session cookie. A corrupt
// cookie is cleared.
func requireSession(next func(http.ResponseWriter, *http.Request, session.Record)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := session.Load(r)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				session.Clear(w)
			}
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error:     "Not signed in. Please sign in with Google.",
				NeedsAuth: true,
			})
			return
		}
		next(w, r, rec)
	}
}
