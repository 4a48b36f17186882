package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/credentials"
	"github.com/teemow/meetwise/internal/logging"
)

const maxRequestBody = 1 << 20

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	NeedsAuth bool   `json:"needsAuth,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to write response", logging.Err(err))
	}
}

// writeError maps err to an HTTP status and a user-facing message.
func writeError(w http.ResponseWriter, err error) {
	status, resp := classifyError(err)
	writeJSON(w, status, resp)
}

func classifyError(err error) (int, errorResponse) {
	resp := errorResponse{Error: calendar.UserMessage(err), NeedsAuth: calendar.NeedsAuth(err)}

	var calErr *calendar.Error
	switch {
	case errors.As(err, &calErr):
		switch calErr.Kind {
		case calendar.KindNotAuthenticated, calendar.KindAuthExpired:
			return http.StatusUnauthorized, resp
		case calendar.KindScopeMissing, calendar.KindAccessDenied:
			return http.StatusForbidden, resp
		case calendar.KindNetwork:
			return http.StatusServiceUnavailable, resp
		default:
			return http.StatusBadGateway, resp
		}
	case credentials.NeedsReauth(err):
		return http.StatusUnauthorized, resp
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, resp
	}
}

var errBadRequest = errors.New("bad request")

type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func (e badRequestError) Is(target error) bool { return target == errBadRequest }

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequestError{msg: "invalid JSON body: " + err.Error()}
	}
	return nil
}
