package server

import (
	"net/http"
	"time"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/session"
	calsync "github.com/teemow/meetwise/internal/sync"
)

type listEventsRequest struct {
	MaxResults int `json:"maxResults"`
}

type listEventsResponse struct {
	Success bool             `json:"success"`
	Events  []calendar.Event `json:"events"`
	Total   int              `json:"total"`
	Window  string           `json:"window"`
}

// handleListEvents serves one of the two event windows.
func (s *HTTPServer) handleListEvents(window string) func(http.ResponseWriter, *http.Request, session.Record) {
	return func(w http.ResponseWriter, r *http.Request, _ session.Record) {
		var req listEventsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		cfg := s.sc.Config()
		upcoming, past := calsync.Windows(time.Now(), cfg.UpcomingWindow, cfg.PastWindow)
		win := upcoming
		if window == calsync.WindowPast {
			win = past
		}

		events, err := s.sc.Calendar().ListEvents(r.Context(), win.From, win.To, req.MaxResults)
		if err != nil {
			s.logger.Warn("list events failed", logging.Window(window), logging.Err(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listEventsResponse{
			Success: true,
			Events:  events,
			Total:   len(events),
			Window:  window,
		})
	}
}

type validateResponse struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Calendar *calendar.CalendarInfo `json:"calendar"`
}

func (s *HTTPServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	info, err := s.sc.Calendar().CheckConnection(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Success:  true,
		Message:  "Google Calendar is available",
		Calendar: info,
	})
}
