package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/session"
	calsync "github.com/teemow/meetwise/internal/sync"
)

type syncResponse struct {
	Success  bool             `json:"success"`
	Snapshot calsync.Snapshot `json:"snapshot"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

// ensureSync starts the scheduler for rec when it has no session, e.g.
// after a restart with a surviving cookie.
func (s *HTTPServer) ensureSync(r *http.Request, rec session.Record) {
	s.ensureSyncContext(r.Context(), rec)
}

func (s *HTTPServer) ensureSyncContext(ctx context.Context, rec session.Record) {
	if _, err := s.sc.Scheduler().StartIfIdle(ctx, calsync.Session{Email: rec.Email}); err != nil {
		s.logger.Warn("failed to start sync", logging.Err(err))
	}
}

func (s *HTTPServer) handleSyncState(w http.ResponseWriter, r *http.Request, rec session.Record) {
	s.ensureSync(r, rec)
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Snapshot: s.sc.Scheduler().Snapshot()})
}

func (s *HTTPServer) handleSyncRefresh(w http.ResponseWriter, r *http.Request, rec session.Record) {
	sched := s.sc.Scheduler()
	err := sched.Refresh(r.Context())
	if errors.Is(err, calsync.ErrNoSession) {
		s.ensureSync(r, rec)
		err = nil
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Snapshot: sched.Snapshot()})
}

func (s *HTTPServer) handleSyncVisibility(w http.ResponseWriter, r *http.Request, _ session.Record) {
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Visible == nil {
		writeError(w, badRequestError{msg: "visible is required"})
		return
	}

	sched := s.sc.Scheduler()
	if err := sched.SetVisible(r.Context(), *req.Visible); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Snapshot: sched.Snapshot()})
}

func (s *HTTPServer) handleSyncWS(w http.ResponseWriter, r *http.Request, rec session.Record) {
	go s.ensureSyncContext(context.WithoutCancel(r.Context()), rec)
	s.hub.ServeWS(w, r, rec)
}
