package server

import (
	"net/http"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/insights"
)

type summaryRequest struct {
	Meeting *calendar.Event `json:"meeting"`
}

type insightsRequest struct {
	Meetings []calendar.Event `json:"meetings"`
}

// insightResponse carries the text under Summary or Insights. Success is
// false when the fallback was used; the text is still present.
type insightResponse struct {
	Success  bool   `json:"success"`
	Summary  string `json:"summary,omitempty"`
	Insights string `json:"insights,omitempty"`
	Source   string `json:"source"`
	Backend  string `json:"backend"`
	HTML     string `json:"html"`
	Error    string `json:"error,omitempty"`
}

func newInsightResponse(res insights.Result) insightResponse {
	resp := insightResponse{
		Success: !res.Fallback(),
		Source:  res.Source,
		Backend: res.Backend,
		HTML:    res.HTML(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Meeting == nil {
		writeError(w, badRequestError{msg: "meeting is required"})
		return
	}

	res := s.sc.Insights().Summarize(r.Context(), *req.Meeting)
	resp := newInsightResponse(res)
	resp.Summary = res.Text
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Meetings) == 0 {
		writeError(w, badRequestError{msg: "meetings must not be empty"})
		return
	}

	res := s.sc.Insights().Analyze(r.Context(), req.Meetings)
	resp := newInsightResponse(res)
	resp.Insights = res.Text
	writeJSON(w, http.StatusOK, resp)
}
