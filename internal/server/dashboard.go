package server

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/session"
	calsync "github.com/teemow/meetwise/internal/sync"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"duration": func(e calendar.Event) string {
		return calendar.FormatDuration(e.DurationMinutes())
	},
	"day": func(e calendar.Event) string {
		t, ok := e.StartTime()
		if !ok {
			return ""
		}
		return calendar.RelativeDay(t, time.Now())
	},
	"clock": func(e calendar.Event) string {
		if e.AllDay() {
			return "All day"
		}
		t, ok := e.StartTime()
		if !ok {
			return ""
		}
		return t.Local().Format("15:04")
	},
}).ParseFS(templateFS, "templates/dashboard.html"))

type dashboardData struct {
	SignedIn        bool
	User            session.Record
	OAuthConfigured bool
	Error           string
	Snapshot        calsync.Snapshot
	PollSeconds     int
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	data := dashboardData{
		OAuthConfigured: s.sc.OAuthConfig() != nil,
		Error:           r.URL.Query().Get("error"),
		PollSeconds:     int(s.sc.Scheduler().Interval().Seconds()),
	}
	rec, err := session.Load(r)
	switch {
	case err == nil:
		data.SignedIn = true
		data.User = rec
		s.ensureSync(r, rec)
		data.Snapshot = s.sc.Scheduler().Snapshot()
	case !errors.Is(err, session.ErrNoSession):
		session.Clear(w)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render dashboard", logging.Err(err))
	}
}
