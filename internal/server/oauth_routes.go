package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/teemow/meetwise/internal/google"
	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/session"
)

const (
	stateCookieName = "meetwise_oauth_state"
	stateMaxAge     = 10 * time.Minute
)

type authURLResponse struct {
	Success bool   `json:"success"`
	AuthURL string `json:"authUrl"`
}

// handleLogin redirects to Google's consent screen. With ?format=json the
// URL is returned instead.
func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	conf := s.sc.OAuthConfig()
	if conf == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Google sign-in is not configured"})
		return
	}

	state := google.NewState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	authURL := google.AuthURL(conf, state)
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, authURLResponse{Success: true, AuthURL: authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes the authorization code flow, writes the
// credential file and signs the browser in.
func (s *HTTPServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if oauthErr := q.Get("error"); oauthErr != "" {
		s.logger.Warn("oauth callback returned an error", logging.Operation("callback"), logging.Status(oauthErr))
		s.redirectWithError(w, r, oauthErr)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid OAuth state"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/auth/google", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		s.redirectWithError(w, r, "no_code")
		return
	}

	profile, err := s.sc.CompleteLogin(r.Context(), code)
	if err != nil {
		s.logger.Error("oauth callback failed", logging.Operation("callback"), logging.Err(err))
		s.redirectWithError(w, r, "callback_failed")
		return
	}

	rec := session.Record{
		Email:      profile.Email,
		Name:       profile.Name,
		Picture:    profile.Picture,
		AuthMethod: session.AuthMethodOAuth,
	}
	if err := session.Save(w, rec, s.secureCookies); err != nil {
		writeError(w, err)
		return
	}

	sched := s.sc.Scheduler()
	sched.Stop()
	s.ensureSync(r, rec)

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *HTTPServer) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(code), http.StatusFound)
}

// handleLogout ends the browser session and stops background sync. The
// credential file is kept.
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	session.Clear(w)
	s.sc.Scheduler().Stop()
	if r.URL.Query().Get("format") == "json" || r.Header.Get("Accept") == "application/json" {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
