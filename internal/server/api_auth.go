package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/teemow/meetwise/internal/credentials"
	"github.com/teemow/meetwise/internal/google"
	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/session"
)

// CredentialStatus describes the credential file without exposing tokens.
type CredentialStatus struct {
	Path            string     `json:"path"`
	Present         bool       `json:"present"`
	Shape           string     `json:"shape,omitempty"`
	HasRefreshToken bool       `json:"hasRefreshToken"`
	Expiry          *time.Time `json:"expiry,omitempty"`
	Expired         bool       `json:"expired"`
	Error           string     `json:"error,omitempty"`
}

// InspectCredentials reports the state of the credential file.
func InspectCredentials(store credentials.Store, now time.Time) CredentialStatus {
	status := CredentialStatus{Path: store.Path()}
	rec, err := store.Read()
	if err != nil {
		if !errors.Is(err, credentials.ErrNotFound) {
			status.Error = err.Error()
		}
		return status
	}
	status.Present = true

	cred, ok := credentials.Normalize(rec)
	if !ok {
		status.Error = credentials.ErrNoAccessToken.Error()
		return status
	}
	status.Shape = string(cred.Shape)
	status.HasRefreshToken = cred.HasRefreshToken()
	if !cred.Expiry.IsZero() {
		expiry := cred.Expiry
		status.Expiry = &expiry
		status.Expired = cred.Expired(now, 0)
	}
	return status
}

type statusResponse struct {
	Success         bool             `json:"success"`
	SignedIn        bool             `json:"signedIn"`
	User            *session.Record  `json:"user,omitempty"`
	Credentials     CredentialStatus `json:"credentials"`
	OAuthConfigured bool             `json:"oauthConfigured"`
	AIBackend       string           `json:"aiBackend"`
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Success:         true,
		Credentials:     InspectCredentials(s.sc.Store(), time.Now()),
		OAuthConfigured: s.sc.OAuthConfig() != nil,
		AIBackend:       s.sc.Insights().BackendName(),
	}
	if rec, err := session.Load(r); err == nil {
		rec.AccessToken = ""
		resp.SignedIn = true
		resp.User = &rec
	}
	writeJSON(w, http.StatusOK, resp)
}

type accountResponse struct {
	Success         bool      `json:"success"`
	AccountInfo     *Account  `json:"accountInfo"`
	HasAccount      bool      `json:"hasAccount"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
}

func (s *HTTPServer) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.sc.Account(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Success:         true,
		AccountInfo:     account,
		HasAccount:      true,
		AuthenticatedAt: time.Now().UTC(),
	})
}

type clearResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	BackupPath     string `json:"backupPath,omitempty"`
	AlreadyCleared bool   `json:"alreadyCleared,omitempty"`
}

// handleClear removes the credential file for an account switch. The
// scheduler is stopped because its token is gone.
func (s *HTTPServer) handleClear(w http.ResponseWriter, r *http.Request) {
	res, err := s.sc.Store().Clear()
	if err != nil {
		s.logger.Error("failed to clear credentials", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to clear tokens"})
		return
	}
	s.sc.Scheduler().Stop()

	if res.AlreadyCleared {
		writeJSON(w, http.StatusOK, clearResponse{
			Success:        true,
			Message:        "No existing tokens found. Ready for new authentication.",
			AlreadyCleared: true,
		})
		return
	}
	s.logger.Info("credentials cleared", logging.Operation("clear"))
	writeJSON(w, http.StatusOK, clearResponse{
		Success:    true,
		Message:    "Tokens cleared successfully. Please re-authenticate with desired Google account.",
		BackupPath: res.BackupPath,
	})
}

type idTokenRequest struct {
	Credential string `json:"credential"`
}

type sessionResponse struct {
	Success bool           `json:"success"`
	User    session.Record `json:"user"`
}

// handleIDTokenSession creates a session from a Google ID token posted by the
// browser's sign-in button.
func (s *HTTPServer) handleIDTokenSession(w http.ResponseWriter, r *http.Request) {
	var req idTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Credential == "" {
		writeError(w, badRequestError{msg: "credential is required"})
		return
	}

	profile, err := google.ProfileFromIDToken(req.Credential)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid Google credential", NeedsAuth: true})
		return
	}

	rec := session.Record{
		Email:      profile.Email,
		Name:       profile.Name,
		Picture:    profile.Picture,
		AuthMethod: session.AuthMethodIDToken,
	}
	if err := session.Save(w, rec, s.secureCookies); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("session created from ID token", logging.UserHash(profile.Email))
	s.ensureSync(r, rec)
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, User: rec})
}
