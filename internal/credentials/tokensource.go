package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/meetwise/internal/logging"
)

// DefaultExpirySkew is how long before expiry a token is refreshed.
const DefaultExpirySkew = time.Minute

// Refresh outcomes passed to a RefreshRecorder.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
)

// RefreshRecorder receives the outcome of every token refresh attempt.
// *instrumentation.Metrics satisfies it.
type RefreshRecorder interface {
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

// TokenSource is an oauth2.TokenSource over a Store. The file is re-read on
// every call so that a sign-in or clear from another process is picked up
// without a restart.
type TokenSource struct {
	ctx        context.Context
	store      Store
	conf       *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
	skew       time.Duration
	recorder   RefreshRecorder
	logger     *slog.Logger
}

// TokenSourceOption configures a TokenSource.
type TokenSourceOption func(*TokenSource)

// WithHTTPClient sets the client used for refresh requests.
func WithHTTPClient(c *http.Client) TokenSourceOption {
	return func(ts *TokenSource) { ts.httpClient = c }
}

// WithRefreshRecorder reports refresh outcomes to r.
func WithRefreshRecorder(r RefreshRecorder) TokenSourceOption {
	return func(ts *TokenSource) { ts.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TokenSourceOption {
	return func(ts *TokenSource) { ts.logger = l }
}

// WithNow overrides the clock used for expiry checks.
func WithNow(now func() time.Time) TokenSourceOption {
	return func(ts *TokenSource) { ts.now = now }
}

// NewTokenSource returns a TokenSource reading from store. conf may be nil,
// in which case stored tokens are returned as-is and never refreshed.
func NewTokenSource(ctx context.Context, store Store, conf *oauth2.Config, opts ...TokenSourceOption) *TokenSource {
	ts := &TokenSource{
		ctx:    ctx,
		store:  store,
		conf:   conf,
		now:    time.Now,
		skew:   DefaultExpirySkew,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ts)
	}
	ts.logger = logging.WithComponent(ts.logger, "credentials")
	return ts
}

// Token implements oauth2.TokenSource.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	rec, err := ts.store.Read()
	if err != nil {
		return nil, err
	}

	cred, ok := Normalize(rec)
	if !ok {
		return nil, ErrNoAccessToken
	}

	if ts.conf == nil || !cred.HasRefreshToken() || !cred.Expired(ts.now(), ts.skew) {
		return cred.OAuth2Token(), nil
	}
	return ts.refresh(cred)
}

func (ts *TokenSource) refresh(cred Credential) (*oauth2.Token, error) {
	ctx := ts.ctx
	if ts.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, ts.httpClient)
	}

	stale := cred.OAuth2Token()
	// Force the refresh: oauth2 decides expiry with its own clock.
	stale.Expiry = time.Unix(1, 0)

	fresh, err := ts.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		ts.record(RefreshFailure)
		ts.logger.Warn("token refresh failed", logging.Err(err))
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
			// invalid_grant and friends: the refresh token itself is dead.
			return nil, fmt.Errorf("%w: refresh rejected: %v", ErrNoAccessToken, err)
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	ts.record(RefreshSuccess)

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	scope := ScopeFromToken(fresh)
	if scope == "" {
		scope = cred.Scope
	}
	if err := ts.store.Write(NewRecord(fresh, scope)); err != nil {
		// The caller still gets a usable token; the next call refreshes again.
		ts.logger.Warn("failed to persist refreshed token", logging.Err(err))
	} else {
		ts.logger.Debug("token refreshed", logging.Token(fresh.AccessToken))
	}
	return fresh, nil
}

func (ts *TokenSource) record(result string) {
	if ts.recorder != nil {
		ts.recorder.RecordOAuthTokenRefresh(ts.ctx, result)
	}
}

// StaticStore serves a fixed record. It backs one-off calls made with a
// token supplied by the browser session instead of the token file.
type StaticStore struct {
	rec Record
}

// NewStaticStore returns a read-only Store holding an access token.
func NewStaticStore(accessToken string) *StaticStore {
	return &StaticStore{rec: Record{"access_token": accessToken}}
}

func (s *StaticStore) Read() (Record, error) {
	if _, ok := ExtractAccessToken(s.rec); !ok {
		return nil, ErrNotFound
	}
	return s.rec, nil
}

func (s *StaticStore) Write(Record) error {
	return &StorageError{Op: "write", Path: s.Path(), Err: errors.New("read-only store")}
}

func (s *StaticStore) Clear() (ClearResult, error) {
	return ClearResult{AlreadyCleared: true}, nil
}

func (s *StaticStore) Path() string {
	return "<session>"
}

var _ oauth2.TokenSource = (*TokenSource)(nil)
