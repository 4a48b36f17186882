package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/config"
	"github.com/teemow/meetwise/internal/credentials"
	"github.com/teemow/meetwise/internal/google"
	"github.com/teemow/meetwise/internal/insights"
	"github.com/teemow/meetwise/internal/instrumentation"
	"github.com/teemow/meetwise/internal/logging"
	calsync "github.com/teemow/meetwise/internal/sync"
)

// ErrScopeMissing is returned by the sync pre-flight when the stored token
// cannot read the calendar.
var ErrScopeMissing = errors.New("stored token lacks calendar access")

// ServerContext wires the credential file, the Google clients, the insight
// generator and the sync scheduler for one installation.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	config      config.Config
	store       credentials.Store
	oauthConfig *oauth2.Config
	tokenSource oauth2.TokenSource
	calendar    *calendar.Client
	validator   *google.Validator
	generator   *insights.Generator
	scheduler   *calsync.Scheduler
	metrics     *instrumentation.Metrics
	logger      *slog.Logger

	// userinfoEndpoint overrides the Google userinfo base URL in tests.
	userinfoEndpoint string

	mu       sync.RWMutex
	shutdown bool
}

// ContextOption customises a ServerContext. Anything not set is built from
// the configuration.
type ContextOption func(*ServerContext)

func WithStore(s credentials.Store) ContextOption {
	return func(sc *ServerContext) { sc.store = s }
}

// WithOAuthConfig replaces the OAuth client built from the configuration.
func WithOAuthConfig(c *oauth2.Config) ContextOption {
	return func(sc *ServerContext) { sc.oauthConfig = c }
}

// WithCalendarClient replaces the Calendar client built from the
// configuration. The client is rebound to the context's token source so
// calendar calls and account lookups read the same credential.
func WithCalendarClient(c *calendar.Client) ContextOption {
	return func(sc *ServerContext) { sc.calendar = c }
}

func WithValidator(v *google.Validator) ContextOption {
	return func(sc *ServerContext) { sc.validator = v }
}

func WithGenerator(g *insights.Generator) ContextOption {
	return func(sc *ServerContext) { sc.generator = g }
}

func WithScheduler(s *calsync.Scheduler) ContextOption {
	return func(sc *ServerContext) { sc.scheduler = s }
}

func WithMetrics(m *instrumentation.Metrics) ContextOption {
	return func(sc *ServerContext) { sc.metrics = m }
}

func WithLogger(l *slog.Logger) ContextOption {
	return func(sc *ServerContext) {
		if l != nil {
			sc.logger = l
		}
	}
}

func WithUserinfoEndpoint(endpoint string) ContextOption {
	return func(sc *ServerContext) { sc.userinfoEndpoint = endpoint }
}

// NewServerContext creates the shared dependencies. The OAuth client is
// optional; without it tokens are never refreshed and sign-in is disabled.
func NewServerContext(ctx context.Context, cfg config.Config, opts ...ContextOption) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}

	if sc.store == nil {
		path := cfg.TokenPath
		if path == "" {
			path = config.DefaultTokenPath()
		}
		sc.store = credentials.NewFileStore(path)
	}
	if sc.oauthConfig == nil && cfg.GoogleClientID != "" {
		sc.oauthConfig = google.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURL(), nil)
	}
	sc.tokenSource = credentials.NewTokenSource(shutdownCtx, sc.store, sc.oauthConfig,
		credentials.WithRefreshRecorder(sc.metrics),
		credentials.WithLogger(sc.logger),
	)

	if sc.calendar != nil {
		sc.calendar = sc.calendar.WithTokenSource(sc.tokenSource)
	} else {
		sc.calendar = calendar.NewClient(sc.tokenSource,
			calendar.WithMaxResults(cfg.MaxResults),
			calendar.WithCheckTimeout(cfg.ValidationTimeout),
			calendar.WithMetrics(sc.metrics),
			calendar.WithLogger(sc.logger),
		)
	}
	if sc.validator == nil {
		sc.validator = google.NewValidator(
			google.WithValidatorTimeout(cfg.ValidationTimeout),
			google.WithValidatorLogger(sc.logger),
		)
	}
	if sc.generator == nil {
		gen, err := insights.NewFromConfig(shutdownCtx, cfg.AI,
			insights.WithLogger(sc.logger),
			insights.WithMetrics(sc.metrics),
		)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create insight generator: %w", err)
		}
		sc.generator = gen
	}
	if sc.scheduler == nil {
		schedOpts := []calsync.Option{
			calsync.WithInterval(cfg.PollInterval),
			calsync.WithWindows(cfg.UpcomingWindow, cfg.PastWindow),
			calsync.WithMaxResults(cfg.MaxResults),
			calsync.WithLogger(sc.logger),
			calsync.WithMetrics(sc.metrics),
		}
		if cfg.ValidateBeforeSync {
			schedOpts = append(schedOpts, calsync.WithValidator(sc.Preflight))
		}
		sc.scheduler = calsync.NewScheduler(sc.calendar, schedOpts...)
	}

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

func (sc *ServerContext) Config() config.Config { return sc.config }

func (sc *ServerContext) Store() credentials.Store { return sc.store }

// OAuthConfig returns nil when no OAuth client is configured.
func (sc *ServerContext) OAuthConfig() *oauth2.Config { return sc.oauthConfig }

func (sc *ServerContext) Calendar() *calendar.Client { return sc.calendar }

func (sc *ServerContext) Validator() *google.Validator { return sc.validator }

func (sc *ServerContext) Insights() *insights.Generator { return sc.generator }

func (sc *ServerContext) Scheduler() *calsync.Scheduler { return sc.scheduler }

func (sc *ServerContext) Metrics() *instrumentation.Metrics { return sc.metrics }

func (sc *ServerContext) Logger() *slog.Logger { return sc.logger }

// Preflight checks the stored token against tokeninfo before a sync cycle.
func (sc *ServerContext) Preflight(ctx context.Context) error {
	tok, err := sc.tokenSource.Token()
	if err != nil {
		return err
	}
	if !sc.validator.ValidateToken(ctx, tok.AccessToken) {
		return ErrScopeMissing
	}
	return nil
}

// Account is the signed-in Google identity plus its primary calendar.
type Account struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Picture      string `json:"picture,omitempty"`
	CalendarName string `json:"calendarName,omitempty"`
	CalendarID   string `json:"calendarId,omitempty"`
	TimeZone     string `json:"timeZone,omitempty"`
}

// Account reads the userinfo endpoint and the primary calendar with the
// stored credential.
func (sc *ServerContext) Account(ctx context.Context) (*Account, error) {
	if _, err := sc.tokenSource.Token(); err != nil {
		return nil, &calendar.Error{Kind: calendar.KindNotAuthenticated, Op: "account", Err: err}
	}

	start := time.Now()
	profile, err := google.FetchProfile(ctx, google.NewHTTPClient(ctx, sc.tokenSource), sc.userinfoEndpoint)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	sc.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth2, instrumentation.OperationGet, status, time.Since(start))
	if err != nil {
		return nil, err
	}

	info, err := sc.calendar.PrimaryCalendar(ctx)
	if err != nil {
		return nil, err
	}
	return &Account{
		Email:        profile.Email,
		Name:         profile.Name,
		Picture:      profile.Picture,
		CalendarName: info.Summary,
		CalendarID:   info.ID,
		TimeZone:     info.TimeZone,
	}, nil
}

// CompleteLogin exchanges an authorization code, writes the credential file
// in the normal shape and returns the user's profile.
func (sc *ServerContext) CompleteLogin(ctx context.Context, code string) (*google.Profile, error) {
	if sc.oauthConfig == nil {
		return nil, fmt.Errorf("OAuth client is not configured")
	}
	tok, err := google.Exchange(ctx, sc.oauthConfig, code)
	if err != nil {
		sc.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}
	if err := sc.store.Write(credentials.NewRecord(tok, credentials.ScopeFromToken(tok))); err != nil {
		sc.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}
	sc.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)

	client := sc.oauthConfig.Client(ctx, tok)
	profile, err := google.FetchProfile(ctx, client, sc.userinfoEndpoint)
	if err != nil {
		return nil, err
	}
	sc.logger.Info("signed in", logging.UserHash(profile.Email), logging.Domain(profile.Email))
	return profile, nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops the scheduler and cancels the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.scheduler.Close()
	sc.cancel()
	return nil
}
