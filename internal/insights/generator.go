package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/instrumentation"
	"github.com/teemow/meetwise/internal/logging"
)

const (
	SourceAI       = "ai"
	SourceFallback = "fallback"

	KindSummary  = "summary"
	KindAnalysis = "analysis"

	// BackendNone is reported when no backend is configured.
	BackendNone = "none"

	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 30
)

var (
	ErrNoBackend   = errors.New("no AI backend configured")
	ErrRateLimited = errors.New("AI rate limit exceeded")
)

// Result is the outcome of one insight request. Text is never empty.
type Result struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Backend string `json:"backend"`
	// Err is the backend failure that caused a fallback, if any.
	Err error `json:"-"`
}

// Fallback reports whether the text came from the deterministic fallback.
func (r Result) Fallback() bool {
	return r.Source == SourceFallback
}

// HTML renders the result text as HTML.
func (r Result) HTML() string {
	return RenderHTML(r.Text)
}

// Generator produces meeting summaries and cross-meeting analyses. It never
// returns an error: any backend failure yields the fallback text.
type Generator struct {
	backend Backend
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Generator.
type Option func(*Generator)

// WithRateLimit caps backend calls per minute. Zero or less disables the limit.
// Fractional rates are allowed; the burst is the rate rounded up.
func WithRateLimit(perMinute float64) Option {
	return func(g *Generator) {
		if perMinute <= 0 {
			g.limiter = nil
			return
		}
		burst := int(math.Ceil(perMinute))
		g.limiter = rate.NewLimiter(rate.Limit(perMinute/60), burst)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// NewGenerator creates a Generator. A nil backend is allowed and always
// produces fallback results.
func NewGenerator(backend Backend, opts ...Option) *Generator {
	g := &Generator{
		backend: backend,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	WithRateLimit(DefaultRateLimit)(g)
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.WithComponent(g.logger, "insights")
	return g
}

// BackendName returns the configured backend name or BackendNone.
func (g *Generator) BackendName() string {
	if g.backend == nil {
		return BackendNone
	}
	return g.backend.Name()
}

// Summarize returns a short summary of one meeting.
func (g *Generator) Summarize(ctx context.Context, event calendar.Event) Result {
	if event.Title == "" {
		event.Title = calendar.UntitledMeeting
	}
	return g.generate(ctx, KindSummary, Request{
		Prompt:      summaryPrompt(event),
		MaxTokens:   summaryMaxTokens,
		Temperature: defaultTemp,
	}, func() string { return FallbackSummary(event) })
}

// Analyze returns patterns and recommendations across several meetings.
func (g *Generator) Analyze(ctx context.Context, events []calendar.Event) Result {
	if len(events) == 0 {
		return g.finish(ctx, KindAnalysis, time.Now(), FallbackAnalysis(events), SourceFallback, nil)
	}
	return g.generate(ctx, KindAnalysis, Request{
		Prompt:      analysisPrompt(events),
		MaxTokens:   analysisMaxTokens,
		Temperature: defaultTemp,
	}, func() string { return FallbackAnalysis(events) })
}

func (g *Generator) generate(ctx context.Context, kind string, req Request, fallback func() string) Result {
	start := time.Now()
	ctx, span := instrumentation.StartInsightSpan(ctx, kind)
	defer span.End()

	text, err := g.call(ctx, req)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return g.finish(ctx, kind, start, fallback(), SourceFallback, err)
	}
	instrumentation.SetSpanSuccess(span)
	return g.finish(ctx, kind, start, text, SourceAI, nil)
}

func (g *Generator) call(ctx context.Context, req Request) (string, error) {
	if g.backend == nil {
		return "", ErrNoBackend
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return "", ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.backend.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.backend.Name(), err)
	}
	if text == "" {
		return "", fmt.Errorf("%s: %w", g.backend.Name(), ErrEmptyResponse)
	}
	return text, nil
}

func (g *Generator) finish(ctx context.Context, kind string, start time.Time, text, source string, err error) Result {
	backend := g.BackendName()
	duration := time.Since(start)
	g.metrics.RecordInsight(ctx, kind, source, backend, duration)

	attrs := []any{
		logging.Operation(kind),
		logging.Source(source),
		logging.Backend(backend),
		slog.Duration(logging.KeyDuration, duration),
	}
	if err != nil && !errors.Is(err, ErrNoBackend) {
		g.logger.WarnContext(ctx, "insight generation failed, using fallback", append(attrs, logging.Err(err))...)
	} else {
		g.logger.InfoContext(ctx, "insight generated", attrs...)
	}

	return Result{Text: text, Source: source, Backend: backend, Err: err}
}
