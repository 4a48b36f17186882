package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/meetwise/internal/google"
	"github.com/teemow/meetwise/internal/instrumentation"
	"github.com/teemow/meetwise/internal/logging"
)

const (
	// PrimaryCalendarID is the only calendar meetwise reads.
	PrimaryCalendarID = "primary"

	// DefaultMaxResults is used when a caller passes maxResults <= 0.
	DefaultMaxResults = 10

	// DefaultCheckTimeout bounds CheckConnection.
	DefaultCheckTimeout = 10 * time.Second
)

// Client reads the user's primary Google Calendar. Each call obtains a
// token from the token source first, so a missing or unusable credential
// surfaces as KindNotAuthenticated before any network traffic.
type Client struct {
	ts           oauth2.TokenSource
	endpoint     string
	maxResults   int
	checkTimeout time.Duration
	transport    http.RoundTripper
	metrics      *instrumentation.Metrics
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the Calendar API base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithMaxResults sets the default page size.
func WithMaxResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithCheckTimeout sets the CheckConnection timeout.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.checkTimeout = d
		}
	}
}

// WithTransport replaces the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithMetrics records every API call.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a Client reading tokens from ts.
func NewClient(ts oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		ts:           ts,
		maxResults:   DefaultMaxResults,
		checkTimeout: DefaultCheckTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = google.NewBaseTransport()
	}
	c.logger = logging.WithComponent(c.logger, "calendar")
	return c
}

// WithTokenSource returns a copy of c that authenticates with ts instead.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	clone := *c
	clone.ts = ts
	return &clone
}

// service builds a Calendar service bound to the current token.
func (c *Client) service(ctx context.Context) (*calendar.Service, error) {
	tok, err := c.ts.Token()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   c.transport,
		},
	}
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

// ListEvents lists primary-calendar events in [timeMin, timeMax], expanded
// into single instances and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]Event, error) {
	const op = "list_events"
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList)
	defer span.End()
	start := time.Now()

	events, err := c.listEvents(ctx, timeMin, timeMax, maxResults)
	c.record(ctx, instrumentation.OperationList, start, err)
	if err != nil {
		err = classify(op, err)
		instrumentation.SetSpanError(span, err)
		c.logger.Warn("listing events failed", logging.Operation(op), logging.Err(err))
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)

	c.logger.Debug("listed events", logging.Operation(op), slog.Int("count", len(events)))
	return events, nil
}

func (c *Client) listEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]Event, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Events.List(PrimaryCalendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(int64(maxResults)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, ToEvent(item))
	}
	return events, nil
}

// PrimaryCalendar returns metadata of the user's primary calendar.
func (c *Client) PrimaryCalendar(ctx context.Context) (*CalendarInfo, error) {
	const op = "get_primary_calendar"

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationGet)
	defer span.End()
	start := time.Now()

	info, err := c.primaryCalendar(ctx)
	c.record(ctx, instrumentation.OperationGet, start, err)
	if err != nil {
		err = classify(op, err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return info, nil
}

func (c *Client) primaryCalendar(ctx context.Context) (*CalendarInfo, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	cal, err := svc.Calendars.Get(PrimaryCalendarID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &CalendarInfo{ID: cal.Id, Summary: cal.Summary, TimeZone: cal.TimeZone}, nil
}

// CheckConnection verifies the stored credential can read the primary
// calendar within the configured timeout. A timeout is reported as KindNetwork.
func (c *Client) CheckConnection(ctx context.Context) (*CalendarInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()
	return c.PrimaryCalendar(ctx)
}

func (c *Client) record(ctx context.Context, operation string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
}
