package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/instrumentation"
	"github.com/teemow/meetwise/internal/logging"
)

const (
	DefaultPollInterval   = 5 * time.Minute
	DefaultUpcomingWindow = 30 * 24 * time.Hour
	DefaultPastWindow     = 7 * 24 * time.Hour
	DefaultMaxResults     = calendar.DefaultMaxResults
	DefaultFetchTimeout   = 30 * time.Second
)

// MessageRegrant is published when the pre-flight validation fails.
const MessageRegrant = "Calendar permission is missing or expired. Please sign in again and grant calendar access."

var (
	ErrNoSession = errors.New("no active session")
	ErrClosed    = errors.New("scheduler closed")
)

// Fetcher lists calendar events. *calendar.Client satisfies it.
type Fetcher interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]calendar.Event, error)
}

// Validator is an optional pre-flight run before every cycle. A non-nil
// error skips the data fetch.
type Validator func(ctx context.Context) error

// Session identifies who the scheduler fetches for. Fetcher overrides the
// scheduler's default fetcher when set.
type Session struct {
	Email   string
	Fetcher Fetcher
}

// Scheduler keeps the upcoming and past event lists fresh while a session
// is active and the dashboard is visible.
//
// Subscribers are called synchronously and in order. They must not call
// back into methods that change scheduler state.
type Scheduler struct {
	fetcher        Fetcher
	validator      Validator
	clock          Clock
	interval       time.Duration
	upcomingWindow time.Duration
	pastWindow     time.Duration
	maxResults     int
	fetchTimeout   time.Duration
	logger         *slog.Logger
	metrics        *instrumentation.Metrics

	flights singleflight.Group
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	// notifyMu serialises subscriber delivery so Close can wait for it.
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       State
	epoch       uint64
	closed      bool
	visible     bool
	timer       Timer
	timerGen    uint64
	session     *Session
	upcoming    []calendar.Event
	past        []calendar.Event
	lastUpdated time.Time
	errMsg      string
	needsAuth   bool
	subs        map[int]func(Snapshot)
	nextSub     int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithWindows sets how far ahead and behind now the two lists reach.
func WithWindows(upcoming, past time.Duration) Option {
	return func(s *Scheduler) {
		if upcoming > 0 {
			s.upcomingWindow = upcoming
		}
		if past > 0 {
			s.pastWindow = past
		}
	}
}

func WithMaxResults(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func WithValidator(v Validator) Option {
	return func(s *Scheduler) { s.validator = v }
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates an idle scheduler. The dashboard starts out visible.
func NewScheduler(fetcher Fetcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:        fetcher,
		clock:          realClock{},
		interval:       DefaultPollInterval,
		upcomingWindow: DefaultUpcomingWindow,
		pastWindow:     DefaultPastWindow,
		maxResults:     DefaultMaxResults,
		fetchTimeout:   DefaultFetchTimeout,
		logger:         slog.Default(),
		visible:        true,
		subs:           make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "sync")
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Interval returns the poll interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Snapshot returns the current published state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every future snapshot. The returned function
// removes the subscription.
func (s *Scheduler) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Start begins a session: both windows are fetched immediately, then the
// poll timer is armed if the dashboard is visible. Starting while another
// session is active replaces it.
func (s *Scheduler) Start(ctx context.Context, sess Session) error {
	_, err := s.start(ctx, sess, false)
	return err
}

// StartIfIdle is Start for a scheduler without a session. It reports false
// and does nothing when a session is already active.
func (s *Scheduler) StartIfIdle(ctx context.Context, sess Session) (bool, error) {
	return s.start(ctx, sess, true)
}

func (s *Scheduler) start(ctx context.Context, sess Session, onlyIdle bool) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if onlyIdle && s.state != StateIdle {
		s.mu.Unlock()
		return false, nil
	}
	s.epoch++
	s.stopTimerLocked()
	s.session = &sess
	s.upcoming, s.past = nil, nil
	s.lastUpdated = time.Time{}
	s.errMsg, s.needsAuth = "", false
	s.state = StateFetching
	done := s.spawnLocked(s.epoch)
	s.mu.Unlock()

	s.logger.Info("sync session started", logging.UserHash(sess.Email))
	s.notify()
	return true, wait(ctx, done)
}

// Refresh fetches now and reschedules the timer. While paused it fetches
// without arming the timer.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateIdle {
		s.mu.Unlock()
		return ErrNoSession
	}
	s.stopTimerLocked()
	s.state = StateFetching
	done := s.spawnLocked(s.epoch)
	s.mu.Unlock()

	s.notify()
	return wait(ctx, done)
}

// SetVisible records the dashboard visibility. Hiding disarms the timer
// without cancelling in-flight requests. Showing a paused dashboard fetches
// once and re-arms.
func (s *Scheduler) SetVisible(ctx context.Context, visible bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	wasVisible := s.visible
	s.visible = visible

	switch {
	case s.state == StateIdle || visible == wasVisible:
		s.mu.Unlock()
		return nil
	case !visible:
		s.stopTimerLocked()
		if s.state == StatePolling {
			s.state = StatePaused
		}
		s.mu.Unlock()
		s.logger.Debug("sync paused")
		s.notify()
		return nil
	case s.state == StatePaused:
		s.state = StateFetching
		done := s.spawnLocked(s.epoch)
		s.mu.Unlock()
		s.logger.Debug("sync resumed")
		s.notify()
		return wait(ctx, done)
	default:
		// Still fetching; the cycle arms the timer when it finishes.
		s.mu.Unlock()
		return nil
	}
}

// Stop ends the session. Both lists are cleared and results of in-flight
// requests are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.mu.Unlock()

	s.logger.Info("sync session stopped")
	s.notify()
}

// Close stops the scheduler for good. After Close returns no state change
// or notification happens.
func (s *Scheduler) Close() {
	s.notifyMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.notifyMu.Unlock()
		return
	}
	s.resetLocked()
	s.closed = true
	s.subs = nil
	s.mu.Unlock()
	s.notifyMu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) resetLocked() {
	s.epoch++
	s.stopTimerLocked()
	s.session = nil
	s.upcoming, s.past = nil, nil
	s.lastUpdated = time.Time{}
	s.errMsg, s.needsAuth = "", false
	s.state = StateIdle
}

// spawnLocked runs one cycle on the scheduler's own context so that a
// caller giving up does not leave the state machine half way.
func (s *Scheduler) spawnLocked(epoch uint64) <-chan struct{} {
	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.cycle(epoch)
	}()
	return done
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) cycle(epoch uint64) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return
	}
	fetcher := s.fetcher
	if sess.Fetcher != nil {
		fetcher = sess.Fetcher
	}

	ctx := s.ctx
	if s.validator != nil {
		if err := s.validator(ctx); err != nil {
			s.logger.Warn("sync pre-flight validation failed", logging.Err(err))
			s.mu.Lock()
			if s.current(epoch) {
				s.errMsg, s.needsAuth = MessageRegrant, true
			}
			s.mu.Unlock()
			s.finish(epoch)
			return
		}
	}

	upWin, pastWin := Windows(s.clock.Now(), s.upcomingWindow, s.pastWindow)
	var (
		g             errgroup.Group
		upcoming      []calendar.Event
		past          []calendar.Event
		upErr, pstErr error
	)
	g.Go(func() error {
		upcoming, upErr = s.fetchWindow(ctx, fetcher, epoch, upWin)
		return upErr
	})
	g.Go(func() error {
		past, pstErr = s.fetchWindow(ctx, fetcher, epoch, pastWin)
		return pstErr
	})
	err := g.Wait()

	s.mu.Lock()
	if s.current(epoch) {
		if upErr == nil {
			s.upcoming = upcoming
		}
		if pstErr == nil {
			s.past = past
		}
		if err != nil {
			s.errMsg, s.needsAuth = calendar.UserMessage(err), calendar.NeedsAuth(err)
		} else {
			s.errMsg, s.needsAuth = "", false
			s.lastUpdated = s.clock.Now()
		}
	}
	s.mu.Unlock()

	s.finish(epoch)
}

// fetchWindow lists one window. Concurrent cycles of the same epoch share a
// single request per window.
func (s *Scheduler) fetchWindow(ctx context.Context, fetcher Fetcher, epoch uint64, w Window) ([]calendar.Event, error) {
	window := w.Name
	key := fmt.Sprintf("%s#%d", window, epoch)
	v, err, shared := s.flights.Do(key, func() (any, error) {
		ctx, span := instrumentation.StartSyncSpan(ctx, window)
		ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		start := time.Now()
		events, err := fetcher.ListEvents(ctx, w.From, w.To, s.maxResults)
		instrumentation.EndSpan(span, err)
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		s.metrics.RecordSyncFetch(ctx, window, status, time.Since(start))
		return events, err
	})
	if err != nil {
		s.logger.Warn("sync fetch failed", logging.Window(window), logging.Err(err))
		return nil, err
	}
	events, _ := v.([]calendar.Event)
	s.logger.Debug("sync fetch complete",
		logging.Window(window), slog.Int("count", len(events)), slog.Bool("shared", shared))
	return events, nil
}

// finish moves a fetching scheduler to Polling or Paused depending on
// visibility and publishes the result.
func (s *Scheduler) finish(epoch uint64) {
	s.mu.Lock()
	if !s.current(epoch) {
		s.mu.Unlock()
		return
	}
	if s.visible {
		s.state = StatePolling
		s.armLocked(epoch)
	} else {
		s.state = StatePaused
	}
	s.mu.Unlock()
	s.notify()
}

// current reports whether results for epoch may still be applied.
func (s *Scheduler) current(epoch uint64) bool {
	return !s.closed && epoch == s.epoch && s.state != StateIdle
}

func (s *Scheduler) armLocked(epoch uint64) {
	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.interval, func() { s.tick(epoch, gen) })
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Scheduler) tick(epoch, gen uint64) {
	s.mu.Lock()
	if !s.current(epoch) || gen != s.timerGen || s.state != StatePolling {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = StateFetching
	s.spawnLocked(epoch)
	s.mu.Unlock()

	s.logger.Debug("sync poll tick")
	s.notify()
}

func (s *Scheduler) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       s.state,
		Upcoming:    append([]calendar.Event{}, s.upcoming...),
		Past:        append([]calendar.Event{}, s.past...),
		LastUpdated: s.lastUpdated,
		Error:       s.errMsg,
		NeedsAuth:   s.needsAuth,
	}
	if s.session != nil {
		snap.Email = s.session.Email
	}
	return snap
}

func (s *Scheduler) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("sync state changed", logging.State(snap.State.String()))
	for _, fn := range subs {
		fn(snap)
	}
}
