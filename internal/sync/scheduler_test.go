package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/credentials"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers in the caller's goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.stopped = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type call struct {
	from, to time.Time
	max      int
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []call
	err     error
	gate    chan struct{}
	started chan struct{}
	count   atomic.Int32

	inFlight    map[string]int
	maxInFlight map[string]int
}

func windowOf(from, to time.Time) string {
	if to.Before(from.Add(8 * 24 * time.Hour)) {
		return WindowPast
	}
	return WindowUpcoming
}

func (f *fakeFetcher) ListEvents(ctx context.Context, from, to time.Time, maxResults int) ([]calendar.Event, error) {
	window := windowOf(from, to)
	f.count.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, call{from: from, to: to, max: maxResults})
	if f.inFlight == nil {
		f.inFlight = map[string]int{}
		f.maxInFlight = map[string]int{}
	}
	f.inFlight[window]++
	f.maxInFlight[window] = max(f.maxInFlight[window], f.inFlight[window])
	err, gate, started := f.err, f.gate, f.started
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight[window]--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	title := "Upcoming"
	if window == WindowPast {
		title = "Past"
	}
	return []calendar.Event{{ID: title, Title: title}}, nil
}

func (f *fakeFetcher) peakInFlight(window string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight[window]
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func newTestScheduler(t *testing.T, f Fetcher, opts ...Option) (*Scheduler, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := NewScheduler(f, append([]Option{WithClock(clock), WithInterval(time.Minute)}, opts...)...)
	t.Cleanup(s.Close)
	return s, clock
}

func TestScheduler_StartFetchesBothWindows(t *testing.T) {
	f := &fakeFetcher{}
	s, clock := newTestScheduler(t, f, WithMaxResults(25))

	require.NoError(t, s.Start(context.Background(), Session{Email: "ada@example.com"}))

	snap := s.Snapshot()
	assert.Equal(t, StatePolling, snap.State)
	assert.Equal(t, "ada@example.com", snap.Email)
	require.Len(t, snap.Upcoming, 1)
	require.Len(t, snap.Past, 1)
	assert.Equal(t, "Upcoming", snap.Upcoming[0].Title)
	assert.Equal(t, "Past", snap.Past[0].Title)
	assert.Equal(t, clock.Now(), snap.LastUpdated)
	assert.Empty(t, snap.Error)
	assert.Equal(t, 1, clock.armed())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.calls, 2)
	now := clock.Now()
	windows := map[time.Time]time.Time{}
	for _, c := range f.calls {
		assert.Equal(t, 25, c.max)
		windows[c.from] = c.to
	}
	assert.Equal(t, now.Add(DefaultUpcomingWindow), windows[now])
	assert.Equal(t, now, windows[now.Add(-DefaultPastWindow)])
}

func TestScheduler_PollsOnInterval(t *testing.T) {
	f := &fakeFetcher{}
	s, clock := newTestScheduler(t, f)
	require.NoError(t, s.Start(context.Background(), Session{}))
	assert.Equal(t, int32(2), f.count.Load())

	clock.Advance(30 * time.Second)
	s.wg.Wait()
	assert.Equal(t, int32(2), f.count.Load())

	clock.Advance(30 * time.Second)
	s.wg.Wait()
	assert.Equal(t, int32(4), f.count.Load())
	assert.Equal(t, StatePolling, s.Snapshot().State)
	assert.Equal(t, 1, clock.armed())
}

func TestScheduler_RefreshFromIdle(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeFetcher{})
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrNoSession)
}

func TestScheduler_RefreshReschedules(t *testing.T) {
	f := &fakeFetcher{}
	s, clock := newTestScheduler(t, f)
	require.NoError(t, s.Start(context.Background(), Session{}))

	clock.Advance(50 * time.Second)
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(4), f.count.Load())

	// The original deadline passed without a tick.
	clock.Advance(20 * time.Second)
	s.wg.Wait()
	assert.Equal(t, int32(4), f.count.Load())

	clock.Advance(40 * time.Second)
	s.wg.Wait()
	assert.Equal(t, int32(6), f.count.Load())
}

func TestScheduler_VisibilityPauseResume(t *testing.T) {
	f := &fakeFetcher{}
	s, clock := newTestScheduler(t, f)
	require.NoError(t, s.Start(context.Background(), Session{}))

	require.NoError(t, s.SetVisible(context.Background(), false))
	assert.Equal(t, StatePaused, s.Snapshot().State)
	assert.Equal(t, 0, clock.armed())

	clock.Advance(10 * time.Minute)
	s.wg.Wait()
	assert.Equal(t, int32(2), f.count.Load())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(4), f.count.Load())
	assert.Equal(t, StatePaused, s.Snapshot().State)
	assert.Equal(t, 0, clock.armed())

	require.NoError(t, s.SetVisible(context.Background(), true))
	assert.Equal(t, int32(6), f.count.Load())
	assert.Equal(t, StatePolling, s.Snapshot().State)
	assert.Equal(t, 1, clock.armed())

	// Showing an already visible dashboard does nothing.
	require.NoError(t, s.SetVisible(context.Background(), true))
	assert.Equal(t, int32(6), f.count.Load())
}

func TestScheduler_HiddenBeforeStart(t *testing.T) {
	s, clock := newTestScheduler(t, &fakeFetcher{})
	require.NoError(t, s.SetVisible(context.Background(), false))
	assert.Equal(t, StateIdle, s.Snapshot().State)

	require.NoError(t, s.Start(context.Background(), Session{}))
	assert.Equal(t, StatePaused, s.Snapshot().State)
	assert.Equal(t, 0, clock.armed())
}

func TestScheduler_FailureKeepsPolling(t *testing.T) {
	f := &fakeFetcher{}
	s, clock := newTestScheduler(t, f)
	require.NoError(t, s.Start(context.Background(), Session{}))

	f.setErr(&calendar.Error{Kind: calendar.KindAuthExpired, StatusCode: 401, Err: errors.New("unauthorized")})
	clock.Advance(time.Minute)
	s.wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, StatePolling, snap.State)
	assert.True(t, snap.NeedsAuth)
	assert.Equal(t, "Authentication failed. Please sign in again.", snap.Error)
	assert.Len(t, snap.Upcoming, 1, "previous data is kept")
	assert.Equal(t, 1, clock.armed())

	f.setErr(nil)
	clock.Advance(time.Minute)
	s.wg.Wait()
	snap = s.Snapshot()
	assert.Empty(t, snap.Error)
	assert.False(t, snap.NeedsAuth)
}

func TestScheduler_MissingCredentialNeedsAuth(t *testing.T) {
	f := &fakeFetcher{err: credentials.ErrNotFound}
	s, _ := newTestScheduler(t, f)
	require.NoError(t, s.Start(context.Background(), Session{}))

	snap := s.Snapshot()
	assert.True(t, snap.NeedsAuth)
	assert.NotEmpty(t, snap.Error)
	assert.True(t, snap.LastUpdated.IsZero())
}

func TestScheduler_ValidatorSkipsFetch(t *testing.T) {
	f := &fakeFetcher{}
	var fail atomic.Bool
	fail.Store(true)
	s, _ := newTestScheduler(t, f, WithValidator(func(context.Context) error {
		if fail.Load() {
			return errors.New("scope missing")
		}
		return nil
	}))

	require.NoError(t, s.Start(context.Background(), Session{}))
	snap := s.Snapshot()
	assert.Equal(t, int32(0), f.count.Load())
	assert.Equal(t, MessageRegrant, snap.Error)
	assert.True(t, snap.NeedsAuth)
	assert.Equal(t, StatePolling, snap.State)

	fail.Store(false)
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(2), f.count.Load())
	assert.Empty(t, s.Snapshot().Error)
}

func TestScheduler_StopDiscardsInFlight(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{}), started: make(chan struct{}, 2)}
	s, clock := newTestScheduler(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx, Session{}) }()
	<-f.started
	<-f.started

	s.Stop()
	close(f.gate)
	s.wg.Wait()
	cancel()
	<-errc

	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Upcoming)
	assert.Empty(t, snap.Past)
	assert.Equal(t, 0, clock.armed())
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrNoSession)
}

func TestScheduler_CoalescesConcurrentRefresh(t *testing.T) {
	f := &fakeFetcher{}
	s, _ := newTestScheduler(t, f)
	require.NoError(t, s.Start(context.Background(), Session{}))

	f.mu.Lock()
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 8)
	f.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Refresh(context.Background()))
		}()
	}
	<-f.started
	<-f.started
	// Let the other refreshes join the in-flight requests.
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, f.peakInFlight(WindowUpcoming))
	assert.Equal(t, 1, f.peakInFlight(WindowPast))
	assert.GreaterOrEqual(t, f.count.Load(), int32(4))
	assert.Equal(t, StatePolling, s.Snapshot().State)
}

func TestScheduler_StartIfIdleStartsOnce(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{}), started: make(chan struct{}, 8)}
	s, _ := newTestScheduler(t, f)

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.StartIfIdle(context.Background(), Session{Email: "ada@example.com"})
			assert.NoError(t, err)
			if ok {
				started.Add(1)
			}
		}()
	}
	<-f.started
	<-f.started
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(2), f.count.Load())
	assert.Equal(t, StatePolling, s.Snapshot().State)

	ok, err := s.StartIfIdle(context.Background(), Session{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "ada@example.com", s.Snapshot().Email)
}

func TestScheduler_SubscribeAndClose(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeFetcher{})

	var mu sync.Mutex
	var states []State
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		states = append(states, snap.State)
		mu.Unlock()
	})

	require.NoError(t, s.Start(context.Background(), Session{}))
	mu.Lock()
	got := append([]State(nil), states...)
	mu.Unlock()
	require.NotEmpty(t, got)
	assert.Equal(t, StatePolling, got[len(got)-1])

	cancel()
	s.Stop()
	mu.Lock()
	assert.Equal(t, len(got), len(states))
	mu.Unlock()

	notified := false
	s.Subscribe(func(Snapshot) { notified = true })
	s.Close()
	s.Stop()
	assert.False(t, notified)
	assert.ErrorIs(t, s.Start(context.Background(), Session{}), ErrClosed)
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.SetVisible(context.Background(), true), ErrClosed)
}

func TestState_MarshalText(t *testing.T) {
	b, err := StatePaused.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "paused", string(b))
	assert.Equal(t, "state(9)", State(9).String())
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	for _, st := range []State{StateIdle, StateFetching, StatePolling, StatePaused} {
		t.Run(st.String(), func(t *testing.T) {
			data, err := json.Marshal(Snapshot{State: st, Email: "ada@example.com"})
			require.NoError(t, err)
			assert.Contains(t, string(data), `"state":"`+st.String()+`"`)

			var got Snapshot
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, st, got.State)
			assert.Equal(t, "ada@example.com", got.Email)
		})
	}

	var got Snapshot
	assert.Error(t, json.Unmarshal([]byte(`{"state":"sleeping"}`), &got))
}

func TestDefaultWindows(t *testing.T) {
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	up, past := DefaultWindows(now)
	assert.Equal(t, WindowUpcoming, up.Name)
	assert.Equal(t, now, up.From)
	assert.Equal(t, now.AddDate(0, 0, 30), up.To)
	assert.Equal(t, WindowPast, past.Name)
	assert.Equal(t, now.AddDate(0, 0, -7), past.From)
	assert.Equal(t, now, past.To)
}
