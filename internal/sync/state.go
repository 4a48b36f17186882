package sync

import (
	"fmt"
	"time"

	"github.com/teemow/meetwise/internal/calendar"
)

// State is the scheduler's position in its lifecycle.
type State int

const (
	// StateIdle means there is no session. Nothing is fetched.
	StateIdle State = iota
	// StateFetching means a cycle is in flight.
	StateFetching
	// StatePolling means the poll timer is armed.
	StatePolling
	// StatePaused means the dashboard is hidden and the timer is disarmed.
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StatePolling:
		return "polling"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "fetching":
		*s = StateFetching
	case "polling":
		*s = StatePolling
	case "paused":
		*s = StatePaused
	default:
		return fmt.Errorf("unknown scheduler state %q", text)
	}
	return nil
}

const (
	WindowUpcoming = "upcoming"
	WindowPast     = "past"
)

// Snapshot is a copy of the scheduler's published state.
type Snapshot struct {
	State       State            `json:"state"`
	Email       string           `json:"email,omitempty"`
	Upcoming    []calendar.Event `json:"upcoming"`
	Past        []calendar.Event `json:"past"`
	LastUpdated time.Time        `json:"lastUpdated,omitzero"`
	Error       string           `json:"error,omitempty"`
	NeedsAuth   bool             `json:"needsAuth"`
}

// Window is a named time range fetched by one request.
type Window struct {
	Name string
	From time.Time
	To   time.Time
}

// Windows returns the upcoming range [now, now+ahead] and the past range
// [now-behind, now]. Non-positive durations fall back to the defaults.
func Windows(now time.Time, ahead, behind time.Duration) (upcoming, past Window) {
	if ahead <= 0 {
		ahead = DefaultUpcomingWindow
	}
	if behind <= 0 {
		behind = DefaultPastWindow
	}
	return Window{Name: WindowUpcoming, From: now, To: now.Add(ahead)},
		Window{Name: WindowPast, From: now.Add(-behind), To: now}
}

// DefaultWindows is Windows with the 30 day lookahead and 7 day lookback.
func DefaultWindows(now time.Time) (upcoming, past Window) {
	return Windows(now, DefaultUpcomingWindow, DefaultPastWindow)
}
