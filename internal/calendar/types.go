package calendar

import (
	"math"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// UntitledMeeting is the title used for events without a summary.
const UntitledMeeting = "Untitled Meeting"

// Default attendee response status when Google omits it.
const ResponseNeedsAction = "needsAction"

const dateLayout = "2006-01-02"

// Event is the canonical calendar event shared by the scheduler, the HTTP
// surface and the insight generator.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Start and End are the upstream strings: RFC 3339 timestamps, or
	// YYYY-MM-DD for all-day events.
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Attendees   []Attendee `json:"attendees"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	MeetingURL  string     `json:"meetingUrl,omitempty"`
	Organizer   *Organizer `json:"organizer,omitempty"`
}

// Attendee is an event participant.
type Attendee struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	ResponseStatus string `json:"responseStatus"`
}

// Organizer is the event organizer.
type Organizer struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// CalendarInfo describes a calendar, used for account and connectivity checks.
type CalendarInfo struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	TimeZone string `json:"timeZone"`
}

// StartTime parses Start. ok is false when Start is empty or malformed.
func (e Event) StartTime() (time.Time, bool) {
	return parseEventTime(e.Start)
}

// EndTime parses End. ok is false when End is empty or malformed.
func (e Event) EndTime() (time.Time, bool) {
	return parseEventTime(e.End)
}

// AllDay reports whether the event uses date-only boundaries.
func (e Event) AllDay() bool {
	return len(e.Start) == len(dateLayout)
}

// DurationMinutes is the rounded length of the event in minutes, or 0 when
// either boundary cannot be parsed or end precedes start.
func (e Event) DurationMinutes() int {
	start, ok := e.StartTime()
	if !ok {
		return 0
	}
	end, ok := e.EndTime()
	if !ok || end.Before(start) {
		return 0
	}
	return int(math.Round(end.Sub(start).Minutes()))
}

// AttendeeNames returns attendee display names in order.
func (e Event) AttendeeNames() []string {
	names := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		names = append(names, a.Name)
	}
	return names
}

func parseEventTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ToEvent converts a Google Calendar event to the canonical Event.
func ToEvent(event *calendar.Event) Event {
	if event == nil {
		return Event{Title: UntitledMeeting, Attendees: []Attendee{}}
	}

	e := Event{
		ID:          event.Id,
		Title:       event.Summary,
		Start:       eventDateTime(event.Start),
		End:         eventDateTime(event.End),
		Description: event.Description,
		Location:    event.Location,
		Attendees:   make([]Attendee, 0, len(event.Attendees)),
		MeetingURL:  ExtractMeetingURL(event),
	}
	if e.Title == "" {
		e.Title = UntitledMeeting
	}

	for _, att := range event.Attendees {
		if att == nil {
			continue
		}
		a := Attendee{
			Email:          att.Email,
			Name:           att.DisplayName,
			ResponseStatus: att.ResponseStatus,
		}
		if a.Name == "" {
			a.Name = att.Email
		}
		if a.ResponseStatus == "" {
			a.ResponseStatus = ResponseNeedsAction
		}
		e.Attendees = append(e.Attendees, a)
	}

	if event.Organizer != nil && event.Organizer.Email != "" {
		e.Organizer = &Organizer{
			Email:       event.Organizer.Email,
			DisplayName: event.Organizer.DisplayName,
		}
	}

	return e
}

// eventDateTime prefers the timestamp and falls back to the all-day date.
func eventDateTime(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}
