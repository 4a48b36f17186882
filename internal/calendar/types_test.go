package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
)

func TestToEvent(t *testing.T) {
	src := &calendar.Event{
		Id:          "evt1",
		Summary:     "Design review",
		Description: "Agenda",
		Location:    "Room 4",
		Start:       &calendar.EventDateTime{DateTime: "2025-03-10T14:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2025-03-10T15:30:00Z"},
		Attendees: []*calendar.EventAttendee{
			{Email: "a@example.com", DisplayName: "Alice", ResponseStatus: "accepted"},
			{Email: "b@example.com"},
		},
		Organizer:   &calendar.EventOrganizer{Email: "a@example.com", DisplayName: "Alice"},
		HangoutLink: "https://meet.google.com/abc-defg-hij",
	}

	e := ToEvent(src)

	assert.Equal(t, "evt1", e.ID)
	assert.Equal(t, "Design review", e.Title)
	assert.Equal(t, "2025-03-10T14:00:00Z", e.Start)
	assert.Equal(t, "2025-03-10T15:30:00Z", e.End)
	assert.Equal(t, 90, e.DurationMinutes())
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", e.MeetingURL)
	require.NotNil(t, e.Organizer)
	assert.Equal(t, "Alice", e.Organizer.DisplayName)

	require.Len(t, e.Attendees, 2)
	assert.Equal(t, Attendee{Email: "a@example.com", Name: "Alice", ResponseStatus: "accepted"}, e.Attendees[0])
	assert.Equal(t, Attendee{Email: "b@example.com", Name: "b@example.com", ResponseStatus: ResponseNeedsAction}, e.Attendees[1])
}

func TestToEvent_Defaults(t *testing.T) {
	e := ToEvent(&calendar.Event{
		Id:    "evt2",
		Start: &calendar.EventDateTime{Date: "2025-03-10"},
		End:   &calendar.EventDateTime{Date: "2025-03-11"},
	})

	assert.Equal(t, UntitledMeeting, e.Title)
	assert.Equal(t, "2025-03-10", e.Start)
	assert.Equal(t, "2025-03-11", e.End)
	assert.True(t, e.AllDay())
	assert.Equal(t, 24*60, e.DurationMinutes())
	assert.NotNil(t, e.Attendees)
	assert.Empty(t, e.Attendees)
	assert.Nil(t, e.Organizer)
	assert.Empty(t, e.MeetingURL)
}

func TestToEvent_DateTimeWinsOverDate(t *testing.T) {
	e := ToEvent(&calendar.Event{
		Start: &calendar.EventDateTime{DateTime: "2025-03-10T09:00:00+01:00", Date: "2025-03-10"},
		End:   &calendar.EventDateTime{DateTime: "2025-03-10T09:45:00+01:00"},
	})
	assert.Equal(t, "2025-03-10T09:00:00+01:00", e.Start)
	assert.Equal(t, 45, e.DurationMinutes())
}

func TestEvent_DurationMinutes(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  int
	}{
		{"rounds up", "2025-01-01T10:00:00Z", "2025-01-01T10:29:40Z", 30},
		{"rounds down", "2025-01-01T10:00:00Z", "2025-01-01T10:29:20Z", 29},
		{"unparseable start", "soon", "2025-01-01T10:00:00Z", 0},
		{"missing end", "2025-01-01T10:00:00Z", "", 0},
		{"end before start", "2025-01-01T10:00:00Z", "2025-01-01T09:00:00Z", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Event{Start: tt.start, End: tt.end}.DurationMinutes())
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int]string{0: "0m", 45: "45m", 60: "1h", 90: "1h 30m", 150: "2h 30m"}
	for minutes, want := range tests {
		assert.Equal(t, want, FormatDuration(minutes), "minutes=%d", minutes)
	}
}

func TestRelativeDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Today", RelativeDay(now.Add(5*time.Hour), now))
	assert.Equal(t, "Tomorrow", RelativeDay(now.Add(24*time.Hour), now))
	assert.Equal(t, "Yesterday", RelativeDay(now.Add(-24*time.Hour), now))
	assert.Equal(t, "Fri, Mar 14", RelativeDay(now.Add(4*24*time.Hour), now))
}
