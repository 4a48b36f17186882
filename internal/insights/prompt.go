package insights

import (
	"fmt"
	"strings"

	"github.com/teemow/meetwise/internal/calendar"
)

const (
	summaryMaxTokens  = 150
	analysisMaxTokens = 200
	defaultTemp       = 0.7
	// maxDescription keeps long agendas from dominating the prompt.
	maxDescription = 2000
)

func summaryPrompt(e calendar.Event) string {
	var b strings.Builder
	b.WriteString("Generate a concise summary for this meeting:\n")
	fmt.Fprintf(&b, "Title: %s\n", e.Title)
	fmt.Fprintf(&b, "When: %s to %s\n", e.Start, e.End)
	if minutes := e.DurationMinutes(); minutes > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", calendar.FormatDuration(minutes))
	}
	if names := e.AttendeeNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Attendees: %s\n", strings.Join(names, ", "))
	}
	if e.Organizer != nil {
		organizer := e.Organizer.DisplayName
		if organizer == "" {
			organizer = e.Organizer.Email
		}
		fmt.Fprintf(&b, "Organizer: %s\n", organizer)
	}
	if e.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", e.Location)
	}
	if desc := truncate(strings.TrimSpace(e.Description), maxDescription); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	b.WriteString("\nProvide a brief, actionable summary.")
	return b.String()
}

func analysisPrompt(events []calendar.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these %d meetings and provide insights:\n", len(events))
	for _, e := range events {
		fmt.Fprintf(&b, "- %s (%d attendees", e.Title, len(e.Attendees))
		if minutes := e.DurationMinutes(); minutes > 0 {
			fmt.Fprintf(&b, ", %s", calendar.FormatDuration(minutes))
		}
		if e.Start != "" {
			fmt.Fprintf(&b, ", starts %s", e.Start)
		}
		b.WriteString(")\n")
	}
	b.WriteString("\nProvide patterns, trends, and actionable recommendations.")
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
