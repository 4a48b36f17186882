package insights

import (
	"fmt"
	"strings"

	"github.com/teemow/meetwise/internal/calendar"
)

// FallbackSummary is the deterministic summary used when no backend answers.
func FallbackSummary(e calendar.Event) string {
	return fmt.Sprintf("%s: %d-minute meeting with %s",
		e.Title, e.DurationMinutes(), plural(len(e.Attendees), "attendee"))
}

// FallbackAnalysis is the deterministic analysis used when no backend answers.
func FallbackAnalysis(events []calendar.Event) string {
	total := 0
	unique := map[string]struct{}{}
	for _, e := range events {
		total += e.DurationMinutes()
		for _, a := range e.Attendees {
			key := strings.ToLower(a.Email)
			if key == "" {
				key = a.Name
			}
			unique[key] = struct{}{}
		}
	}
	return fmt.Sprintf("%s totaling %d minutes with %s",
		plural(len(events), "meeting"), total, plural(len(unique), "unique attendee"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
