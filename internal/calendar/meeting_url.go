package calendar

import (
	"net/url"
	"regexp"
	"strings"

	calendar "google.golang.org/api/calendar/v3"
)

// meetingProviders are the hosts whose links count as meeting URLs when
// found in an event description. Subdomains match too (us02web.zoom.us).
var meetingProviders = []string{
	"zoom.us",
	"meet.google.com",
	"teams.microsoft.com",
	"webex.com",
	"gotomeeting.com",
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// ExtractMeetingURL returns the event's video meeting link, or "".
//
// Sources in priority order: the Hangouts/Meet link, the first conference
// entry point of type "video", then the first description URL hosted by a
// known meeting provider. Other URLs are ignored.
func ExtractMeetingURL(event *calendar.Event) string {
	if event == nil {
		return ""
	}
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return meetingURLFromText(event.Description)
}

func meetingURLFromText(text string) string {
	for _, raw := range urlPattern.FindAllString(text, -1) {
		candidate := strings.TrimRight(raw, ".,;:!?)]}'")
		if isMeetingProviderURL(candidate) {
			return candidate
		}
	}
	return ""
}

func isMeetingProviderURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, provider := range meetingProviders {
		if host == provider || strings.HasSuffix(host, "."+provider) {
			return true
		}
	}
	return false
}
