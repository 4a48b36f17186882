package google

// Google OAuth scopes requested at sign-in.
const (
	ScopeOpenID           = "openid"
	ScopeUserinfoEmail    = "https://www.googleapis.com/auth/userinfo.email"
	ScopeUserinfoProfile  = "https://www.googleapis.com/auth/userinfo.profile"
	ScopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"
)

// DefaultOAuthScopes is the scope set meetwise asks for. Calendar access is
// read-only; nothing is ever written to the user's calendar.
var DefaultOAuthScopes = []string{
	ScopeOpenID,
	ScopeUserinfoEmail,
	ScopeUserinfoProfile,
	ScopeCalendarReadonly,
}

// RequiredCalendarScope must be present in a token's granted scopes for
// calendar reads to succeed.
const RequiredCalendarScope = ScopeCalendarReadonly
