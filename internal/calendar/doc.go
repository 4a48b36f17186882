// Package calendar reads events from the user's primary Google Calendar and
// converts them into the canonical Event used across meetwise.
//
// The client authenticates through an oauth2.TokenSource, normally a
// credentials.TokenSource over the on-disk token file. Failures are returned
// as *Error with a Kind telling the caller whether to ask the user to sign in
// again (NeedsAuth) or to retry later.
//
// Example usage:
//
//	store := credentials.NewFileStore(cfg.TokenPath)
//	client := calendar.NewClient(credentials.NewTokenSource(ctx, store, oauthConfig))
//
//	now := time.Now()
//	events, err := client.ListEvents(ctx, now, now.AddDate(0, 0, 30), 10)
//	if calendar.NeedsAuth(err) {
//	    // send the user back through sign-in
//	}
package calendar
