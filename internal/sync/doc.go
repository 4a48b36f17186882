// Package sync keeps the dashboard's calendar data fresh.
//
// A Scheduler is a small state machine (Idle, Fetching, Polling, Paused)
// driven by session start and stop, manual refreshes and page-visibility
// changes. Each cycle fetches the upcoming and past windows in parallel.
// Requests for the same window are coalesced, and results that arrive after
// the session ended are dropped. Subscribers receive a Snapshot after every
// change.
package sync
