package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/meetwise/internal/calendar"
	calsync "github.com/teemow/meetwise/internal/sync"
	"github.com/teemow/meetwise/internal/tools/calendar_tools"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List meetings from the primary calendar",
	}
	cmd.AddCommand(newEventsWindowCmd(calsync.WindowUpcoming, "List upcoming meetings"))
	cmd.AddCommand(newEventsWindowCmd(calsync.WindowPast, "List recent past meetings"))
	return cmd
}

func newEventsWindowCmd(window, short string) *cobra.Command {
	var (
		maxResults int
		watch      bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   window,
		Short: short,
		Long: short + `.

With --watch the list is refreshed on the poll interval until interrupted,
the same way the dashboard keeps itself current.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := newCommandContext(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sc.Shutdown() }()

			out := cmd.OutOrStdout()
			if !watch {
				events, err := calendar_tools.FetchWindow(cmd.Context(), sc, window, maxResults)
				if err != nil {
					return errors.New(calendar.UserMessage(err))
				}
				if jsonOutput {
					return writeJSONOutput(out, events)
				}
				fmt.Fprintln(out, calendar_tools.FormatEvents(window, events, time.Now()))
				return nil
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sched := sc.Scheduler()
			unsubscribe := sched.Subscribe(func(snap calsync.Snapshot) {
				printSnapshot(out, window, snap, jsonOutput)
			})
			defer unsubscribe()

			if err := sched.Start(ctx, calsync.Session{}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s events every %s. Press Ctrl+C to stop.\n", window, sched.Interval())

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum number of events (default: MEETWISE_MAX_RESULTS)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep refreshing on the poll interval")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print events as JSON")
	return cmd
}

// printSnapshot prints settled snapshots only; fetch transitions are skipped.
func printSnapshot(out io.Writer, window string, snap calsync.Snapshot, jsonOutput bool) {
	if snap.State == calsync.StateFetching || snap.State == calsync.StateIdle {
		return
	}
	events := snap.Upcoming
	if window == calsync.WindowPast {
		events = snap.Past
	}

	if jsonOutput {
		_ = writeJSONOutput(out, events)
		return
	}
	fmt.Fprintf(out, "--- %s ---\n", time.Now().Format(time.Kitchen))
	if snap.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", snap.Error)
		if snap.NeedsAuth {
			fmt.Fprintln(out, `Run "meetwise auth login" to sign in again.`)
		}
	}
	fmt.Fprintln(out, calendar_tools.FormatEvents(window, events, time.Now()))
}
