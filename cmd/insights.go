package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/insights"
	calsync "github.com/teemow/meetwise/internal/sync"
	"github.com/teemow/meetwise/internal/tools/calendar_tools"
)

func newInsightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize or analyze meetings with the AI backend",
		Long: `Generate meeting summaries and calendar analysis with the configured AI
backend (MEETWISE_AI_PROVIDER). When the backend is unavailable a short
factual fallback is printed instead.`,
	}
	cmd.AddCommand(newInsightsSummarizeCmd())
	cmd.AddCommand(newInsightsAnalyzeCmd())
	return cmd
}

func newInsightsSummarizeCmd() *cobra.Command {
	var (
		window string
		html   bool
	)

	cmd := &cobra.Command{
		Use:   "summarize EVENT_ID",
		Short: "Summarize one meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkWindow(window); err != nil {
				return err
			}
			sc, err := newCommandContext(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sc.Shutdown() }()

			events, err := calendar_tools.FetchWindow(cmd.Context(), sc, window, 0)
			if err != nil {
				return errors.New(calendar.UserMessage(err))
			}
			for _, e := range events {
				if e.ID == args[0] {
					printInsight(cmd, sc.Insights().Summarize(cmd.Context(), e), html)
					return nil
				}
			}
			return fmt.Errorf("event %q not found in %s events", args[0], window)
		},
	}

	cmd.Flags().StringVar(&window, "window", calsync.WindowUpcoming, "Where to look for the event: upcoming or past")
	cmd.Flags().BoolVar(&html, "html", false, "Render the text as HTML")
	return cmd
}

func newInsightsAnalyzeCmd() *cobra.Command {
	var (
		window     string
		maxResults int
		html       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a window of meetings for patterns and recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkWindow(window); err != nil {
				return err
			}
			sc, err := newCommandContext(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sc.Shutdown() }()

			events, err := calendar_tools.FetchWindow(cmd.Context(), sc, window, maxResults)
			if err != nil {
				return errors.New(calendar.UserMessage(err))
			}
			if len(events) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s meetings to analyze.\n", window)
				return nil
			}
			printInsight(cmd, sc.Insights().Analyze(cmd.Context(), events), html)
			return nil
		},
	}

	cmd.Flags().StringVar(&window, "window", calsync.WindowUpcoming, "Which meetings to analyze: upcoming or past")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum number of events (default: MEETWISE_MAX_RESULTS)")
	cmd.Flags().BoolVar(&html, "html", false, "Render the text as HTML")
	return cmd
}

func checkWindow(window string) error {
	if window != calsync.WindowUpcoming && window != calsync.WindowPast {
		return fmt.Errorf("--window must be %q or %q", calsync.WindowUpcoming, calsync.WindowPast)
	}
	return nil
}

// printInsight writes the text to stdout and, for fallbacks, the reason to stderr.
func printInsight(cmd *cobra.Command, res insights.Result, html bool) {
	writeInsight(cmd.OutOrStdout(), res, html)
	if res.Fallback() && res.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "AI unavailable (%v); showing basic summary\n", res.Err)
	}
}

func writeInsight(out io.Writer, res insights.Result, html bool) {
	if html {
		fmt.Fprint(out, res.HTML())
		return
	}
	fmt.Fprintln(out, res.Text)
}
