package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/google"
	"github.com/teemow/meetwise/internal/server"
)

const loginTimeout = 5 * time.Minute

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored Google credential",
		Long: `Sign in with Google, inspect the stored credential, or clear it to switch
accounts. The credential file is shared with the dashboard and the MCP tools.`,
	}
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthClearCmd())
	cmd.AddCommand(newAuthAccountCmd())
	return cmd
}

// newCommandContext builds a ServerContext for one-shot commands.
func newCommandContext(cmd *cobra.Command) (*server.ServerContext, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	sc, err := server.NewServerContext(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return sc, nil
}

func newAuthLoginCmd() *cobra.Command {
	var manual bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google and store the credential",
		Long: `Open the Google consent screen and store the resulting credential.

By default a temporary listener on the base URL receives the OAuth callback,
so the redirect URL <base-url>/auth/google/callback must be registered with
Google and no dashboard may be running on the same address.

With --manual the consent URL is printed and the code (or the full redirected
URL) is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := newCommandContext(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sc.Shutdown() }()

			cfg := sc.Config()
			if err := cfg.RequireOAuthClient(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
			defer cancel()

			state := google.NewState()
			authURL := google.AuthURL(sc.OAuthConfig(), state)

			var code string
			if manual {
				code, err = readAuthCode(cmd, authURL, state)
			} else {
				code, err = awaitCallback(ctx, cmd.OutOrStdout(), cfg.BaseURL, authURL, state)
			}
			if err != nil {
				return err
			}

			profile, err := sc.CompleteLogin(ctx, code)
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\nCredential stored at %s\n", profile.Email, sc.Store().Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "Paste the authorization code instead of running a callback listener")
	return cmd
}

// readAuthCode prints the consent URL and reads the code from stdin.
func readAuthCode(cmd *cobra.Command, authURL, state string) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Visit this URL in your browser and grant calendar access:\n\n  %s\n\n", authURL)

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Paste the authorization code or the redirected URL: ")
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read authorization code: %w", err)
	}
	return google.ParseAuthCode(line, state)
}

// awaitCallback serves the OAuth callback on the base URL's address until
// one valid callback arrives.
func awaitCallback(ctx context.Context, out io.Writer, baseURL, authURL, state string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen for the OAuth callback on %s (use --manual when the dashboard is running): %w", addr, err)
	}

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		code, err := google.CallbackCode(r.URL.Query(), state)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			_, _ = fmt.Fprintln(w, "Signed in. You can close this window.")
		}
		select {
		case results <- result{code: code, err: err}:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(out, "Visit this URL in your browser and grant calendar access:\n\n  %s\n\nWaiting for the callback on %s ...\n", authURL, addr)

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("timed out waiting for the OAuth callback: %w", ctx.Err())
	}
}

func newAuthStatusCmd() *cobra.Command {
	var (
		check      bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential without revealing tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := newCommandContext(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sc.Shutdown() }()

			status := server.InspectCredentials(sc.Store(), time.Now())
			var connErr error
			if check && status.Present {
				_, connErr = sc.Calendar().CheckConnection(cmd.Context())
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSONOutput(out, status)
			}

			fmt.Fprintf(out, "Credential file: %s\n", status.Path)
			if !status.Present {
				fmt.Fprintln(out, "Status: not signed in")
				if status.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", status.Error)
				}
				return nil
			}
			fmt.Fprintf(out, "Format: %s\n", status.Shape)
			fmt.Fprintf(out, "Refresh token: %t\n", status.HasRefreshToken)
			if status.Expiry != nil {
				state := "valid"
				if status.Expired {
					state = "expired"
				}
				fmt.Fprintf(out, "Access token: %s (expires %s)\n", state, status.Expiry.Local().Format(time.RFC1123))
			}
			if status.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", status.Error)
			}
			if check {
				if connErr != nil {
					fmt.Fprintf(out, "Google Calendar: %s\n", calendar.UserMessage(connErr))
				} else {
					fmt.Fprintln(out, "Google Calendar: available")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Also verify that Google Calendar is reachable")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the status as JSON")
	return cmd
}

func newAuthClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Back up and remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := newCommandContext(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sc.Shutdown() }()

			res, err := sc.Store().Clear()
			if err != nil {
				return fmt.Errorf("failed to clear tokens: %w", err)
			}
			out := cmd.OutOrStdout()
			if res.AlreadyCleared {
				fmt.Fprintln(out, "No existing tokens found. Ready for new authentication.")
				return nil
			}
			fmt.Fprintf(out, "Tokens cleared. Backup written to %s\n", res.BackupPath)
			return nil
		},
	}
}

func newAuthAccountCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show the signed-in Google account and primary calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := newCommandContext(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sc.Shutdown() }()

			account, err := sc.Account(cmd.Context())
			if err != nil {
				return errors.New(calendar.UserMessage(err))
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSONOutput(out, account)
			}
			fmt.Fprintf(out, "Email: %s\n", account.Email)
			if account.Name != "" {
				fmt.Fprintf(out, "Name: %s\n", account.Name)
			}
			fmt.Fprintf(out, "Calendar: %s\n", account.CalendarName)
			if account.TimeZone != "" {
				fmt.Fprintf(out, "Time zone: %s\n", account.TimeZone)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the account as JSON")
	return cmd
}

func writeJSONOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
