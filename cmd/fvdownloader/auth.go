package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fvdownloader/pkg/auth"
	"fvdownloader/pkg/config"
	"fvdownloader/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the FirstView session cookie",
	Long: `Store, inspect and remove the FirstView session cookie.

The cookie is kept in:
  - the system keychain, when one is available
  - otherwise an AES-GCM encrypted file in the user config directory

FVDOWNLOADER_SESSION_COOKIE overrides whatever is stored.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a session cookie",
	Long: `Prompt for the session cookie copied from a logged-in browser and
store it securely. Input is not echoed.`,
	Example: `  fvdownloader auth login
  fvdownloader auth login --profile work`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session cookie",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which session cookie would be used",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.PersistentFlags().StringVar(&profile, "profile", auth.DefaultProfile, "session profile")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return usageError(err)
	}

	manager, err := auth.NewManager()
	if err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("failed to initialize credential store: %w", err)}
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	auth.PrintCookieGuide(ui.Output, cfg.FirstView.BaseURL, cfg.FirstView.CookieName)
	fmt.Fprintln(ui.Output)

	if existing, _, err := manager.Load(profile); err == nil {
		fmt.Fprintf(ui.Output, "A session for %q is already stored (%s). Replace it? (y/N): ", profile, auth.Mask(existing.Value))
		answer, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			return nil
		}
	}

	fmt.Fprintf(ui.Output, "%s cookie value: ", cfg.FirstView.CookieName)
	value, err := readSecret(reader)
	if err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("failed to read cookie: %w", err)}
	}
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, " ;\t") {
		return usageError(errors.New("that does not look like a cookie value"))
	}

	backend, err := manager.Save(&auth.Session{
		Profile:    profile,
		CookieName: cfg.FirstView.CookieName,
		Value:      value,
	})
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	ui.PrintSuccess(fmt.Sprintf("Session %q stored in %s", profile, backend))
	if os.Getenv(auth.EnvSessionCookie) != "" {
		ui.PrintWarning(auth.EnvSessionCookie + " is set and takes precedence over the stored session")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("failed to initialize credential store: %w", err)}
	}

	if err := manager.Delete(profile); err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			ui.PrintWarning(fmt.Sprintf("No stored session for %q", profile))
			return nil
		}
		return &exitError{code: exitFailure, err: err}
	}

	ui.PrintSuccess(fmt.Sprintf("Session %q removed", profile))
	if os.Getenv(auth.EnvSessionCookie) != "" {
		ui.PrintWarning(auth.EnvSessionCookie + " is still set in the environment")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("failed to initialize credential store: %w", err)}
	}

	ui.PrintInfo("Backends", strings.Join(manager.Backends(), ", "))

	session, backend, err := manager.Load(profile)
	if err != nil {
		ui.PrintInfo("Session", "none, downloads run without a login")
		return nil
	}

	ui.PrintInfo("Profile", session.Profile)
	ui.PrintInfo("Source", backend)
	if session.CookieName != "" {
		ui.PrintInfo("Cookie", session.CookieName)
	}
	ui.PrintInfo("Value", auth.Mask(session.Value))
	if backend != "environment" && !session.LastModified.IsZero() {
		ui.PrintInfo("Stored", session.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(fallback *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Output)
		if err == nil {
			return string(secret), nil
		}
	}
	line, err := fallback.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		return line, nil
	}
	return line, err
}
