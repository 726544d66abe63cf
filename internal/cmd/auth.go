package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/anaconda-cli/internal/auth"
	"github.com/salmonumbrella/anaconda-cli/internal/config"
	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
	"github.com/salmonumbrella/anaconda-cli/internal/login"
)

// noBrowserEnvVar suppresses auto-opening the browser during login, for
// remote shells and CI.
const noBrowserEnvVar = "ANC_NO_BROWSER"

func newAuthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Anaconda Cloud credentials",
		Long: `Sign in and out of Anaconda Cloud and inspect the stored credentials.

Credentials live in the system keyring (Keychain, SecretService, WinCred;
encrypted file on headless systems) under the API domain they belong to.
The ` + auth.EnvVarName + ` environment variable overrides the keyring.`,
	}

	cmd.AddCommand(newAuthLoginCmd(app))
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

type loginFlags struct {
	basic       bool
	force       bool
	noSSLVerify bool
	noBrowser   bool
}

func registerLoginFlags(cmd *cobra.Command, flags *loginFlags) {
	cmd.Flags().BoolVar(&flags.basic, "basic", false, "Sign in with username and password (deprecated; prefer the browser flow)")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Sign in even when stored credentials are still valid")
	cmd.Flags().BoolVar(&flags.noSSLVerify, "no-ssl-verify", false, "Disable TLS certificate verification during login")
	cmd.Flags().BoolVar(&flags.noBrowser, "no-browser", false, "Do not auto-open the browser; print the auth URL instead")
}

func newAuthLoginCmd(app *App) *cobra.Command {
	var flags loginFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Anaconda Cloud",
		Long: `Sign in to Anaconda Cloud.

The default flow opens the browser for an OAuth authorization code exchange
(PKCE) and stores the resulting API key in the system keyring. When valid
credentials are already stored, nothing runs unless --force is given.

--basic prompts for a username and password instead. The password grant is
deprecated and will be removed; prefer the browser flow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), app, flags)
		},
	}
	registerLoginFlags(cmd, &flags)

	return cmd
}

func runLogin(ctx context.Context, app *App, flags loginFlags) error {
	opts, err := identityOptions(ctx)
	if err != nil {
		return err
	}
	opts.ClientVersion = app.Version
	opts.Basic = flags.basic
	opts.Force = flags.force
	opts.Output = stderrFromContext(ctx)
	if flags.noSSLVerify {
		opts.InsecureSkipVerify = true
	}
	if flags.noBrowser || envTruthy(os.Getenv(noBrowserEnvVar)) {
		stderr := stderrFromContext(ctx)
		opts.OpenBrowser = func(authURL string) error {
			_, _ = fmt.Fprintf(stderr, "Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
			return nil
		}
	}

	result, err := login.Login(ctx, opts)
	if err != nil {
		return err
	}

	printer := printerForContext(ctx)
	if result.Reused {
		return printer.Print(ctx, map[string]interface{}{
			"status":  "success",
			"message": "Already signed in; use --force to sign in again",
			"domain":  result.Domain,
		})
	}

	payload := map[string]interface{}{
		"status":  "success",
		"message": "Signed in successfully",
		"domain":  result.Domain,
	}

	// Best-effort identity lookup so the confirmation names the account.
	if c, err := clientFromContext(ctx); err == nil {
		if name, err := c.Name(ctx); err == nil {
			payload["user"] = name
			_, _ = fmt.Fprintf(stderrFromContext(ctx), "Signed in as %s\n", name)
		}
	}

	return printer.Print(ctx, payload)
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long:  `Remove the stored Anaconda Cloud credentials from the system keyring.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context())
		},
	}
}

func runLogout(ctx context.Context) error {
	if err := login.Logout(effectiveDomain(ctx)); err != nil {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	printer := printerForContext(ctx)
	return printer.Print(ctx, map[string]interface{}{
		"status":  "success",
		"message": "Logged out successfully",
	})
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long: `Show whether credentials are stored, where they come from, and how old
the API key is. Does not call the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			domain := effectiveDomain(ctx)
			printer := printerForContext(ctx)

			info, source, err := credentialInfo(domain)
			if err != nil {
				return printer.Print(ctx, map[string]interface{}{
					"authenticated": false,
					"domain":        domain,
					"message":       "Not signed in. Run 'anc login' to sign in.",
				})
			}

			result := map[string]interface{}{
				"authenticated": !info.Expired(),
				"domain":        domain,
				"key_source":    source,
			}
			if info.Username != "" {
				result["user"] = info.Username
			}
			if issued, ok := info.IssuedAt(); ok {
				result["key_issued_at"] = issued.Format(time.RFC3339)
				result["key_age_days"] = auth.TokenAgeDays(issued)
				result["key_age"] = auth.FormatTokenAge(issued)
			}
			if exp, ok := info.ExpiresAt(); ok {
				result["key_expires_at"] = exp.Format(time.RFC3339)
			}
			if info.Expired() {
				result["warning"] = "API key has expired; run 'anc login' to sign in again"
			} else if info.ExpiringSoon() {
				result["warning"] = "API key expires soon; run 'anc login --force' to replace it"
			}

			return printer.Print(ctx, result)
		},
	}
}

func runWhoami(ctx context.Context) error {
	domain := effectiveDomain(ctx)

	info, source, err := credentialInfo(domain)
	if err != nil {
		return err
	}

	c, err := clientFromContext(ctx)
	if err != nil {
		return err
	}
	name, err := c.Name(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account: %w", err)
	}
	email, err := c.Email(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account: %w", err)
	}

	result := map[string]interface{}{
		"name":       name,
		"email":      email,
		"domain":     domain,
		"key_source": source,
	}
	if issued, ok := info.IssuedAt(); ok {
		result["key_age"] = auth.FormatTokenAge(issued)
	}
	if exp, ok := info.ExpiresAt(); ok {
		result["key_expires_at"] = exp.Format(time.RFC3339)
		if info.ExpiringSoon() {
			result["warning"] = fmt.Sprintf("API key expires on %s", exp.Format("2006-01-02"))
		}
	}

	printer := printerForContext(ctx)
	return printer.Print(ctx, result)
}

// identityOptions builds the identity-service options shared by login and
// key verification from the loaded config.
func identityOptions(ctx context.Context) (login.Options, error) {
	cfg := ConfigFromContext(ctx)
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return login.Options{}, err
		}
		cfg = loaded
	}

	domain := DomainFromContext(ctx)
	if domain == "" {
		domain = cfg.GetDomain()
	}

	opts := login.Options{
		Domain:      domain,
		AuthDomain:  cfg.AuthDomain,
		ClientID:    cfg.GetClientID(),
		RedirectURI: cfg.GetRedirectURI(),
		AAUToken:    cfg.AAUToken,
	}
	if !cfg.GetSSLVerify() {
		opts.InsecureSkipVerify = true
	}
	return opts, nil
}

// credentialInfo resolves the stored credential and labels where it came
// from. Missing credentials surface as an auth error so callers exit with
// the auth status code.
func credentialInfo(domain string) (auth.TokenInfo, string, error) {
	if key := strings.TrimSpace(os.Getenv(auth.EnvVarName)); key != "" {
		return auth.TokenInfo{Domain: domain, APIKey: key}, fmt.Sprintf("environment (%s)", auth.EnvVarName), nil
	}
	info, err := auth.Load(domain)
	if err != nil {
		return auth.TokenInfo{}, "", clierrors.AuthRequiredError(err)
	}
	return info, "keyring", nil
}

func effectiveDomain(ctx context.Context) string {
	if d := DomainFromContext(ctx); d != "" {
		return d
	}
	if cfg := ConfigFromContext(ctx); cfg != nil {
		return cfg.GetDomain()
	}
	return config.DefaultDomain
}

// envTruthy mirrors conda's truthiness for env toggles.
func envTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on", "y":
		return true
	default:
		return false
	}
}
