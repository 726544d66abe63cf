package cmd

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/salmonumbrella/anaconda-cli/internal/auth"
	"github.com/salmonumbrella/anaconda-cli/internal/config"
	"github.com/salmonumbrella/anaconda-cli/internal/logging"
	"github.com/salmonumbrella/anaconda-cli/internal/ui"
)

//go:embed help.txt
var rootHelpText string

func newRootCmd(app *App) *cobra.Command {
	// Global flags
	var (
		debugMode     bool
		domainFlag    string
		queryFlag     string
		jqFlag        string
		fieldsFlag    string
		pickFlag      string
		jsonPathFlag  string
		queryFile     string
		errorFormat   string
		quietFlag     bool
		failEmptyFlag bool
		compactJSON   bool
		noColorFlag   bool
		timeoutFlag   time.Duration

		// Agent-friendly flags
		yesFlag         bool
		limitFlag       int
		sortBy          string
		descFlag        bool
		resultsOnlyFlag bool
	)

	rootCmd := &cobra.Command{
		Use:   "anc",
		Short: "CLI for Anaconda Cloud",
		Long:  `A command-line interface for Anaconda Cloud accounts, API keys, and conda repo tokens`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Ensure Cobra doesn't emit its own error/usage text; we handle error output centrally.
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			// Configure slog based on debug flag
			logging.Setup(debugMode, app.Stderr)

			// Load config file (skip for config commands to avoid recursion)
			var cfg *config.Config
			if cmd.Name() != "config" && (cmd.Parent() == nil || cmd.Parent().Name() != "config") {
				loadedCfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				cfg = loadedCfg
			} else {
				cfg = &config.Config{}
			}

			opts, err := parseGlobalOptions(cmd, cfg, app.Stdout, globalFlagInput{
				domainFlag:      domainFlag,
				queryFlag:       queryFlag,
				jqFlag:          jqFlag,
				fieldsFlag:      fieldsFlag,
				pickFlag:        pickFlag,
				jsonPathFlag:    jsonPathFlag,
				quietFlag:       quietFlag,
				failEmptyFlag:   failEmptyFlag,
				compactJSON:     compactJSON,
				noColorFlag:     noColorFlag,
				timeoutFlag:     timeoutFlag,
				yesFlag:         yesFlag,
				limitFlag:       limitFlag,
				sortBy:          sortBy,
				descFlag:        descFlag,
				resultsOnlyFlag: resultsOnlyFlag,
				errorFormat:     errorFormat,
			})
			if err != nil {
				return err
			}
			if err := validateGlobalOptions(&opts); err != nil {
				return err
			}

			// Inject parsed global options into context so subcommands can access them.
			ctx := buildRootContext(cmd.Context(), app, cfg, debugMode, opts)
			if opts.queryNormalized && !opts.quiet {
				ui.FromContext(ctx).Warning("Normalized --query by removing \\! (shell escape); use ! without backslash.")
			}

			cmd.SetContext(ctx)

			// Check key expiry and warn (skip for auth and config commands)
			skipCommands := map[string]bool{"auth": true, "login": true, "logout": true, "config": true}
			if !skipCommands[cmd.Name()] && (cmd.Parent() == nil || !skipCommands[cmd.Parent().Name()]) {
				checkKeyExpiryAndWarn(ctx, opts.quiet)
			}

			// Suppress Cobra's default usage output when emitting structured errors.
			// We handle error printing ourselves to keep machine-readable output clean.
			if effectiveErrorFormat(ctx) != "text" {
				cmd.SilenceUsage = true
			}

			return nil
		},
	}

	// Set version info
	rootCmd.Version = app.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("anc %s (commit: %s, built: %s)\n", app.Version, app.Commit, app.BuildTime))

	// Global flags
	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format: text|json|ndjson|jsonl|table|yaml")
	// Alias --format to --output for agent discoverability
	rootCmd.PersistentFlags().String("format", "text", "Alias for --output")
	_ = rootCmd.PersistentFlags().MarkHidden("format")
	// Shorthand: --json is equivalent to -o json
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Shorthand for --output json")
	_ = rootCmd.PersistentFlags().MarkHidden("json")
	rootCmd.PersistentFlags().StringVarP(&queryFlag, "query", "q", "", "JQ expression to filter JSON output")
	// Alias --jq to --query for discoverability
	rootCmd.PersistentFlags().StringVar(&jqFlag, "jq", "", "Alias for --query")
	_ = rootCmd.PersistentFlags().MarkHidden("jq")
	rootCmd.PersistentFlags().StringVar(&fieldsFlag, "fields", "", "Project fields (comma-separated paths, use key=path to rename)")
	rootCmd.PersistentFlags().StringVar(&pickFlag, "pick", "", "Alias for --fields")
	_ = rootCmd.PersistentFlags().MarkHidden("pick")
	rootCmd.PersistentFlags().StringVar(&jsonPathFlag, "jsonpath", "", "Extract a value using JSONPath (e.g. $.items[0].id)")
	rootCmd.PersistentFlags().StringVar(&queryFile, "query-file", "", "Read JQ expression from file ('-' for stdin)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug output (shows HTTP requests/responses)")
	rootCmd.PersistentFlags().StringVar(&domainFlag, "domain", "", "API domain to target (overrides config and "+config.EnvAPIDomain+")")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 0, "HTTP request timeout, e.g. 30s or 2m (0 = default)")
	rootCmd.PersistentFlags().StringVar(&errorFormat, "error-format", "auto", "Error output format (auto|text|json)")
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored terminal output")
	rootCmd.PersistentFlags().BoolVar(&failEmptyFlag, "fail-empty", false, "Exit with error when results are empty")
	rootCmd.PersistentFlags().BoolVar(&compactJSON, "compact-json", false, "Output compact JSON (single-line) instead of pretty JSON")
	rootCmd.PersistentFlags().BoolVar(&resultsOnlyFlag, "items-only", false, "Output only the items/results array when present (JSON output)")
	rootCmd.PersistentFlags().BoolVar(&resultsOnlyFlag, "results-only", false, "Alias for --items-only")
	_ = rootCmd.PersistentFlags().MarkHidden("results-only")

	// Machine-readable help (hidden; intercepted in App.Execute before arg validation)
	rootCmd.PersistentFlags().Bool("help-json", false, "Output command help as JSON (for agent discovery)")
	_ = rootCmd.PersistentFlags().MarkHidden("help-json")

	// Agent-friendly flags
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.PersistentFlags().BoolVar(&yesFlag, "no-input", false, "Disable interactive prompts (alias for --yes)")
	_ = rootCmd.PersistentFlags().MarkHidden("no-input")
	rootCmd.PersistentFlags().IntVar(&limitFlag, "limit", 0, "Limit number of results (0 = no limit)")
	rootCmd.PersistentFlags().StringVar(&sortBy, "sort-by", "", "Sort results by field")
	rootCmd.PersistentFlags().BoolVar(&descFlag, "desc", false, "Sort in descending order")

	// Flag aliases for agent ergonomics
	// Note: "json" already has -j via BoolP; no need for flagAlias.
	flagAlias(rootCmd.PersistentFlags(), "output", "out")
	flagAlias(rootCmd.PersistentFlags(), "query", "qr")
	flagAlias(rootCmd.PersistentFlags(), "fields", "fds")
	flagAlias(rootCmd.PersistentFlags(), "results-only", "ro")
	flagAlias(rootCmd.PersistentFlags(), "items-only", "io")
	flagAlias(rootCmd.PersistentFlags(), "items-only", "i")
	flagAlias(rootCmd.PersistentFlags(), "fail-empty", "fe")
	flagAlias(rootCmd.PersistentFlags(), "sort-by", "sb")
	flagAlias(rootCmd.PersistentFlags(), "query-file", "qf")
	flagAlias(rootCmd.PersistentFlags(), "compact-json", "cj")
	flagAlias(rootCmd.PersistentFlags(), "domain", "dom")

	// Register subcommands
	rootCmd.AddCommand(newAuthCmd(app))
	rootCmd.AddCommand(newAPIKeyCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newAvatarCmd())
	rootCmd.AddCommand(newWhatsNewCmd(app))
	rootCmd.AddCommand(newVersionCmd(app))
	rootCmd.AddCommand(newVSCodeCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newAPICmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Top-level convenience commands (desire-path aliases)
	var loginOpts loginFlags
	loginAliasCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Anaconda Cloud (alias for 'auth login')",
		Long: `Sign in to Anaconda Cloud using the browser OAuth flow.

This is a convenience alias for 'anc auth login'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), app, loginOpts)
		},
	}
	registerLoginFlags(loginAliasCmd, &loginOpts)
	rootCmd.AddCommand(loginAliasCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials (alias for 'auth logout')",
		Long: `Remove the stored Anaconda Cloud credentials from the system keyring.

This is a convenience alias for 'anc auth logout'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Long: `Show the account associated with the stored API key, where the key
came from, and how close it is to expiry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context())
		},
	})

	// Canonical additive verb aliases for cross-CLI consistency.
	applyCanonicalVerbAliases(rootCmd)
	// Ensure every non-root command has at least one short alias (without sibling collisions).
	applyDefaultCommandAliases(rootCmd)
	// Add safe shorthand aliases (-x) to visible flags where possible.
	applyDefaultFlagShorthands(rootCmd)
	// Use a curated root help menu optimized for humans and agents.
	installRootHelp(rootCmd)

	return rootCmd
}

// checkKeyExpiryAndWarn warns on stderr when the stored API key has expired or
// is inside the expiry warning window. This is non-blocking.
func checkKeyExpiryAndWarn(ctx context.Context, quiet bool) {
	if quiet {
		return
	}
	// Only check keyring credentials (not env var keys)
	if os.Getenv(auth.EnvVarName) != "" {
		return
	}

	info, err := auth.Load(DomainFromContext(ctx))
	if err != nil {
		return
	}

	if info.Expired() {
		_, _ = fmt.Fprintln(stderrFromContext(ctx), "Warning: Your API key has expired. Run 'anc login' to sign in again.")
		return
	}
	if info.ExpiringSoon() {
		if exp, ok := info.ExpiresAt(); ok {
			_, _ = fmt.Fprintf(stderrFromContext(ctx), "Warning: Your API key expires on %s. Run 'anc login --force' to replace it.\n", exp.Format("2006-01-02"))
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func parseColorMode(value string) ui.ColorMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "always":
		return ui.ColorAlways
	case "never":
		return ui.ColorNever
	default:
		return ui.ColorAuto
	}
}

func installRootHelp(root *cobra.Command) {
	defaultHelp := root.HelpFunc()

	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}

		_, _ = fmt.Fprint(cmd.OutOrStdout(), rootHelpText)
	})
}
