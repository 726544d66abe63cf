package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/salmonumbrella/anaconda-cli/internal/cmdutil"
	"github.com/salmonumbrella/anaconda-cli/internal/config"
	"github.com/salmonumbrella/anaconda-cli/internal/output"
	"github.com/salmonumbrella/anaconda-cli/internal/validate"
)

// configKeys lists the settable configuration keys in display order.
var configKeys = []string{
	"domain",
	"output",
	"color",
	"ssl_verify",
	"auth_domain",
	"client_id",
	"redirect_uri",
	"updates_url",
	"aau_token",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "Manage CLI configuration",
		Long:    `Manage the anc configuration file at ~/.config/anaconda-cli/config.yaml`,
	}
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a configuration value",
		Long: `Print the effective value of a configuration key.

Environment variables and built-in defaults are folded in, so the
output is the value the CLI actually uses, not just the file contents.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := stdoutFromContext(cmd.Context())
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var value string
			switch args[0] {
			case "domain":
				value = cfg.GetDomain()
			case "output":
				value = cfg.GetOutput()
			case "color":
				value = cfg.GetColor()
			case "ssl_verify":
				value = strconv.FormatBool(cfg.GetSSLVerify())
			case "auth_domain":
				value = cfg.GetAuthDomain()
			case "client_id":
				value = cfg.GetClientID()
			case "redirect_uri":
				value = cfg.GetRedirectURI()
			case "updates_url":
				value = cfg.GetUpdatesURL()
			case "aau_token":
				value = cfg.AAUToken
			default:
				return fmt.Errorf("unknown config key %q\n\nSupported keys: %s", args[0], strings.Join(configKeys, ", "))
			}

			_, _ = fmt.Fprintln(out, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in ~/.config/anaconda-cli/config.yaml

Supported keys:
  domain       - API domain (e.g. anaconda.cloud)
  output       - Default output format (text, json, ndjson/jsonl, table, yaml)
  color        - Default color mode (auto, always, never)
  ssl_verify   - Verify TLS certificates (true, false)
  auth_domain  - Identity service domain, when it differs from the API domain
  client_id    - OAuth client ID (UUID)
  redirect_uri - OAuth redirect URI for the local callback listener
  updates_url  - What's-new feed endpoint
  aau_token    - Anonymous analytics token sent during login

Examples:
  anc config set output json
  anc config set domain anaconda.cloud
  anc config set ssl_verify false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := stdoutFromContext(cmd.Context())
			key := args[0]
			value := args[1]

			// File-only load: environment overrides must not be
			// persisted as a side effect of setting one key.
			cfg, err := config.LoadFile()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			switch key {
			case "domain":
				normalized, err := cmdutil.NormalizeDomain(value)
				if err != nil {
					return err
				}
				cfg.Domain = normalized
				value = normalized
			case "output":
				format, err := output.ParseFormat(value)
				if err != nil {
					validFormats := []string{"text", "json", "ndjson", "jsonl", "table", "yaml"}
					return fmt.Errorf("invalid output format %q, must be one of: %s", value, strings.Join(validFormats, ", "))
				}
				cfg.Output = string(format)
				value = cfg.Output
			case "color":
				validModes := []string{"auto", "always", "never"}
				if !contains(validModes, value) {
					return fmt.Errorf("invalid color mode %q, must be one of: %s", value, strings.Join(validModes, ", "))
				}
				cfg.Color = value
			case "ssl_verify":
				verify, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("invalid ssl_verify value %q, must be true or false", value)
				}
				cfg.SSLVerify = &verify
				value = strconv.FormatBool(verify)
			case "auth_domain":
				normalized, err := cmdutil.NormalizeDomain(value)
				if err != nil {
					return err
				}
				cfg.AuthDomain = normalized
				value = normalized
			case "client_id":
				if err := validate.UUID("client_id", value); err != nil {
					return err
				}
				cfg.ClientID = value
			case "redirect_uri":
				if err := validate.URL("redirect_uri", value); err != nil {
					return err
				}
				cfg.RedirectURI = value
			case "updates_url":
				if err := validate.URL("updates_url", value); err != nil {
					return err
				}
				cfg.UpdatesURL = value
			case "aau_token":
				cfg.AAUToken = value
			default:
				return fmt.Errorf("unknown config key %q\n\nSupported keys: %s", key, strings.Join(configKeys, ", "))
			}

			if err := cfg.Save(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			path, _ := config.DefaultConfigPath()
			_, _ = fmt.Fprintf(out, "Set %s = %s in %s\n", key, value, path)
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"show"},
		Short:   "Display current configuration",
		Long:    `Display the configuration file contents as YAML`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := stdoutFromContext(cmd.Context())
			cfg, err := config.LoadFile()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to format config: %w", err)
			}

			// If config is empty, show a helpful message
			if len(data) == 0 || string(data) == "{}\n" {
				path, _ := config.DefaultConfigPath()
				_, _ = fmt.Fprintf(out, "No configuration file found at %s\n", path)
				_, _ = fmt.Fprintln(out, "\nTo create a config file, use:")
				_, _ = fmt.Fprintln(out, "  anc config set output json")
				return nil
			}

			_, _ = fmt.Fprint(out, string(data))
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := stdoutFromContext(cmd.Context())
			path, err := config.DefaultConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}

			_, _ = fmt.Fprintln(out, path)

			// Show if file exists
			if _, err := os.Stat(path); err == nil {
				_, _ = fmt.Fprintln(out, "(file exists)")
			} else if os.IsNotExist(err) {
				_, _ = fmt.Fprintln(out, "(file does not exist)")
			}

			return nil
		},
	}
}

// contains checks if a string slice contains a value
func contains(slice []string, value string) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}
