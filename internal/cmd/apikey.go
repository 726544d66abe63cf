package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
	"github.com/salmonumbrella/anaconda-cli/internal/login"
	"github.com/salmonumbrella/anaconda-cli/internal/output"
)

func newAPIKeyCmd() *cobra.Command {
	var verifyFlag bool

	cmd := &cobra.Command{
		Use:   "api-key",
		Short: "Print or manage API keys",
		Long: `Print the stored API key.

With --verify the key's signature is checked against the identity service's
published key set first; an invalid key fails the command instead of
printing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			info, _, err := credentialInfo(effectiveDomain(ctx))
			if err != nil {
				return err
			}
			key, err := info.GetAccessToken()
			if err != nil {
				return err
			}

			if verifyFlag {
				opts, err := identityOptions(ctx)
				if err != nil {
					return err
				}
				if _, err := login.VerifyAPIKey(ctx, key, opts); err != nil {
					return err
				}
			}

			// Bare key on stdout in text mode so it pipes cleanly.
			if output.FormatFromContext(ctx) == output.FormatText {
				_, _ = fmt.Fprintln(stdoutFromContext(ctx), key)
				return nil
			}
			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{"api_key": key})
		},
	}
	cmd.Flags().BoolVar(&verifyFlag, "verify", false, "Validate the key against the identity service before printing")

	cmd.AddCommand(newAPIKeyCreateCmd())
	cmd.AddCommand(newAPIKeyListCmd())
	cmd.AddCommand(newAPIKeyVerifyCmd())

	return cmd
}

func newAPIKeyCreateCmd() *cobra.Command {
	var (
		scopes []string
		tags   []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Create a new API key with the given scopes.

The key value is only returned at creation time and cannot be retrieved
again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := clientFromContext(ctx)
			if err != nil {
				return err
			}
			created, err := c.CreateAPIKey(ctx, scopes, tags)
			if err != nil {
				return fmt.Errorf("failed to create API key: %w", err)
			}

			if !output.QuietFromContext(ctx) {
				_, _ = fmt.Fprintln(stderrFromContext(ctx), "Store this key now; it cannot be retrieved again.")
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, created)
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{"cloud:read", "cloud:write"}, "Scopes granted to the key")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags attached to the key")

	return cmd
}

func newAPIKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the account's API keys",
		Long:  `List the account's provisioned API keys. Key values are never included.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := clientFromContext(ctx)
			if err != nil {
				return err
			}
			keys, err := c.APIKeys(ctx)
			if err != nil {
				return fmt.Errorf("failed to list API keys: %w", err)
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"items": keys,
			})
		},
	}
}

func newAPIKeyVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [KEY]",
		Short: "Verify an API key against the identity service",
		Long: `Verify an API key's signature against the identity service's published
key set and print its claims. Verifies the stored key when no KEY argument
is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			domain := effectiveDomain(ctx)

			var key string
			if len(args) == 1 {
				key = strings.TrimSpace(args[0])
			} else {
				info, _, err := credentialInfo(domain)
				if err != nil {
					return err
				}
				// Verify the raw stored key so an expired one reports
				// the precise validation failure.
				key = info.APIKey
			}
			if key == "" {
				return clierrors.AuthRequiredError(&clierrors.TokenNotFoundError{Domain: domain})
			}

			opts, err := identityOptions(ctx)
			if err != nil {
				return err
			}
			claims, err := login.VerifyAPIKey(ctx, key, opts)
			if err != nil {
				return err
			}

			result := map[string]interface{}{
				"valid":   true,
				"subject": claims.Subject,
				"issuer":  claims.Issuer,
			}
			if !claims.IssuedAt.IsZero() {
				result["issued_at"] = claims.IssuedAt.Format(time.RFC3339)
			}
			if !claims.ExpiresAt.IsZero() {
				result["expires_at"] = claims.ExpiresAt.Format(time.RFC3339)
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, result)
		},
	}
}
