package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/anaconda-cli/internal/auth"
	"github.com/salmonumbrella/anaconda-cli/internal/batch"
	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
	"github.com/salmonumbrella/anaconda-cli/internal/repotoken"
	"github.com/salmonumbrella/anaconda-cli/internal/validate"
)

// repoBaseURLEnvVar overrides the channel origin, mirroring the API base
// override used by tests and proxies.
const repoBaseURLEnvVar = "ANACONDA_CLOUD_REPO_BASE_URL"

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage conda repo tokens",
		Long: `Manage the conda channel access tokens stored alongside the API key.

Repo tokens authorize downloads from premium conda channels. They are sent
as 'Authorization: token {value}' on /repo/ requests. A token installed
without --org applies to the default channels.`,
	}

	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenInstallCmd())
	cmd.AddCommand(newTokenUninstallCmd())
	cmd.AddCommand(newTokenVerifyCmd())

	return cmd
}

func newTokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed repo tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			info, err := auth.LoadStored(effectiveDomain(ctx))
			if err != nil {
				return clierrors.AuthRequiredError(err)
			}

			items := info.RepoTokens
			if items == nil {
				items = []auth.RepoToken{}
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"items": items,
			})
		},
	}
}

func newTokenInstallCmd() *cobra.Command {
	var (
		orgName     string
		filePath    string
		resultsPath string
	)

	cmd := &cobra.Command{
		Use:   "install [VALUE]",
		Short: "Install a repo token",
		Long: `Install a conda repo token into the keyring.

Single token:
  anc token install --org my-org SECRETVALUE
  anc token install SECRETVALUE             (default channels)

Bulk install from a JSON array or NDJSON file of
{"org_name": ..., "token": ...} objects:
  anc token install --file tokens.json [--results-file out.json]`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			domain := effectiveDomain(ctx)

			if filePath != "" {
				if len(args) > 0 || orgName != "" {
					return clierrors.NewUserError(
						"--file does not combine with a VALUE argument or --org",
						"Put org_name and token pairs in the file instead",
					)
				}
				return runTokenBulkInstall(ctx, domain, filePath, resultsPath)
			}

			if len(args) != 1 {
				return clierrors.NewUserError(
					"missing token VALUE",
					"Pass the token value as an argument, or use --file for bulk install",
				)
			}
			value := strings.TrimSpace(args[0])
			if value == "" {
				return &clierrors.ValidationError{Field: "token", Message: "token value is empty"}
			}
			if orgName != "" {
				if err := validate.OrgName("org", orgName); err != nil {
					return err
				}
			}

			info := loadOrInitTokenInfo(domain)
			info.SetRepoToken(orgName, value)
			if err := auth.Save(info); err != nil {
				return fmt.Errorf("failed to store repo token: %w", err)
			}

			target := "default channels"
			if orgName != "" {
				target = fmt.Sprintf("organization %q", orgName)
			}
			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"status":  "success",
				"message": fmt.Sprintf("Installed repo token for %s", target),
			})
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "Organization the token belongs to (empty = default channels)")
	cmd.Flags().StringVar(&filePath, "file", "", "Bulk install from a JSON array or NDJSON file")
	cmd.Flags().StringVar(&resultsPath, "results-file", "", "Write per-item bulk results to a JSON file")

	return cmd
}

func runTokenBulkInstall(ctx context.Context, domain, filePath, resultsPath string) error {
	items, err := batch.ReadItems(filePath)
	if err != nil {
		return clierrors.WrapUserError(err, "cannot read batch file", "Provide a JSON array or NDJSON file of {\"org_name\": ..., \"token\": ...} objects")
	}
	if len(items) == 0 {
		return clierrors.NewUserError("batch file contains no items", "")
	}

	info := loadOrInitTokenInfo(domain)

	results := make([]batch.Result, 0, len(items))
	installed := 0
	for i, item := range items {
		result := bulkInstallItem(&info, i, item)
		if result.Success {
			installed++
		}
		results = append(results, result)
	}

	if installed > 0 {
		if err := auth.Save(info); err != nil {
			return fmt.Errorf("failed to store repo tokens: %w", err)
		}
	}

	if resultsPath != "" {
		if err := batch.WriteResults(resultsPath, results); err != nil {
			return err
		}
	}

	printer := printerForContext(ctx)
	return printer.Print(ctx, map[string]interface{}{
		"items":     results,
		"installed": installed,
		"failed":    len(results) - installed,
	})
}

func newTokenUninstallCmd() *cobra.Command {
	var orgName string

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove an installed repo token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			domain := effectiveDomain(ctx)

			info, err := auth.LoadStored(domain)
			if err != nil {
				return clierrors.AuthRequiredError(err)
			}

			if !info.RemoveRepoToken(orgName) {
				target := "the default channels"
				if orgName != "" {
					target = fmt.Sprintf("organization %q", orgName)
				}
				return clierrors.NewUserError(
					fmt.Sprintf("no repo token installed for %s", target),
					"Run 'anc token list' to see installed tokens",
				)
			}
			if err := auth.Save(info); err != nil {
				return fmt.Errorf("failed to update stored tokens: %w", err)
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"status":  "success",
				"message": "Repo token removed",
			})
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "Organization whose token to remove (empty = default channels)")

	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	var orgName string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an installed repo token against the channel server",
		Long: `Request channel metadata with the installed repo token.

The request goes through the same transport conda traffic uses, so a
success here means conda installs will authenticate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			domain := effectiveDomain(ctx)

			channel := "main"
			if orgName != "" {
				if err := validate.OrgName("org", orgName); err != nil {
					return err
				}
				channel = orgName
			}

			base := strings.TrimSpace(os.Getenv(repoBaseURLEnvVar))
			if base == "" {
				base = "https://" + domain
			}
			target := fmt.Sprintf("%s/repo/%s/noarch/repodata.json", strings.TrimRight(base, "/"), channel)

			timeout := TimeoutFromContext(ctx)
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			httpClient := &http.Client{
				Transport: repotoken.NewTransport(nil),
				Timeout:   timeout,
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				// The transport already shapes missing and rejected
				// token errors; strip the client's URL wrapper.
				var uerr *url.Error
				if errors.As(err, &uerr) {
					return uerr.Err
				}
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode >= 400 {
				return clierrors.NewUserError(
					fmt.Sprintf("channel server answered %d for %q", resp.StatusCode, channel),
					"Run 'anc token install' to replace the token",
				)
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"status":  "success",
				"message": fmt.Sprintf("Repo token accepted for channel %q", channel),
				"channel": channel,
			})
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "Check the token for an organization channel")

	return cmd
}

// loadOrInitTokenInfo returns the stored TokenInfo for a domain, or a fresh
// one when nothing is stored yet. Repo tokens can be installed before the
// first login.
func loadOrInitTokenInfo(domain string) auth.TokenInfo {
	info, err := auth.LoadStored(domain)
	if err != nil {
		return auth.TokenInfo{Domain: domain}
	}
	return info
}

func bulkInstallItem(info *auth.TokenInfo, index int, item map[string]interface{}) batch.Result {
	result := batch.Result{Index: index, Input: item}

	org, _ := item["org_name"].(string)
	if org == "" {
		org, _ = item["org"].(string)
	}
	value, _ := item["token"].(string)

	if strings.TrimSpace(value) == "" {
		result.Error = "missing token value"
		return result
	}
	if org != "" {
		if err := validate.OrgName("org_name", org); err != nil {
			result.Error = err.Error()
			result.Org = org
			return result
		}
	}

	info.SetRepoToken(org, strings.TrimSpace(value))
	result.Success = true
	result.Org = org
	return result
}
