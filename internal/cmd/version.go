package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/anaconda-cli/internal/output"
	"github.com/salmonumbrella/anaconda-cli/internal/update"
	"github.com/salmonumbrella/anaconda-cli/internal/version"
)

func newVersionCmd(app *App) *cobra.Command {
	var checkFlag bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show CLI version information",
		Long: `Show the CLI version, commit, and build time.

--check also asks the release feed whether a newer version exists. The
subcommands compare and sort conda-style version strings: numeric segments
compare numerically, alphabetic ones lexically, and a shorter version that
is a prefix of a longer one sorts first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			result := map[string]interface{}{
				"version": app.Version,
				"commit":  app.Commit,
				"built":   app.BuildTime,
			}

			if checkFlag {
				msg, err := update.CheckWithOptions(ctx, app.Version)
				if err != nil {
					return fmt.Errorf("update check failed: %w", err)
				}
				result["update_available"] = msg != ""
				if msg != "" {
					result["update"] = msg
				}
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, result)
		},
	}
	cmd.Flags().BoolVar(&checkFlag, "check", false, "Check the release feed for a newer version")

	cmd.AddCommand(newVersionCompareCmd())
	cmd.AddCommand(newVersionSortCmd())

	return cmd
}

func newVersionCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare A B",
		Short: "Compare two version strings",
		Long: `Compare two conda-style version strings and print their ordering.

Exit code 0 regardless of ordering; the relation is in the output.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			left, right := args[0], args[1]

			relation := "="
			switch version.Compare(left, right) {
			case -1:
				relation = "<"
			case 1:
				relation = ">"
			}

			if output.FormatFromContext(ctx) == output.FormatText {
				_, _ = fmt.Fprintf(stdoutFromContext(ctx), "%s %s %s\n", left, relation, right)
				return nil
			}
			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"left":     left,
				"right":    right,
				"relation": relation,
			})
		},
	}
}

func newVersionSortCmd() *cobra.Command {
	var uniqueFlag bool

	cmd := &cobra.Command{
		Use:   "sort [FILE]",
		Short: "Sort version strings",
		Long: `Sort whitespace-separated version strings from a file or stdin.

Use the global --desc flag for descending order and --unique to drop
duplicates.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var raw string
			if len(args) == 1 && args[0] != "-" {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read %q: %w", args[0], err)
				}
				raw = string(data)
			} else {
				data, err := io.ReadAll(stdinFromContext(ctx))
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				raw = string(data)
			}

			values := strings.Fields(raw)

			var opts []version.SortOption
			if desc, ok := commandBoolFlagValue(cmd, "desc"); ok && desc {
				opts = append(opts, version.Descending())
			}
			if uniqueFlag {
				opts = append(opts, version.Unique())
			}
			sorted := version.Sort(values, opts...)

			if output.FormatFromContext(ctx) == output.FormatText {
				stdout := stdoutFromContext(ctx)
				for _, v := range sorted {
					_, _ = fmt.Fprintln(stdout, v)
				}
				return nil
			}
			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"items": sorted,
			})
		},
	}
	cmd.Flags().BoolVar(&uniqueFlag, "unique", false, "Drop duplicate versions")

	return cmd
}
