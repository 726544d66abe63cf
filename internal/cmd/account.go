package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the full account record",
		Long:  `Fetch and print the signed-in account, including its profile fields.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := clientFromContext(ctx)
			if err != nil {
				return err
			}
			account, err := c.Account(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch account: %w", err)
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, account)
		},
	}
}

func newAvatarCmd() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "avatar",
		Short: "Download the account avatar",
		Long: `Download the account's avatar image to a file.

Accounts without an avatar write no file; a notice goes to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := clientFromContext(ctx)
			if err != nil {
				return err
			}
			data, err := c.Avatar(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch avatar: %w", err)
			}
			if data == nil {
				_, _ = fmt.Fprintln(stderrFromContext(ctx), "Account has no avatar image.")
				return nil
			}

			if err := os.WriteFile(filePath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write avatar: %w", err)
			}
			_, _ = fmt.Fprintf(stderrFromContext(ctx), "Wrote %s (%d bytes)\n", filePath, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "avatar.png", "Destination file for the avatar image")

	return cmd
}
