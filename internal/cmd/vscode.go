package cmd

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/anaconda-cli/internal/vscode"
)

func newVSCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vscode",
		Short: "Configure VS Code for Anaconda environments",
	}

	cmd.AddCommand(newVSCodeConfigureCmd())
	cmd.AddCommand(newVSCodeInstallExtensionCmd())

	return cmd
}

func newVSCodeConfigureCmd() *cobra.Command {
	var (
		pythonPath   string
		condaPath    string
		settingsPath string
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Point VS Code at an Anaconda Python environment",
		Long: `Merge interpreter settings into the VS Code user settings file.

The existing file is backed up first (timestamped, newest ten kept), so a
broken settings file never loses data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if settingsPath == "" {
				path, err := vscode.DefaultSettingsPath()
				if err != nil {
					return fmt.Errorf("cannot locate VS Code settings: %w", err)
				}
				settingsPath = path
			}

			values := vscode.PythonSettings(pythonPath, condaPath)
			if err := vscode.UpdateSettings(settingsPath, values); err != nil {
				return fmt.Errorf("failed to update settings: %w", err)
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"status":   "success",
				"message":  fmt.Sprintf("Updated %s", settingsPath),
				"settings": values,
			})
		},
	}
	cmd.Flags().StringVar(&pythonPath, "python", "", "Path to the Python interpreter (required)")
	cmd.Flags().StringVar(&condaPath, "conda", "", "Path to the conda binary")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "Settings file to update (default: the VS Code user settings)")
	_ = cmd.MarkFlagRequired("python")

	return cmd
}

func newVSCodeInstallExtensionCmd() *cobra.Command {
	var binary string

	cmd := &cobra.Command{
		Use:   "install-extension",
		Short: "Install the VS Code Python extension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			argv := vscode.InstallExtensionArgs(binary)
			run := exec.CommandContext(ctx, argv[0], argv[1:]...)
			run.Stdout = stderrFromContext(ctx)
			run.Stderr = stderrFromContext(ctx)
			if err := run.Run(); err != nil {
				return fmt.Errorf("failed to install extension: %w", err)
			}

			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"status":  "success",
				"message": "Python extension installed",
			})
		},
	}
	cmd.Flags().StringVar(&binary, "binary", "code", "VS Code binary to invoke")

	return cmd
}
