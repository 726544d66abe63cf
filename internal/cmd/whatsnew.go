package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/anaconda-cli/internal/auth"
	"github.com/salmonumbrella/anaconda-cli/internal/config"
	"github.com/salmonumbrella/anaconda-cli/internal/updates"
)

func newWhatsNewCmd(app *App) *cobra.Command {
	var (
		unseenOnly bool
		markSeen   bool
	)

	cmd := &cobra.Command{
		Use:   "whats-new",
		Short: "Show product announcements",
		Long: `Fetch the "what's new" announcement feed.

The feed endpoint selects announcements based on an anonymous state blob;
server-provided state is persisted in the config file and echoed on the
next fetch. --unseen-only hides announcements shown before, --mark-seen
records the current feed as shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg := ConfigFromContext(ctx)
			if cfg == nil {
				loaded, err := config.Load()
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Accounts are only used server-side for selection; missing
			// keyring access just means an empty list.
			accounts, _ := auth.ListDomains()
			if accounts == nil {
				accounts = []string{}
			}

			state := updates.ClientState{
				Accounts:         accounts,
				NavigatorVersion: app.Version,
				State: updates.State{
					CloudLoginPopupState: cfg.WhatsNew.CloudLoginPopupState,
					CloudLoginPopupTS:    cfg.WhatsNew.CloudLoginPopupTS,
				},
			}

			feed := updates.NewClient(cfg.GetUpdatesURL())
			selection, err := feed.Fetch(ctx, state)
			if err != nil {
				return fmt.Errorf("failed to fetch announcements: %w", err)
			}

			configDirty := false
			if selection.State != nil {
				cfg.WhatsNew.CloudLoginPopupState = selection.State.CloudLoginPopupState
				cfg.WhatsNew.CloudLoginPopupTS = selection.State.CloudLoginPopupTS
				configDirty = true
			}

			shown := selection.Updates
			unseen, newSeen := updates.FilterSeen(selection.Updates, cfg.WhatsNew.Seen)
			if unseenOnly {
				shown = unseen
			}

			if markSeen {
				seen := newSeen
				for _, u := range unseen {
					seen = append(seen, u.ID)
				}
				sort.Strings(seen)
				cfg.WhatsNew.Seen = seen
				configDirty = true
			} else if len(newSeen) != len(cfg.WhatsNew.Seen) {
				// Prune seen IDs that left the feed.
				cfg.WhatsNew.Seen = newSeen
				configDirty = true
			}

			if configDirty {
				// Re-read the file so environment overrides applied to
				// cfg are not written to disk alongside the feed state.
				fileCfg, err := config.LoadFile()
				if err != nil {
					return fmt.Errorf("failed to persist feed state: %w", err)
				}
				fileCfg.WhatsNew = cfg.WhatsNew
				if err := fileCfg.Save(); err != nil {
					return fmt.Errorf("failed to persist feed state: %w", err)
				}
			}

			if shown == nil {
				shown = []updates.Update{}
			}
			printer := printerForContext(ctx)
			return printer.Print(ctx, map[string]interface{}{
				"items": shown,
			})
		},
	}
	cmd.Flags().BoolVar(&unseenOnly, "unseen-only", false, "Only show announcements not shown before")
	cmd.Flags().BoolVar(&markSeen, "mark-seen", false, "Record the current feed as shown")

	return cmd
}
