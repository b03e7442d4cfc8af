package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltr/surge/internal/tui"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"ui", "top"},
		Short:   "Launch the interactive terminal UI",
		Long:    "Launch a terminal UI showing the live transcript, tool registry and pending confirmations.",
		Example: `  surge watch
  surge watch --server http://127.0.0.1:7227`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := tui.NewApp(serverAddr)
			if err := app.Run(); err != nil {
				return fmt.Errorf("UI error: %w", err)
			}
			return nil
		},
	}

	return cmd
}
