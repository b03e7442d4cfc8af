package cli

import (
	"github.com/spf13/cobra"

	"github.com/voltr/surge/pkg/client"
)

var (
	serverAddr string
	configPath string
	apiClient  *client.Client
)

// NewRootCmd creates the top-level surge CLI command with all subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surge",
		Short: "Autonomous Lightning node agent",
		Long: `Surge runs an LLM-driven agent against a Lightning Network node.
The agent observes the node through read-only tools and asks for human
confirmation before any action that moves funds or changes channels.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Skip client init for commands that don't talk to a running agent.
			name := cmd.Name()
			if name == "agent" || name == "run" || name == "init" {
				return
			}
			apiClient = client.New(serverAddr)
		},
	}

	cmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:7227", "Surge agent API address")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to surge.yaml (default: built-in defaults)")

	cmd.AddCommand(
		newAgentCmd(),
		newRunCmd(),
		newStatusCmd(),
		newToolsCmd(),
		newWatchCmd(),
		newInitCmd(),
	)

	return cmd
}
