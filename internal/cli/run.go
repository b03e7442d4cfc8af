package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/voltr/surge/internal/agent"
	"github.com/voltr/surge/internal/config"
)

func newRunCmd() *cobra.Command {
	var (
		networkFlag  string
		providerFlag string
		modelFlag    string
	)

	cmd := &cobra.Command{
		Use:   "run -- <prompt>",
		Short: "Run a single agent turn with a custom prompt",
		Long: `Run the agent loop once with the given prompt and exit.

The run uses the same tools and confirmation gate as the daemon, so
state-changing actions still block on confirmation at this terminal.`,
		Example: `  surge run -- "How is my channel liquidity distributed?"
  surge run -- "Propose channel opens for my spare balance"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")

			rt, err := buildRuntime(configPath, func(cfg *config.Config) {
				if cmd.Flags().Changed("network") {
					cfg.Agent.Network = networkFlag
				}
				if cmd.Flags().Changed("provider") {
					cfg.Model.Provider = providerFlag
				}
				if cmd.Flags().Changed("model") {
					cfg.Model.Name = modelFlag
				}
			})
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			outcome, err := rt.orchestrator.Run(ctx, prompt)
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Printf("  Model turns: %d\n", outcome.ModelTurns)
			fmt.Printf("  Tokens used: %d\n", outcome.TokensUsed)

			if outcome.State == agent.StateFailed {
				return fmt.Errorf("run failed: %s", outcome.Reason)
			}
			color.New(color.FgGreen, color.Bold).Println("Run complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&networkFlag, "network", "mainnet", "Lightning network (mainnet|testnet|regtest)")
	cmd.Flags().StringVar(&providerFlag, "provider", "gemini", "Model provider (gemini|openai|anthropic|ollama)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Model name")

	return cmd
}
