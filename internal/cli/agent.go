package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voltr/surge/internal/agent"
	"github.com/voltr/surge/internal/apiserver"
	"github.com/voltr/surge/internal/config"
)

func newAgentCmd() *cobra.Command {
	var (
		port         int
		host         string
		tickSeconds  int
		networkFlag  string
		dataDir      string
		providerFlag string
		modelFlag    string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the Lightning agent daemon",
		Long: `Start the agent loop and its read-only HTTP API.

The agent assesses the node on a fixed tick interval and acts through
its tools. State-changing actions block on confirmation at this
terminal. Type a message between ticks to steer the next run, or
"exit" to stop.`,
		Example: `  surge agent
  surge agent --config surge.yaml
  surge agent --tick 300 --network testnet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// CLI flags override file configuration.
			rt, err := buildRuntime(configPath, func(cfg *config.Config) {
				if cmd.Flags().Changed("port") {
					cfg.Server.Port = port
				}
				if cmd.Flags().Changed("host") {
					cfg.Server.Host = host
				}
				if cmd.Flags().Changed("tick") {
					cfg.Agent.TickIntervalSeconds = tickSeconds
				}
				if cmd.Flags().Changed("network") {
					cfg.Agent.Network = networkFlag
				}
				if cmd.Flags().Changed("data-dir") {
					cfg.Agent.DataDir = dataDir
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
			cfg := rt.cfg

			daemon := agent.NewDaemon(rt.orchestrator, rt.console, cfg.TickInterval(), rt.logger)

			addr := cfg.ServerAddress()
			apiSrv := apiserver.NewServer(addr, rt.orchestrator, rt.gate, rt.registry, cfg.Agent.Network, rt.logger)

			banner := color.New(color.FgCyan, color.Bold)
			banner.Println("Surge Lightning Agent")
			fmt.Printf("   Network:   %s\n", cfg.Agent.Network)
			fmt.Printf("   Model:     %s/%s\n", cfg.Model.Provider, cfg.Model.Name)
			fmt.Printf("   API:       http://%s\n", addr)
			fmt.Printf("   Turn log:  %s\n", cfg.TurnLogPath())
			if rt.replayed > 0 {
				fmt.Printf("   Replayed:  %d turns\n", rt.replayed)
			}
			fmt.Println()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			errCh := make(chan error, 2)
			go func() {
				if err := apiSrv.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()
			go func() {
				errCh <- daemon.Run(ctx)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				rt.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			case err := <-errCh:
				switch {
				case err == nil || errors.Is(err, context.Canceled):
					rt.logger.Info("agent daemon stopped")
				default:
					rt.logger.Error("agent error", zap.Error(err))
					shutdownAPI(apiSrv, rt.logger)
					return err
				}
			}

			// Graceful shutdown with a 10-second deadline.
			fmt.Println()
			rt.logger.Info("shutting down gracefully...")
			cancel()
			shutdownAPI(apiSrv, rt.logger)
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 7227, "API server port")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "API server host")
	cmd.Flags().IntVar(&tickSeconds, "tick", 600, "Seconds between unattended assessments")
	cmd.Flags().StringVar(&networkFlag, "network", "mainnet", "Lightning network (mainnet|testnet|regtest)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Turn log directory")
	cmd.Flags().StringVar(&providerFlag, "provider", "gemini", "Model provider (gemini|openai|anthropic|ollama)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Model name")

	return cmd
}

func shutdownAPI(srv *apiserver.Server, logger *zap.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", zap.Error(err))
	}
}
