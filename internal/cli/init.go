package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const configTemplate = `agent:
  network: %s
  maxTurns: 16
  modelRetries: 3
  tickIntervalSeconds: 600
  # dataDir: ~/.surge/data

model:
  provider: gemini
  name: gemini-2.5-flash

gate:
  timeoutSeconds: 120

lnd:
  # Taken from LND_REST_URL, LND_TLS_CERT_PATH and
  # LND_ADMIN_MACAROON_PATH when left empty.
  restUrl: ""
  tlsCertPath: ""
  macaroonPath: ""

mempool:
  baseUrl: https://mempool.space/api

analysis:
  # Optional scored-node availability feed.
  availabilityUrl: ""

docs:
  dir: docs

log:
  level: info
  format: console
`

func newInitCmd() *cobra.Command {
	var (
		networkFlag string
		outputFile  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Create a surge.yaml template in the current directory.

The template lists every setting with its default so you can adjust
the node connection, model and tick interval before starting the agent.`,
		Example: `  surge init
  surge init --network testnet
  surge init --output-file surge-test.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			content := fmt.Sprintf(configTemplate, networkFlag)
			outputPath := filepath.Join(cwd, outputFile)

			// Check if file already exists.
			if _, err := os.Stat(outputPath); err == nil {
				return fmt.Errorf("file %s already exists. Use a different name with --output-file", outputFile)
			}

			if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}

			bold := color.New(color.FgCyan, color.Bold)
			bold.Println("Surge configuration written!")
			fmt.Println()
			fmt.Printf("  Config:  %s\n", outputPath)
			fmt.Printf("  Network: %s\n", networkFlag)
			fmt.Println()

			color.New(color.Bold).Println("Next steps:")
			fmt.Println("  1. Point it at your node:")
			fmt.Println("     export LND_REST_URL=https://127.0.0.1:8080")
			fmt.Println("     export LND_TLS_CERT_PATH=~/.lnd/tls.cert")
			fmt.Println("     export LND_ADMIN_MACAROON_PATH=~/.lnd/data/chain/bitcoin/mainnet/admin.macaroon")
			fmt.Println()
			fmt.Println("  2. Set your model API key (e.g. GEMINI_API_KEY).")
			fmt.Println()
			fmt.Println("  3. Start the agent:")
			fmt.Printf("     surge agent --config %s\n", outputFile)
			fmt.Println()
			fmt.Println("  4. Watch it work:")
			fmt.Println("     surge watch")

			return nil
		},
	}

	cmd.Flags().StringVar(&networkFlag, "network", "mainnet", "Lightning network (mainnet|testnet|regtest)")
	cmd.Flags().StringVar(&outputFile, "output-file", "surge.yaml", "Output config filename")

	return cmd
}
