package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agent status",
		Long:  "Display the running agent's loop state, transcript size and token usage.",
		Example: `  surge status
  surge status --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return statusWatch()
			}
			return statusPrint()
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Continuously refresh (every 5 seconds)")

	return cmd
}

func statusPrint() error {
	if err := apiClient.Healthz(); err != nil {
		color.New(color.FgRed, color.Bold).Println("Agent unreachable")
		fmt.Printf("  %v\n", err)
		fmt.Println()
		fmt.Println("Start it with: surge agent")
		return err
	}

	st, err := apiClient.GetStatus()
	if err != nil {
		return err
	}

	color.New(color.FgCyan, color.Bold).Println("Surge Agent")
	fmt.Printf("  Network:  %s\n", st.Network)
	fmt.Printf("  State:    %s\n", stateColored(st.State))
	fmt.Printf("  Turns:    %d\n", st.Turns)
	fmt.Printf("  Tokens:   %d\n", st.TokensUsed)
	fmt.Printf("  Uptime:   %s\n", (time.Duration(st.UptimeSeconds) * time.Second).String())

	conf, err := apiClient.GetConfirmations()
	if err != nil {
		return err
	}
	if conf.Pending != "" {
		fmt.Println()
		color.New(color.FgYellow, color.Bold).Println("Confirmation pending:")
		fmt.Printf("  %s\n", conf.Pending)
	}

	return nil
}

func statusWatch() error {
	for {
		// ANSI clear screen and home cursor.
		fmt.Print("\033[2J\033[H")
		if err := statusPrint(); err != nil {
			return err
		}
		fmt.Println()
		fmt.Println("Refreshing every 5s. Ctrl+C to stop.")
		time.Sleep(5 * time.Second)
	}
}

func stateColored(state string) string {
	switch state {
	case "AwaitingModel", "ProcessingToolCalls":
		return color.GreenString(state)
	case "Failed":
		return color.RedString(state)
	case "Done":
		return color.CyanString(state)
	default:
		return state
	}
}
