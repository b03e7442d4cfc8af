package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the agent's registered tools",
		Long:  "List every tool the running agent can call, in registration order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := apiClient.ListTools()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tDESCRIPTION")
			for _, t := range tools {
				kind := t.Kind
				if kind == "state-changing" {
					kind = color.RedString(kind)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, kind, t.Description)
			}
			return w.Flush()
		},
	}

	return cmd
}
