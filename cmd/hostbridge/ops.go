package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cryguy/hostbridge/internal/builtins"
	"github.com/cryguy/hostbridge/proxy"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the native operations available to scripts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, op := range builtins.New(proxy.NewTable()).Ops() {
			fmt.Fprintf(tw, "%s\t%s\n", op.Name, op.Usage)
		}
		fmt.Fprintf(tw, "%s\t%s\n", "print", "print(string) writes a line to stdout")
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(opsCmd)
}
