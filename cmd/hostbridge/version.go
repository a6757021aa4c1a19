package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/cryguy/hostbridge"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and engine information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := hostbridge.NewEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		goVersion := "unknown"
		if info, ok := debug.ReadBuildInfo(); ok {
			goVersion = info.GoVersion
		}
		fmt.Fprintf(cmd.OutOrStdout(), "hostbridge %s (engine %s, %s)\n", version, e.Backend(), goVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
