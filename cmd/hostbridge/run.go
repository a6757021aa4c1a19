package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryguy/hostbridge"
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/internal/builtins"
	"github.com/cryguy/hostbridge/internal/script"
	"github.com/cryguy/hostbridge/marshal"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a script and wait for its tasks",
	Long: `Run a JavaScript or TypeScript file with the reference operations installed.

Code can be provided via:
  - File argument: hostbridge run script.js
  - Inline flag:   hostbridge run -c 'print(u256Add("1", 2))'
  - Stdin:         echo 'print(1)' | hostbridge run

The completion value of the script is printed unless it is undefined.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("code", "c", "", "Code to execute")
	runCmd.Flags().Bool("transform", false, "Lower modern syntax with esbuild before running")
	runCmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout for the script and each callback")
	runCmd.Flags().Duration("drain", 60*time.Second, "How long to wait for pending tasks")
	runCmd.Flags().Int("workers", 8, "Concurrent task bodies in pool mode")
	runCmd.Flags().String("mode", "pool", "Task mode: pool or spawn")
	runCmd.Flags().Int("memory-mb", 128, "Runtime heap limit in MB (0 for the engine default)")
	rootCmd.AddCommand(runCmd)
}

// consoleJS routes console output through the native print function.
const consoleJS = `globalThis.console = {
	log: function() { print(Array.prototype.map.call(arguments, String).join(" ")); }
};
console.info = console.warn = console.error = console.log;`

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	src, err := readSource(cmd, args)
	if err != nil {
		return err
	}

	e, err := hostbridge.NewEngine(hostbridge.WithConfig(cfg), hostbridge.WithLogger(logger))
	if err != nil {
		return err
	}
	defer e.Close()

	if err := installAll(e, cmd.OutOrStdout()); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := e.EvalContext(ctx, src)
	if err != nil {
		return err
	}
	if out != "" && out != "undefined" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return e.Wait(ctx)
}

// installAll registers the reference operations, print and the console shim.
func installAll(e *hostbridge.Engine, w io.Writer) error {
	if err := builtins.New(e.Proxies()).Install(e); err != nil {
		return err
	}
	if err := e.Register("print", marshal.Bind(func(c *host.Call) (struct{}, error) {
		s, err := marshal.Arg(c, 0, marshal.StringFrom)
		if err != nil {
			return struct{}{}, err
		}
		_, err = fmt.Fprintln(w, s)
		return struct{}{}, err
	}, marshal.Unit)); err != nil {
		return err
	}
	_, err := e.Eval(consoleJS)
	return err
}

func readSource(cmd *cobra.Command, args []string) (string, error) {
	code, _ := cmd.Flags().GetString("code")
	transform, _ := cmd.Flags().GetBool("transform")
	opts := script.Options{Transform: transform}

	switch {
	case code != "":
		return script.Prepare("inline.js", code, opts)
	case len(args) > 0:
		return script.Load(args[0], opts)
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		if len(data) == 0 {
			return "", fmt.Errorf("no code provided: pass a file, -c, or pipe to stdin")
		}
		return script.Prepare("stdin.js", string(data), opts)
	}
}

