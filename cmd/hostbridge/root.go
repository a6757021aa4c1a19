package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cryguy/hostbridge"
)

var rootCmd = &cobra.Command{
	Use:   "hostbridge",
	Short: "Run JavaScript with typed native operations",
	Long: `hostbridge - run JavaScript on an embedded engine with native operations.

Scripts call reference operations (hex and 256-bit integer codecs, secp256k1
keys, shared counters, async tasks) as global functions. Failures surface as
thrown JavaScript errors; async operations report through callbacks.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "Load HOSTBRIDGE_* defaults from a dotenv file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log engine activity to stderr")
}

// envInt reads an integer environment variable into dst when it is set.
func envInt(name string, dst *int) error {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

// loadConfig builds the engine config from defaults, then HOSTBRIDGE_*
// variables (optionally loaded from --env-file), then explicit flags.
func loadConfig(cmd *cobra.Command) (hostbridge.EngineConfig, error) {
	cfg := hostbridge.DefaultConfig()

	if path, _ := cmd.Flags().GetString("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return cfg, fmt.Errorf("loading env file: %w", err)
		}
	}
	for name, dst := range map[string]*int{
		"HOSTBRIDGE_TIMEOUT_MS": &cfg.ExecutionTimeout,
		"HOSTBRIDGE_DRAIN_MS":   &cfg.DrainTimeout,
		"HOSTBRIDGE_WORKERS":    &cfg.TaskWorkers,
		"HOSTBRIDGE_MEMORY_MB":  &cfg.MemoryLimitMB,
	} {
		if err := envInt(name, dst); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if s := os.Getenv("HOSTBRIDGE_TASK_MODE"); s != "" && !flags.Changed("mode") {
		mode, err := hostbridge.ParseTaskMode(s)
		if err != nil {
			return cfg, fmt.Errorf("HOSTBRIDGE_TASK_MODE: %w", err)
		}
		cfg.TaskMode = mode
	}

	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.ExecutionTimeout = int(d.Milliseconds())
	}
	if flags.Changed("drain") {
		d, _ := flags.GetDuration("drain")
		cfg.DrainTimeout = int(d.Milliseconds())
	}
	if flags.Changed("workers") {
		cfg.TaskWorkers, _ = flags.GetInt("workers")
	}
	if flags.Changed("memory-mb") {
		cfg.MemoryLimitMB, _ = flags.GetInt("memory-mb")
	}
	if flags.Changed("mode") {
		s, _ := flags.GetString("mode")
		mode, err := hostbridge.ParseTaskMode(s)
		if err != nil {
			return cfg, err
		}
		cfg.TaskMode = mode
	}
	return cfg, cfg.Validate()
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}
