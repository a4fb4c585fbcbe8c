package main

import (
	"fmt"
	"os"

	"github.com/cuemby/addonkit/pkg/config"
	"github.com/cuemby/addonkit/pkg/manager"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "addonkit",
	Short: "addonkit - in-process add-on runtime",
	Long: `addonkit boots an add-on runtime from a YAML file: an event dispatcher,
a write-behind options store, a profiler and the hook registry.

Use it to apply channels against declared hooks, inspect stored options and
read persisted logs.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"addonkit version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML)")
	rootCmd.PersistentFlags().String("data-dir", "", "Override storage.data_dir")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(optionCmd)
	rootCmd.AddCommand(logsCmd)
}

// loadConfig reads the --config file and applies --data-dir
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	return cfg, nil
}

// openManager builds a manager that logs to stderr so stdout stays clean
func openManager(cmd *cobra.Command) (*manager.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return manager.New(cfg, manager.WithOutput(cmd.ErrOrStderr()), manager.WithVersion(Version))
}
