package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem/system"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOut    bool
	logJSON    bool
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Exercise and inspect the memkit allocator stack",
	Long: `memctl builds a pool, heap and slot allocator over one fixed memory
range and drives it with synthetic or recorded workloads. It reports
per-tier statistics, verifies structural invariants and can serve live
statistics over HTTP.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Enabled: verbose || logger.AllocEnabled,
			Output:  cmd.ErrOrStderr(),
			JSON:    logJSON,
			Level:   slog.LevelDebug,
			Alloc:   logger.AllocEnabled,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML allocator configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Report invalid requests and halt on corruption")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves --config, the environment and --debug.
func loadConfig() (system.Config, error) {
	var (
		cfg system.Config
		err error
	)
	if configPath != "" {
		cfg, err = system.Load(configPath)
	} else {
		cfg, err = system.Default().FromEnv()
	}
	if err != nil {
		return system.Config{}, err
	}
	if debugMode {
		cfg.Debug = true
	}
	return cfg, nil
}

// openSystem builds a System from the resolved configuration.
func openSystem(track bool) (*system.System, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Track = cfg.Track || track
	return system.New(cfg)
}
