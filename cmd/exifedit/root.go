package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vbonduro/exifedit/internal/config"
	"github.com/vbonduro/exifedit/internal/logging"
)

// env is populated by the root command before any subcommand runs.
var env struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// rootCmd serves the web UI when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "exifedit",
	Short:         "View and edit the capture date, GPS position and camera tags of photos",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			if err := os.Setenv("CONFIG_FILE", path); err != nil {
				return fmt.Errorf("failed to set config path: %w", err)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}

		logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		env.cfg, env.logger, env.cleanup = cfg, logger, cleanup
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	addServeFlags(rootCmd)
}
