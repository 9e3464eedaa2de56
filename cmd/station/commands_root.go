package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtarchie/station/internal/config"
	"github.com/jtarchie/station/internal/ctxlog"
	"github.com/jtarchie/station/internal/logging"
)

var (
	pipelineFile string
	logLevel     string
	logFormat    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "station",
	Short:        "Build pipeline engine: pipeline → step tree → containers",
	Long:         "station compiles the jobs of a pipeline into step trees and drives them to completion, running each step in a container.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.FromEnv()
		if err != nil {
			return fmt.Errorf("failed to read configuration: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		slog.SetDefault(logger)
		cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&pipelineFile, "pipeline", "p", "pipeline.yml", "Pipeline file path (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug/info/warn/error), overrides STATION_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text/json), overrides STATION_LOG_FORMAT")

	registerValidateCommand(rootCmd)
	registerPlanCommand(rootCmd)
	registerRunCommand(rootCmd)
	registerJobsCommand(rootCmd)
	registerResourcesCommand(rootCmd)
	registerDebugCommand(rootCmd)
}
