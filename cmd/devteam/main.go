// Package main provides the devteam binary: the approval, iteration and
// escalation engine plus the AI chat router, served over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/logger"
)

const (
	Version = "0.1.0"
	appName = "devteam"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// globals are the flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "AI dev team orchestration core",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `devteam runs the human approval gates, iteration loops and
escalation sweeps of AI dev team workflows, and routes every agent
chat request to its assigned provider with ordered fallbacks.`,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultConfigFile, "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(g),
		migrateCmd(g),
		sweepCmd(g),
		assignmentsCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// setup loads the configuration and installs the process logger. One-shot
// commands always log synchronously.
func (g *globals) setup(oneShot bool) (*config.Config, *logger.Runtime, error) {
	cfg, err := config.LoadFrom(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if oneShot {
		cfg.Logging.Async = false
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log.Logger)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"nats", cfg.NATS.Enabled,
		"log_level", cfg.Logging.Level,
	)
	return cfg, log, nil
}
