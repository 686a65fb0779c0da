// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the malloy CLI.
// It implements subcommands for compiling and running Malloy queries and for
// managing database connections using the Cobra CLI framework.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"malloy/cli/internal/config"
	"malloy/cli/internal/logging"
	"malloy/cli/internal/terminal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	showVersion     bool
	flagLogLevel    string
	flagCompiler    string
	flagConfigPath  string
	flagMetricsAddr string

	// cfg and logger are set before any subcommand runs.
	cfg    config.Config
	logger = zerolog.Nop()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "malloy",
	Short: "Compile and run Malloy queries",
	Long: `malloy compiles Malloy models and queries to SQL with the Malloy compiler
service and runs the SQL against your configured database connections.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("malloy %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// setup loads .env files and configuration and prepares the logger.
// Flags win over the environment, which wins over the config file.
func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv("."); err != nil {
		return err
	}

	var err error
	if flagConfigPath != "" {
		cfg, err = config.LoadFrom(flagConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagCompiler != "" {
		cfg.Compiler.Address = flagCompiler
	}
	if flagMetricsAddr != "" {
		cfg.MetricsAddr = flagMetricsAddr
	}

	logger, err = logging.Setup(os.Stderr, cfg.LogLevel, terminal.IsInteractive(os.Stderr))
	return err
}

// saveConfig writes cfg back to where it was loaded from.
func saveConfig() error {
	if flagConfigPath != "" {
		return config.SaveTo(flagConfigPath, cfg)
	}
	return config.Save(cfg)
}

// Execute runs the CLI application. Interrupts cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, logging.PresentError("Error", err))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagCompiler, "compiler", "", "Address of a running compiler service; empty starts the bundled one")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
}
