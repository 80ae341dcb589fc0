package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/botflow/internal/config"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "botflow",
	Short:         "botflow runs conversational flows for chat channels",
	Long:          `botflow compiles flow definitions (nodes and edges) into bots that answer one inbound message at a time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal outside development.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "botflow.yaml", "Path to the configuration file (optional)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// loadConfig reads the --config file and builds the logger it asks for.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Log.Level), cfg.Log.Format), nil
}
