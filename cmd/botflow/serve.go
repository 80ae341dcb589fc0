package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/botflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Loads every flow in the flows directory and serves them over a JSON API until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.Listen = addr
		}
		if dir, _ := cmd.Flags().GetString("flows"); dir != "" {
			cfg.FlowsDir = dir
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.Serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("flows", "", "Directory of flow files (overrides config)")
}
