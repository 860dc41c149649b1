package main

import (
	"github.com/spf13/cobra"

	"NoisyMarket/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API together with the Monte Carlo job queue (when Redis is enabled)
and the calibration consumer (when kafka.consumer.enabled is set). Blocks until SIGINT or
SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return app.Run()
}
