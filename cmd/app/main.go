package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NoisyMarket/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "noisymarket",
	Short: "Markov chain stock price simulator",
	Long: `NoisyMarket simulates daily stock prices with a two-state Markov chain for the
direction of each move and a fitted distribution for its size.

Available commands:
  serve       - Run the HTTP API, job queue and calibration consumer
  simulate    - Simulate one path per symbol
  montecarlo  - Run a Monte Carlo batch locally or against a server
  calibrate   - Fit every history file of a directory and write the summaries
  derive      - Add the change columns to a raw OHLCV file`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
