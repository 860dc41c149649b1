package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"NoisyMarket/internal/di"
	"NoisyMarket/internal/domain/models"
	xhttp "NoisyMarket/pkg/http"
)

var montecarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Run a Monte Carlo batch",
	Long: `Run independent paths of one symbol, trial i seeded with seed+i, and print the
distribution of final prices. With --server the batch runs on a NoisyMarket server instead.

Examples:
  noisymarket montecarlo --symbol AAPL --trials 1000
  noisymarket montecarlo --symbol AAPL --price 50 --server http://localhost:8080`,
	RunE: runMonteCarlo,
}

var (
	mcFlags  runFlags
	mcTrials int
	mcServer string
	mcFinals bool
)

func init() {
	rootCmd.AddCommand(montecarloCmd)
	addRunFlags(montecarloCmd, &mcFlags)
	montecarloCmd.Flags().IntVarP(&mcTrials, "trials", "n", 0, "number of paths; 0 takes simulation.trials")
	montecarloCmd.Flags().StringVar(&mcServer, "server", "", "base URL of a server to run the batch on")
	montecarloCmd.Flags().BoolVar(&mcFinals, "finals", false, "print every final price")
	_ = montecarloCmd.MarkFlagRequired("symbol")
}

func runMonteCarlo(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	trials := mcTrials
	if trials <= 0 {
		trials = cfg.Simulation.Trials
	}

	var sum *models.BatchSummary
	if mcServer != "" {
		if mcFlags.price <= 0 {
			return fmt.Errorf("--price is required with --server")
		}
		req := models.BatchRequest{
			SimulationRequest: models.SimulationRequest{
				Symbol:    mcFlags.symbol,
				Price:     mcFlags.price,
				Steps:     mcFlags.steps,
				Seed:      mcFlags.seed,
				Direction: mcFlags.direction,
				MaxDraws:  mcFlags.maxDraws,
			},
			Trials: trials,
		}
		if mcFlags.kind != "" {
			req.Movement = &models.MovementRequest{Kind: mcFlags.kind}
		}
		client := xhttp.NewClient(mcServer, xhttp.WithTimeout(10*time.Minute), xhttp.WithRetryWindow(30*time.Second))
		sum = &models.BatchSummary{}
		if err := client.Do(cmd.Context(), http.MethodPost, "/api/simulations/batch", req, sum); err != nil {
			return err
		}
	} else {
		svc, cleanup, err := di.InitializeServices(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		req, err := simulationRequest(cmd.Context(), svc, mcFlags, mcFlags.symbol)
		if err != nil {
			return err
		}
		spec, err := svc.Runner.BuildSpec(cmd.Context(), req)
		if err != nil {
			return err
		}
		if sum, err = svc.Runner.RunBatch(cmd.Context(), spec, trials); err != nil {
			return err
		}
	}

	if !mcFinals {
		sum.Finals = nil
	}
	return printJSON(sum)
}
