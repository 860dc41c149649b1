package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"NoisyMarket/internal/di"
	"NoisyMarket/internal/domain/models"
	"NoisyMarket/internal/services/history"
	applogger "NoisyMarket/pkg/logger"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate one path per symbol",
	Long: `Simulate one price path for a symbol, or for every symbol of the universe file.
Symbols without a stored calibration are fitted from their history file on the fly.

Examples:
  noisymarket simulate --symbol AAPL --price 50 --seed 42
  noisymarket simulate --symbol AAPL --out aapl_sim.csv
  noisymarket simulate --universe`,
	RunE: runSimulate,
}

// flags shared by simulate and montecarlo
type runFlags struct {
	symbol    string
	price     float64
	steps     int
	seed      uint64
	direction string
	kind      string
	maxDraws  int
}

var (
	simFlags    runFlags
	simUniverse bool
	simOut      string
	simPersist  bool
	simKeepPath bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	addRunFlags(simulateCmd, &simFlags)
	simulateCmd.Flags().BoolVar(&simUniverse, "universe", false, "simulate every symbol of data.universe")
	simulateCmd.Flags().StringVar(&simOut, "out", "", "write the path as a history CSV (single symbol only)")
	simulateCmd.Flags().BoolVar(&simPersist, "persist", false, "send the path to the configured backend")
	simulateCmd.Flags().BoolVar(&simKeepPath, "keep-path", false, "include every step in the JSON output")
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVarP(&f.symbol, "symbol", "s", "", "ticker symbol")
	cmd.Flags().Float64Var(&f.price, "price", 0, "initial price; 0 takes the last close of the history file")
	cmd.Flags().IntVar(&f.steps, "steps", 0, "number of steps; 0 takes simulation.steps")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "random seed; 0 takes simulation.seed")
	cmd.Flags().StringVar(&f.direction, "direction", "", "initial direction (up or down)")
	cmd.Flags().StringVar(&f.kind, "kind", "", "movement kind (gaussian, uniform, levy_stable)")
	cmd.Flags().IntVar(&f.maxDraws, "max-draws", 0, "levy rejection sampling budget per step")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := di.InitializeServices(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	symbols := []string{simFlags.symbol}
	if simUniverse {
		if symbols, err = readUniverse(cfg.Data.Universe); err != nil {
			return err
		}
	} else if simFlags.symbol == "" {
		return fmt.Errorf("--symbol or --universe is required")
	}

	var specs []models.SimulationSpec
	for _, sym := range symbols {
		req, err := simulationRequest(ctx, svc, simFlags, sym)
		if err != nil {
			if !simUniverse {
				return err
			}
			svc.Log.Warn("symbol skipped", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		req.KeepPath = simKeepPath || simOut != ""
		req.Persist = simPersist
		spec, err := svc.Runner.BuildSpec(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", sym, err)
		}
		specs = append(specs, spec)
	}

	results, err := svc.Runner.RunUniverse(ctx, specs)
	if err != nil {
		return err
	}

	if simOut != "" && len(results) == 1 {
		res := results[0]
		start, _ := cfg.Period()
		if err := history.WriteRowsFile(simOut, history.PathRows(start, res.Path, res.Initial)); err != nil {
			return err
		}
		if !simKeepPath {
			res.Path = nil
		}
	}
	if len(results) == 1 {
		return printJSON(results[0])
	}
	return printJSON(results)
}

// simulationRequest fills a request from flags, resolving the calibration and, when no price is
// given, the last observed close.
func simulationRequest(ctx context.Context, svc *di.Services, f runFlags, symbol string) (models.SimulationRequest, error) {
	cfg := svc.Config
	start, end := cfg.Period()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if _, err := svc.Calibrations.Resolve(ctx, cfg.Data.Dir, symbol, start, end); err != nil {
		return models.SimulationRequest{}, err
	}

	price := f.price
	if price <= 0 {
		rows, err := history.ReadRowsFile(filepath.Join(cfg.Data.Dir, history.Filename(symbol, start, end)))
		if err != nil {
			return models.SimulationRequest{}, fmt.Errorf("initial price for %s: %w", symbol, err)
		}
		if len(rows) == 0 {
			return models.SimulationRequest{}, fmt.Errorf("initial price for %s: empty history", symbol)
		}
		price = rows[len(rows)-1].Close
	}
	steps := f.steps
	if steps <= 0 {
		steps = cfg.Simulation.Steps
	}

	req := models.SimulationRequest{
		Symbol:    symbol,
		Price:     price,
		Steps:     steps,
		Seed:      f.seed,
		Direction: f.direction,
		MaxDraws:  f.maxDraws,
	}
	if f.kind != "" {
		req.Movement = &models.MovementRequest{Kind: f.kind}
	}
	return req, nil
}

func readUniverse(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	defer f.Close()
	return history.ReadUniverse(f)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
