package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"NoisyMarket/internal/di"
	"NoisyMarket/internal/usecase"
	applogger "NoisyMarket/pkg/logger"
	"NoisyMarket/pkg/util"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit every history file of a directory",
	Long: `Fit the transition matrix, the Levy-stable, Gaussian and uniform magnitudes and the
partial autocorrelation of every SYMBOL___start___end.csv file in the data directory. Series
that start after the window start are skipped. The fits are stored (and published when Kafka
is the backend) and the Levy-Stable, pacf and Q-Matrix summary CSVs are written.

Examples:
  noisymarket calibrate
  noisymarket calibrate --dir data/2010-06-08___2020-06-08 --out results`,
	RunE: runCalibrate,
}

var (
	calDir   string
	calOut   string
	calStart string
	calEnd   string
)

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().StringVar(&calDir, "dir", "", "history directory; empty takes data.dir")
	calibrateCmd.Flags().StringVar(&calOut, "out", "", "summary directory; empty takes data.output_dir")
	calibrateCmd.Flags().StringVar(&calStart, "start", "", "window start; empty takes data.start")
	calibrateCmd.Flags().StringVar(&calEnd, "end", "", "window end; empty takes data.end")
}

func runCalibrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := di.InitializeServices(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	start, end := cfg.Period()
	start = util.ParseTimeDefault(calStart, start)
	end = util.ParseTimeDefault(calEnd, end)
	dir := firstNonEmpty(calDir, cfg.Data.Dir)
	out := firstNonEmpty(calOut, cfg.Data.OutputDir)

	rep, err := svc.Calibrations.CalibrateDir(cmd.Context(), dir, start, end)
	if err != nil {
		return err
	}
	if len(rep.Calibrations) == 0 {
		return fmt.Errorf("no usable history files in %s", dir)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	paths, err := usecase.WriteSummaries(out, rep)
	if err != nil {
		return err
	}
	svc.Log.Info("summaries written", applogger.Strings("files", paths))
	return printJSON(map[string]interface{}{
		"fitted":  len(rep.Calibrations),
		"skipped": rep.Skipped,
		"files":   paths,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
