package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"NoisyMarket/internal/services/history"
)

var deriveCmd = &cobra.Command{
	Use:   "derive RAW.csv",
	Short: "Add the change columns to a raw OHLCV file",
	Long: `Read a Date,Open,High,Low,Close,Volume file and write it with the Change, %Change and
State Sum columns, named SYMBOL___start___end.csv in the output directory.

Examples:
  noisymarket derive downloads/AAPL.csv --symbol AAPL --out data/2010-06-08___2020-06-08`,
	Args: cobra.ExactArgs(1),
	RunE: runDerive,
}

var (
	deriveSymbol string
	deriveOut    string
)

func init() {
	rootCmd.AddCommand(deriveCmd)
	deriveCmd.Flags().StringVarP(&deriveSymbol, "symbol", "s", "", "symbol; empty takes the file name")
	deriveCmd.Flags().StringVar(&deriveOut, "out", ".", "output directory")
}

func runDerive(_ *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	bars, err := history.ReadBars(f)
	if err != nil {
		return err
	}
	rows, err := history.Derive(bars)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	symbol := deriveSymbol
	if symbol == "" {
		symbol = strings.ToUpper(strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])))
	}
	if err := os.MkdirAll(deriveOut, 0o755); err != nil {
		return err
	}
	path := filepath.Join(deriveOut, history.Filename(symbol, bars[0].Date.Time, bars[len(bars)-1].Date.Time))
	if err := history.WriteRowsFile(path, rows); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
