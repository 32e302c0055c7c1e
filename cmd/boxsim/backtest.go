package main

import (
	"fmt"
	"os"

	"github.com/newthinker/boxsim/internal/analyzer"
	"github.com/newthinker/boxsim/internal/backtest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backtestPreset string

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest",
	Long:  "Replay bars through the Box-EA simulator and print the performance report",
	Args:  cobra.NoArgs,
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestPreset, "preset", "", "strategy preset (default, aggressive, conservative, scalping)")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(backtestPreset)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	bars, err := loadBars(cfg, log)
	if err != nil {
		return err
	}
	pred, err := newPredictor(cfg)
	if err != nil {
		return err
	}

	reg, stopMetrics := startMetrics(cfg, log)
	defer stopMetrics()

	engine := backtest.New(cfg.Strategy, pred, runOptions(cfg), log)
	engine.SetMetrics(reg)

	res, err := engine.Run(ctx, bars)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	if reg != nil {
		reg.SetFinalBalance(presetLabel(backtestPreset), res.Statistics.FinalBalance)
	}

	fmt.Println("=== boxsim Backtest ===")
	fmt.Printf("Run:      %s\n", res.RunID)
	fmt.Printf("Symbol:   %s\n", res.Symbol)
	fmt.Printf("Period:   %s to %s\n", res.StartDate.Format("2006-01-02 15:04"), res.EndDate.Format("2006-01-02 15:04"))
	fmt.Printf("Bars:     %d (%d traded)\n", res.BarsTotal, res.BarsUsed)
	fmt.Println()
	if err := analyzer.WriteReport(os.Stdout, res.Metrics); err != nil {
		return err
	}

	if cfg.Export.Enabled {
		exp, err := newExporter(cfg, log)
		if err != nil {
			return err
		}
		dir, err := exp.ExportRun(ctx, res)
		if err != nil {
			return err
		}
		log.Info("results exported", zap.String("dir", dir))
		fmt.Printf("\nResults exported to %s\n", dir)
	}
	return nil
}

func presetLabel(name string) string {
	if name == "" {
		return "config"
	}
	return name
}
