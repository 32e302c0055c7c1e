package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/newthinker/boxsim/internal/backtest"
	"github.com/newthinker/boxsim/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var compareCmd = &cobra.Command{
	Use:   "compare [preset...]",
	Short: "Compare strategy presets on the same bars",
	Long:  "Run each preset (all of them when none is named) against the same bars and print a comparison table",
	RunE:  runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	presets := args
	if len(presets) == 0 {
		presets = config.PresetNames()
	}

	cfg, err := loadConfig("")
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

	summaries := make([]backtest.Summary, 0, len(presets))
	for _, name := range presets {
		variant := *cfg
		if err := variant.ApplyPreset(name); err != nil {
			return err
		}
		if variant.Backtest.Timeframe != cfg.Backtest.Timeframe {
			log.Warn("preset timeframe differs from loaded bars, running on loaded bars",
				zap.String("preset", name),
				zap.String("preset_timeframe", variant.Backtest.Timeframe),
				zap.String("bars_timeframe", cfg.Backtest.Timeframe),
			)
		}

		engine := backtest.New(variant.Strategy, pred, runOptions(&variant), log.Named(name))
		engine.SetMetrics(reg)
		res, err := engine.Run(ctx, bars)
		if err != nil {
			return fmt.Errorf("backtest %s failed: %w", name, err)
		}
		if reg != nil {
			reg.SetFinalBalance(name, res.Statistics.FinalBalance)
		}
		summaries = append(summaries, res.Summarize(name))
	}

	fmt.Println("=== boxsim Preset Comparison ===")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tTRADES\tWIN RATE\tNET PROFIT\tRETURN\tMAX DD\tSHARPE\tPROFIT FACTOR")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.2f\t%.2f%%\t%.2f%%\t%.2f\t%.2f\n",
			s.Name, s.TotalTrades, s.WinRate, s.NetProfit, s.TotalReturnPct, s.MaxDrawdownPct, s.SharpeRatio, s.ProfitFactor)
	}
	w.Flush()

	if cfg.Export.Enabled {
		exp, err := newExporter(cfg, log)
		if err != nil {
			return err
		}
		label := "compare-" + time.Now().UTC().Format("20060102T150405Z")
		key, err := exp.ExportComparison(ctx, label, summaries)
		if err != nil {
			return err
		}
		fmt.Printf("\nComparison exported to %s\n", key)
	}
	return nil
}
