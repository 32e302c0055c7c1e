package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/newthinker/boxsim/internal/optimize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	optimizePreset    string
	optimizeParams    []string
	optimizeObjective string
	optimizeWorkers   int
	optimizeTop       int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Sweep strategy parameters over a grid",
	Long: `Run one backtest per combination of the parameter grid and rank them by
an objective. The grid comes from optimize.grid in the config file and
--param flags, which replace config entries of the same name.`,
	Example: `  boxsim optimize --data XAUUSD_M5.csv --param period1_tp=500,999 --param stop_loss=20000,36999`,
	Args:    cobra.NoArgs,
	RunE:    runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizePreset, "preset", "", "base strategy preset")
	optimizeCmd.Flags().StringArrayVarP(&optimizeParams, "param", "p", nil, "grid entry name=v1,v2,... (repeatable)")
	optimizeCmd.Flags().StringVar(&optimizeObjective, "objective", "", "metric to rank by (overrides optimize.objective)")
	optimizeCmd.Flags().IntVar(&optimizeWorkers, "workers", 0, "parallel backtests (overrides optimize.workers)")
	optimizeCmd.Flags().IntVar(&optimizeTop, "top", 0, "rows to print (overrides optimize.top)")

	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(optimizePreset)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	grid := optimize.Grid{}
	for name, values := range cfg.Optimize.Grid {
		grid[name] = values
	}
	for _, p := range optimizeParams {
		name, values, err := optimize.ParseParam(p)
		if err != nil {
			return err
		}
		grid[name] = values
	}
	if err := grid.Validate(); err != nil {
		return err
	}

	sweep := optimize.Config{Workers: cfg.Optimize.Workers, Objective: cfg.Optimize.Objective}
	if optimizeWorkers > 0 {
		sweep.Workers = optimizeWorkers
	}
	if optimizeObjective != "" {
		sweep.Objective = optimizeObjective
	}
	top := cfg.Optimize.Top
	if optimizeTop > 0 {
		top = optimizeTop
	}

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

	opt, err := optimize.New(cfg.Strategy, pred, runOptions(cfg), sweep, log)
	if err != nil {
		return err
	}
	opt.SetMetrics(reg)

	fmt.Println("=== boxsim Optimize ===")
	fmt.Printf("Combinations: %d\n", grid.Size())
	fmt.Printf("Objective:    %s\n", opt.Objective().Name)
	fmt.Println()

	trials, runErr := opt.Run(ctx, bars, grid)
	if runErr != nil && len(trials) == 0 {
		return fmt.Errorf("optimization failed: %w", runErr)
	}
	if runErr != nil {
		log.Warn("optimization interrupted, showing finished trials", zap.Error(runErr))
	}

	printTrials(trials, opt.Objective().Name, top)

	if cfg.Export.Enabled {
		exp, err := newExporter(cfg, log)
		if err != nil {
			return err
		}
		label := "sweep-" + time.Now().UTC().Format("20060102T150405Z")
		key, err := exp.ExportSweep(ctx, label, opt.Objective().Name, trials)
		if err != nil {
			return err
		}
		fmt.Printf("\nSweep exported to %s\n", key)
	}
	return runErr
}

func printTrials(trials []optimize.Trial, objective string, top int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\t%s\tTRADES\tNET PROFIT\tPARAMS\n", objective)
	for i, t := range trials {
		if top > 0 && i >= top {
			break
		}
		if t.Err != nil {
			fmt.Fprintf(w, "%d\t-\t-\t-\t%s (%v)\n", i+1, t.Params, t.Err)
			continue
		}
		fmt.Fprintf(w, "%d\t%.4f\t%d\t%.2f\t%s\n",
			i+1, t.Score, t.Result.Statistics.TotalTrades, t.Result.Statistics.NetProfit, t.Params)
	}
	w.Flush()
}
