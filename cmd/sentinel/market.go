package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"DrawdownSentinel/internal/analytics"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func marketCmd(cfgPath *string) *cobra.Command {
	var (
		tickers []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Fetch the market report for the configured or given tickers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(tickers) == 0 {
				tickers = a.cfg.DataSource.Symbols
			}
			report := a.collector.Report(cmd.Context(), tickers)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			syms := make([]string, 0, len(report.Tickers))
			for s := range report.Tickers {
				syms = append(syms, s)
			}
			sort.Strings(syms)

			fmt.Printf("Market report as of %s\n\n", report.AsOfDate)
			for _, s := range syms {
				td := report.Tickers[s]
				if td.Error != "" {
					fmt.Printf("%-8s error: %s\n", s, td.Error)
					continue
				}
				fmt.Printf("%-8s last %s | 52w high %s | drawdown %.2f%% | max dd %.2f%% | vol %.1f%% | %s bars\n",
					s,
					humanize.CommafWithDigits(td.LastPrice, 2),
					humanize.CommafWithDigits(td.High52w, 2),
					analytics.Round2(td.DrawdownPercent),
					td.Stats.MaxDrawdownPct,
					td.Stats.AnnualizedVolPct,
					humanize.Comma(int64(len(td.TimeSeries))),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tickers, "ticker", nil, "tickers to report (repeatable or comma separated)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON report")
	return cmd
}
