package main

import (
	"fmt"

	"DrawdownSentinel/internal/advisor"
	"DrawdownSentinel/internal/model"
	"DrawdownSentinel/internal/report"

	"github.com/spf13/cobra"
)

func evaluateCmd(cfgPath *string) *cobra.Command {
	var (
		userID       string
		sp, ta, cash float64
		useSnapshot  bool
		contribution float64
		contribType  string
		currency     string
		month        string
		lang         string
		save         bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Preview (or save with --save) a recommendation for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			req := advisor.Request{
				Contribution:     contribution,
				ContributionType: model.ContributionType(contribType),
				Currency:         currency,
				Month:            month,
				Language:         lang,
			}
			if !useSnapshot {
				req.Holdings = &advisor.Holdings{ValueSp: sp, ValueTa: ta, ValueCash: cash}
			}

			run := a.advisor.Preview
			if save {
				run = a.advisor.Save
			}
			out, err := run(cmd.Context(), userID, req)
			if err != nil {
				return err
			}

			if out.Result == nil {
				fmt.Printf("Market data unavailable (%s); no recommendation.\n", out.MarketError)
			} else {
				fmt.Print(report.FormatRecommendation(*out.Market, out.Portfolio, *out.Result, report.ParseLanguage(lang)))
			}
			if out.Snapshot != nil {
				fmt.Printf("\nSaved snapshot %s for %s\n", out.Snapshot.ID, out.Snapshot.SnapshotMonth)
			}
			fmt.Print("\n" + report.FormatAmmoStatus(out.Ammo))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&userID, "user", "default", "user id")
	f.Float64Var(&sp, "sp", 0, "broad-market proxy value")
	f.Float64Var(&ta, "ta", 0, "domestic proxy value")
	f.Float64Var(&cash, "cash", 0, "cash value")
	f.BoolVar(&useSnapshot, "from-snapshot", false, "use the latest saved snapshot instead of --sp/--ta/--cash")
	f.Float64Var(&contribution, "contribution", 0, "pending contribution to fold in")
	f.StringVar(&contribType, "contribution-type", "", "monthly, bonus or adjustment")
	f.StringVar(&currency, "currency", "", "contribution currency, USD or ILS (default: settings currency)")
	f.StringVar(&month, "month", "", "snapshot month as YYYY-MM-DD (default: now)")
	f.StringVar(&lang, "lang", "en", "output language: en, he, ru")
	f.BoolVar(&save, "save", false, "persist the snapshot, recommendation and ammo change")
	return cmd
}
