package strategy

import (
	"DrawdownSentinel/internal/model"
	"DrawdownSentinel/internal/report"
)

// input bundles the evaluation arguments for the rule table.
type input struct {
	portfolio model.PortfolioState
	market    model.MarketState
	ammo      model.AmmoState
	settings  model.Settings
}

// rule is one step of the priority chain. Priority is the 1-based position in rules.
type rule struct {
	Type  model.RecommendationType
	match func(in *input) bool
	apply func(in *input, res *model.StrategyResult)
}

// rules defines the priority chain. The first matching rule wins; NORMAL always matches.
var rules = []rule{
	{model.RecStopCashOverMax, matchCashOverMax, applyCashOverMax},
	{model.RecFireAmmo3, matchTranche(3), applyTranche(3)},
	{model.RecFireAmmo2, matchTranche(2), applyTranche(2)},
	{model.RecFireAmmo1, matchTranche(1), applyTranche(1)},
	{model.RecRebuildAmmo, matchRebuild, applyRebuild},
	{model.RecNormal, func(*input) bool { return true }, applyNormal},
}

// ClassifyMarketStatus maps a trigger drawdown onto the threshold ladder.
// No hysteresis: the result depends only on the current drawdown.
func ClassifyMarketStatus(drawdownPercent float64, t model.Thresholds) model.MarketStatus {
	switch {
	case drawdownPercent >= t.Tranche3Trigger:
		return model.StatusCrash
	case drawdownPercent >= t.Tranche2Trigger:
		return model.StatusBear
	case drawdownPercent >= t.Tranche1Trigger:
		return model.StatusCorrection
	default:
		return model.StatusNormal
	}
}

// Evaluate runs the priority chain and returns exactly one recommendation.
// It performs no I/O and never mutates ammo; applying a FIRE_AMMO result is the caller's job.
func Evaluate(portfolio model.PortfolioState, market model.MarketState, ammo model.AmmoState, settings model.Settings) model.StrategyResult {
	in := &input{portfolio: portfolio, market: market, ammo: ammo, settings: settings}

	res := model.StrategyResult{
		MarketStatus:    ClassifyMarketStatus(market.DrawdownPercent, settings.Thresholds()),
		DrawdownPercent: market.DrawdownPercent,
		CashPercent:     portfolio.PercentCash,
		Currency:        settings.Currency,
	}

	for i, r := range rules {
		if !r.match(in) {
			continue
		}
		res.RecommendationType = r.Type
		res.Priority = i + 1
		r.apply(in, &res)
		break
	}

	res.RecommendationText = report.Text(res, report.English)
	return res
}

func matchCashOverMax(in *input) bool {
	return in.portfolio.PercentCash > in.settings.CashMaxPct
}

func applyCashOverMax(in *input, res *model.StrategyResult) {
	res.TargetPercent = in.settings.CashMaxPct
}

func matchTranche(tranche int) func(in *input) bool {
	return func(in *input) bool {
		trigger := in.settings.Thresholds().Trigger(tranche)
		return in.market.DrawdownPercent >= trigger &&
			!in.ammo.Used(tranche) &&
			in.portfolio.ValueCash > 0
	}
}

// Each tranche deploys a third of the cash held at evaluation time.
func applyTranche(tranche int) func(in *input, res *model.StrategyResult) {
	return func(in *input, res *model.StrategyResult) {
		amount := in.portfolio.ValueCash / 3
		res.TransferAmount = &amount
		res.TrancheIndex = tranche
		res.TargetPercent = in.settings.Thresholds().Trigger(tranche)
	}
}

func matchRebuild(in *input) bool {
	return in.market.DrawdownPercent < in.settings.RebuildThreshold &&
		in.ammo.AnyUsed() &&
		in.portfolio.PercentCash < in.settings.CashTargetPercent
}

func applyRebuild(in *input, res *model.StrategyResult) {
	targetCash := in.settings.CashTargetPercent / 100 * in.portfolio.TotalValue
	amount := targetCash - in.portfolio.ValueCash
	res.TransferAmount = &amount
	res.TargetPercent = in.settings.CashTargetPercent
}

func applyNormal(in *input, res *model.StrategyResult) {
	total := in.settings.MonthlyContributionTotal
	res.CashContribution = in.settings.ContributionSplitCashPercent / 100 * total
	res.StocksContribution = in.settings.ContributionSplitStocksPercent / 100 * total
}
