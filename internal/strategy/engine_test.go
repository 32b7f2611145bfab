package strategy

import (
	"testing"

	"DrawdownSentinel/internal/analytics"
	"DrawdownSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSettings() model.Settings {
	return model.Settings{
		StocksTargetPercent:            75,
		CashTargetPercent:              25,
		CashMinPct:                     10,
		CashMaxPct:                     35,
		Tranche1Trigger:                10,
		Tranche2Trigger:                20,
		Tranche3Trigger:                30,
		RebuildThreshold:               10,
		ContributionSplitCashPercent:   20,
		ContributionSplitStocksPercent: 80,
		MonthlyContributionTotal:       1000,
		Currency:                       "USD",
	}
}

func market(t *testing.T, lastPrice, high52w float64) model.MarketState {
	t.Helper()
	m, err := analytics.NewMarketState(lastPrice, high52w)
	require.NoError(t, err)
	return m
}

func TestClassifyMarketStatus(t *testing.T) {
	th := baseSettings().Thresholds()
	tests := []struct {
		dd   float64
		want model.MarketStatus
	}{
		{0, model.StatusNormal},
		{9.99, model.StatusNormal},
		{10, model.StatusCorrection},
		{19.99, model.StatusCorrection},
		{20, model.StatusBear},
		{30, model.StatusCrash},
		{55, model.StatusCrash},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyMarketStatus(tt.dd, th), "drawdown %.2f", tt.dd)
	}
}

// Scenario A: 11.11% drawdown with 9000 cash fires tranche 1 with a third of cash.
func TestEvaluate_ScenarioA(t *testing.T) {
	p := model.NewPortfolioState(50000, 10000, 9000)
	m := market(t, 400, 450)
	assert.InDelta(t, 11.11, m.DrawdownPercent, 0.01)

	res := Evaluate(p, m, model.AmmoState{}, baseSettings())
	assert.Equal(t, model.RecFireAmmo1, res.RecommendationType)
	require.NotNil(t, res.TransferAmount)
	assert.InDelta(t, 3000, *res.TransferAmount, 1e-9)
	assert.Equal(t, 4, res.Priority)
	assert.Equal(t, model.StatusCorrection, res.MarketStatus)
	assert.Equal(t, 1, res.TrancheIndex)
	assert.Contains(t, res.RecommendationText, "$3,000")
}

// Scenario B: tranche 1 already used, cash below target but drawdown above rebuild threshold.
func TestEvaluate_ScenarioB(t *testing.T) {
	// 20% cash of 45000.
	p := model.NewPortfolioState(30000, 6000, 9000)
	require.InDelta(t, 20, p.PercentCash, 1e-9)

	res := Evaluate(p, market(t, 400, 450), model.AmmoState{Tranche1Used: true}, baseSettings())
	assert.Equal(t, model.RecNormal, res.RecommendationType)
	assert.Nil(t, res.TransferAmount)
	assert.Equal(t, 6, res.Priority)
	assert.Equal(t, 200.0, res.CashContribution)
	assert.Equal(t, 800.0, res.StocksContribution)
}

// Scenario C: cash over max wins regardless of drawdown.
func TestEvaluate_ScenarioC(t *testing.T) {
	p := model.NewPortfolioState(50000, 10000, 40000)
	require.InDelta(t, 40, p.PercentCash, 1e-9)

	for _, lastPrice := range []float64{450, 400, 300, 100} {
		res := Evaluate(p, market(t, lastPrice, 450), model.AmmoState{}, baseSettings())
		assert.Equal(t, model.RecStopCashOverMax, res.RecommendationType, "price %.0f", lastPrice)
		assert.Nil(t, res.TransferAmount)
		assert.Equal(t, 1, res.Priority)
	}
}

// Scenario D: empty portfolio never divides by zero and falls through to NORMAL.
func TestEvaluate_ScenarioD(t *testing.T) {
	p := model.NewPortfolioState(0, 0, 0)
	assert.Zero(t, p.PercentCash)
	assert.Zero(t, p.PercentSp)
	assert.Zero(t, p.PercentTa)

	res := Evaluate(p, market(t, 300, 450), model.AmmoState{Tranche1Used: true}, baseSettings())
	assert.Equal(t, model.RecNormal, res.RecommendationType)
	assert.Equal(t, model.StatusCrash, res.MarketStatus)
}

func TestEvaluate_EachRuleInIsolation(t *testing.T) {
	s := baseSettings()
	tests := []struct {
		name      string
		portfolio model.PortfolioState
		lastPrice float64
		ammo      model.AmmoState
		want      model.RecommendationType
		priority  int
		transfer  *float64
	}{
		{
			name:      "cash over max",
			portfolio: model.NewPortfolioState(60, 0, 40),
			lastPrice: 450,
			want:      model.RecStopCashOverMax,
			priority:  1,
		},
		{
			name:      "tranche 3",
			portfolio: model.NewPortfolioState(70, 0, 30),
			lastPrice: 300,
			want:      model.RecFireAmmo3,
			priority:  2,
			transfer:  ptr(10),
		},
		{
			name:      "tranche 2",
			portfolio: model.NewPortfolioState(70, 0, 30),
			lastPrice: 350,
			want:      model.RecFireAmmo2,
			priority:  3,
			transfer:  ptr(10),
		},
		{
			name:      "tranche 1",
			portfolio: model.NewPortfolioState(70, 0, 30),
			lastPrice: 400,
			want:      model.RecFireAmmo1,
			priority:  4,
			transfer:  ptr(10),
		},
		{
			name:      "rebuild",
			portfolio: model.NewPortfolioState(80, 10, 10),
			lastPrice: 440,
			ammo:      model.AmmoState{Tranche1Used: true},
			want:      model.RecRebuildAmmo,
			priority:  5,
			transfer:  ptr(15),
		},
		{
			name:      "normal",
			portfolio: model.NewPortfolioState(60, 15, 25),
			lastPrice: 440,
			want:      model.RecNormal,
			priority:  6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.portfolio, market(t, tt.lastPrice, 450), tt.ammo, s)
			assert.Equal(t, tt.want, res.RecommendationType)
			assert.Equal(t, tt.priority, res.Priority)
			if tt.transfer == nil {
				assert.Nil(t, res.TransferAmount)
			} else {
				require.NotNil(t, res.TransferAmount)
				assert.InDelta(t, *tt.transfer, *res.TransferAmount, 1e-9)
			}

			// No higher-priority rule matched.
			in := &input{portfolio: tt.portfolio, market: market(t, tt.lastPrice, 450), ammo: tt.ammo, settings: s}
			for i := 0; i < res.Priority-1; i++ {
				assert.False(t, rules[i].match(in), "rule %s should not match", rules[i].Type)
			}
		})
	}
}

func TestEvaluate_FallsThroughUsedTranches(t *testing.T) {
	p := model.NewPortfolioState(70, 0, 30)
	m := market(t, 300, 450) // 33% drawdown

	res := Evaluate(p, m, model.AmmoState{Tranche3Used: true}, baseSettings())
	assert.Equal(t, model.RecFireAmmo2, res.RecommendationType)

	res = Evaluate(p, m, model.AmmoState{Tranche3Used: true, Tranche2Used: true}, baseSettings())
	assert.Equal(t, model.RecFireAmmo1, res.RecommendationType)

	res = Evaluate(p, m, model.AmmoState{Tranche1Used: true, Tranche2Used: true, Tranche3Used: true}, baseSettings())
	assert.Equal(t, model.RecNormal, res.RecommendationType)
	assert.Equal(t, model.StatusCrash, res.MarketStatus)
}

func TestEvaluate_NoCashNoTranche(t *testing.T) {
	p := model.NewPortfolioState(100, 0, 0)
	res := Evaluate(p, market(t, 300, 450), model.AmmoState{}, baseSettings())
	assert.Equal(t, model.RecNormal, res.RecommendationType)
}

func TestEvaluate_TrancheMonotonicity(t *testing.T) {
	s := baseSettings()
	ammo := model.AmmoState{Tranche2Used: true}
	portfolios := []model.PortfolioState{
		model.NewPortfolioState(70, 0, 30),
		model.NewPortfolioState(90, 0, 10),
		model.NewPortfolioState(0, 0, 100),
		model.NewPortfolioState(0, 0, 0),
	}
	for _, p := range portfolios {
		for price := 450.0; price >= 100; price -= 5 {
			for _, a := range []model.AmmoState{ammo, ammo.WithUsed(1), ammo.WithUsed(3)} {
				res := Evaluate(p, market(t, price, 450), a, s)
				assert.NotEqual(t, model.RecFireAmmo2, res.RecommendationType,
					"price %.0f cash %.0f", price, p.ValueCash)
			}
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	p := model.NewPortfolioState(50000, 10000, 9000)
	m := market(t, 400, 450)
	a := Evaluate(p, m, model.AmmoState{}, baseSettings())
	b := Evaluate(p, m, model.AmmoState{}, baseSettings())
	assert.Equal(t, a, b)
}

func TestEvaluate_RebuildHysteresis(t *testing.T) {
	s := baseSettings()
	s.RebuildThreshold = 5
	p := model.NewPortfolioState(80, 10, 10)
	ammo := model.AmmoState{Tranche1Used: true}

	// 8% drawdown: below tranche 1 trigger but not yet under the rebuild threshold.
	res := Evaluate(p, market(t, 414, 450), ammo, s)
	assert.Equal(t, model.RecNormal, res.RecommendationType)

	// 4% drawdown: rebuild.
	res = Evaluate(p, market(t, 432, 450), ammo, s)
	assert.Equal(t, model.RecRebuildAmmo, res.RecommendationType)
	assert.Equal(t, 25.0, res.TargetPercent)
}

func ptr(v float64) *float64 { return &v }
