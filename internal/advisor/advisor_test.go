package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"DrawdownSentinel/internal/ammo"
	"DrawdownSentinel/internal/collector"
	"DrawdownSentinel/internal/model"
	"DrawdownSentinel/internal/report"
	"DrawdownSentinel/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	state model.MarketState
	err   error
}

func (f fakeMarket) MarketState(context.Context, string) (model.MarketState, error) {
	return f.state, f.err
}

func testSettings() model.Settings {
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

func newService(t *testing.T, market MarketSource) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite", DSN: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := NewService(st, market, ammo.NewManager(st, nil, zerolog.Nop()), Options{
		Defaults:  testSettings(),
		Benchmark: "SPY",
		Logger:    zerolog.Nop(),
	})
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc, st
}

// correction is 400 against a 450 high: 11.11% down.
var correction = fakeMarket{state: model.MarketState{LastPrice: 400, High52w: 450, DrawdownPercent: 50.0 / 450 * 100}}

func holdings(sp, ta, cash float64) *Holdings {
	return &Holdings{ValueSp: sp, ValueTa: ta, ValueCash: cash}
}

func TestPreview_DoesNotWrite(t *testing.T) {
	svc, st := newService(t, correction)
	ctx := context.Background()

	out, err := svc.Preview(ctx, "u1", Request{Holdings: holdings(18000, 3000, 9000)})
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, model.RecFireAmmo1, out.Result.RecommendationType)
	require.NotNil(t, out.Result.TransferAmount)
	assert.InDelta(t, 3000, *out.Result.TransferAmount, 1e-9)
	assert.Equal(t, model.StatusCorrection, out.Result.MarketStatus)
	assert.Equal(t, report.Title(model.RecFireAmmo1, report.English), out.Title)
	assert.Nil(t, out.Snapshot)

	_, err = st.LatestSnapshot(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	recs, err := st.ListRecommendations(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
	a, err := st.GetAmmoState(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, a.AnyUsed())
}

func TestSave_PersistsAndFiresOnce(t *testing.T) {
	svc, st := newService(t, correction)
	ctx := context.Background()
	req := Request{Holdings: holdings(18000, 3000, 9000)}

	first, err := svc.Save(ctx, "u1", req)
	require.NoError(t, err)
	require.NotNil(t, first.Result)
	assert.Equal(t, model.RecFireAmmo1, first.Result.RecommendationType)
	assert.True(t, first.AmmoChanged)
	assert.True(t, first.Ammo.Tranche1Used)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, "2024-03-01", first.Snapshot.SnapshotMonth)

	second, err := svc.Save(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, model.RecNormal, second.Result.RecommendationType, "tranche 1 is spent for this cycle")
	assert.False(t, second.AmmoChanged)
	assert.Equal(t, first.Snapshot.ID, second.Snapshot.ID, "same month upserts")

	recs, err := st.ListRecommendations(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		require.NotNil(t, r.SnapshotID)
		assert.Equal(t, first.Snapshot.ID, *r.SnapshotID)
	}

	states, err := st.ListMarketStates(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "SPY", states[0].Ticker)
	assert.Equal(t, "2024-03-15", states[0].AsOfDate)
}

func TestSave_ResetReenablesTranche(t *testing.T) {
	svc, _ := newService(t, correction)
	ctx := context.Background()
	req := Request{Holdings: holdings(18000, 3000, 9000)}

	_, err := svc.Save(ctx, "u1", req)
	require.NoError(t, err)
	_, err = svc.ammo.Reset(ctx, "u1")
	require.NoError(t, err)

	out, err := svc.Save(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, model.RecFireAmmo1, out.Result.RecommendationType)
}

func TestSave_ConcurrentSavesFireTrancheOnce(t *testing.T) {
	svc, st := newService(t, correction)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Save(ctx, "u1", Request{Holdings: holdings(18000, 3000, 9000)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recs, err := st.ListRecommendations(ctx, "u1", 50)
	require.NoError(t, err)
	require.Len(t, recs, 8)
	fired := 0
	for _, r := range recs {
		if r.RecommendationType == string(model.RecFireAmmo1) {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
}

func TestSave_MarketUnavailableStillSavesSnapshot(t *testing.T) {
	svc, st := newService(t, fakeMarket{err: errors.New("provider down")})
	ctx := context.Background()

	out, err := svc.Save(ctx, "u1", Request{Holdings: holdings(700, 100, 200), Contribution: 1000})
	require.NoError(t, err)
	assert.Nil(t, out.Result)
	assert.Nil(t, out.Market)
	assert.NotEmpty(t, out.MarketError)
	require.NotNil(t, out.Snapshot)
	require.NotNil(t, out.Contribution)
	assert.Equal(t, 1000.0, out.Contribution.Amount)
	assert.Equal(t, model.ContributionMonthly, out.Contribution.Type)

	recs, err := st.ListRecommendations(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPreview_UsesLatestSnapshotWhenNoHoldings(t *testing.T) {
	svc, st := newService(t, correction)
	ctx := context.Background()

	_, err := st.UpsertSnapshot(ctx, model.NewSnapshot("u1", "2024-02-01", model.NewPortfolioState(18000, 3000, 9000)))
	require.NoError(t, err)

	out, err := svc.Preview(ctx, "u1", Request{})
	require.NoError(t, err)
	assert.Equal(t, 30000.0, out.Portfolio.TotalValue)
	assert.Equal(t, model.RecFireAmmo1, out.Result.RecommendationType)
}

func TestPreview_EmptyPortfolioFallsThroughToNormal(t *testing.T) {
	svc, _ := newService(t, correction)

	out, err := svc.Preview(context.Background(), "nobody", Request{})
	require.NoError(t, err)
	assert.Zero(t, out.Portfolio.TotalValue)
	assert.Equal(t, model.RecNormal, out.Result.RecommendationType)
}

func TestPreview_UsesSavedSettings(t *testing.T) {
	svc, st := newService(t, correction)
	ctx := context.Background()

	custom := testSettings()
	custom.Tranche1Trigger = 12
	custom.Tranche2Trigger = 20
	_, err := st.SaveSettings(ctx, "u1", custom)
	require.NoError(t, err)

	out, err := svc.Preview(ctx, "u1", Request{Holdings: holdings(18000, 3000, 9000)})
	require.NoError(t, err)
	assert.Equal(t, model.RecNormal, out.Result.RecommendationType, "11.11% is below a 12% trigger")
	assert.Equal(t, model.StatusNormal, out.Result.MarketStatus)
}

func TestPreview_Language(t *testing.T) {
	svc, _ := newService(t, correction)

	en, err := svc.Preview(context.Background(), "u1", Request{Holdings: holdings(18000, 3000, 9000)})
	require.NoError(t, err)
	he, err := svc.Preview(context.Background(), "u1", Request{Holdings: holdings(18000, 3000, 9000), Language: "he"})
	require.NoError(t, err)

	assert.Equal(t, report.Title(model.RecFireAmmo1, report.Hebrew), he.Title)
	assert.NotEqual(t, en.Result.RecommendationText, he.Result.RecommendationText)
	assert.Equal(t, en.Result.TransferAmount, he.Result.TransferAmount)
}

func TestPreview_WithCollector(t *testing.T) {
	day := func(s string) time.Time {
		d, _ := time.Parse("2006-01-02", s)
		return d
	}
	mock := &collector.MockFetcher{Bars: []model.PriceBar{
		{Date: day("2024-01-01"), High: 420, Close: 410},
		{Date: day("2024-01-02"), High: 450, Close: 440},
		{Date: day("2024-01-03"), High: 405, Close: 400},
	}}
	col := collector.NewCollector(mock, collector.Options{Logger: zerolog.Nop()})
	svc, _ := newService(t, col)

	out, err := svc.Preview(context.Background(), "u1", Request{Holdings: holdings(18000, 3000, 9000)})
	require.NoError(t, err)
	require.NotNil(t, out.Market)
	assert.Equal(t, 450.0, out.Market.High52w)
	assert.Equal(t, model.RecFireAmmo1, out.Result.RecommendationType)
}

func TestRequestValidation(t *testing.T) {
	svc, _ := newService(t, correction)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		req    Request
	}{
		{"missing user", "", Request{}},
		{"negative contribution", "u1", Request{Contribution: -1}},
		{"negative holdings", "u1", Request{Holdings: holdings(-1, 0, 0)}},
		{"bad type", "u1", Request{ContributionType: "gift"}},
		{"bad month", "u1", Request{Month: "March"}},
		{"bad currency", "u1", Request{Contribution: 10, Currency: "EUR"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Preview(ctx, tt.userID, tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestSave_ResavingMonthReplacesContribution(t *testing.T) {
	svc, st := newService(t, correction)
	ctx := context.Background()

	_, err := svc.Save(ctx, "u1", Request{Holdings: holdings(60000, 10000, 30000)})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Save(ctx, "u1", Request{Contribution: 1000})
		require.NoError(t, err)
	}
	snap, err := st.LatestSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 101000, snap.TotalValue, 1e-6)
	assert.InDelta(t, 60800, snap.ValueSp, 1e-6)
	assert.InDelta(t, 10000, snap.ValueTa, 1e-6)
	assert.InDelta(t, 30200, snap.CashValue, 1e-6)

	c, err := st.GetContribution(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, c.Amount)

	// a different amount replaces the old one rather than stacking
	out, err := svc.Save(ctx, "u1", Request{Contribution: 2500})
	require.NoError(t, err)
	assert.InDelta(t, 102500, out.Snapshot.TotalValue, 1e-6)

	// saving without a contribution keeps the recorded one in place
	out, err = svc.Save(ctx, "u1", Request{})
	require.NoError(t, err)
	assert.InDelta(t, 102500, out.Snapshot.TotalValue, 1e-6)

	// a new month starts from last month's total and adds on top
	out, err = svc.Save(ctx, "u1", Request{Contribution: 500, Month: "2024-04-02"})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", out.Snapshot.SnapshotMonth)
	assert.InDelta(t, 103000, out.Snapshot.TotalValue, 1e-6)
}

func TestSave_ContributionCurrency(t *testing.T) {
	svc, _ := newService(t, correction)
	ctx := context.Background()

	out, err := svc.Save(ctx, "u1", Request{Holdings: holdings(1, 1, 1), Contribution: 100})
	require.NoError(t, err)
	require.NotNil(t, out.Contribution)
	assert.Equal(t, "USD", out.Contribution.Currency, "defaults to the settings currency")

	out, err = svc.Save(ctx, "u1", Request{Holdings: holdings(1, 1, 1), Contribution: 100, Currency: "ILS"})
	require.NoError(t, err)
	assert.Equal(t, "ILS", out.Contribution.Currency)
}

func TestSave_ExplicitMonth(t *testing.T) {
	svc, _ := newService(t, correction)
	out, err := svc.Save(context.Background(), "u1", Request{Holdings: holdings(1, 1, 1), Month: "2023-11-20"})
	require.NoError(t, err)
	assert.Equal(t, "2023-11-01", out.Snapshot.SnapshotMonth)
}

func TestFoldContribution(t *testing.T) {
	st := testSettings()

	p := FoldContribution(Holdings{ValueSp: 100}, 1000, st)
	assert.InDelta(t, 900, p.ValueSp, 1e-9, "no proxy targets: all equity to SP")
	assert.Zero(t, p.ValueTa)
	assert.InDelta(t, 200, p.ValueCash, 1e-9)

	st.SpTargetPercent = 60
	st.TaTargetPercent = 15
	p = FoldContribution(Holdings{}, 1000, st)
	assert.InDelta(t, 640, p.ValueSp, 1e-9)
	assert.InDelta(t, 160, p.ValueTa, 1e-9)
	assert.InDelta(t, 200, p.ValueCash, 1e-9)
	assert.InDelta(t, 1000, p.TotalValue, 1e-9)

	p = FoldContribution(Holdings{ValueSp: 1, ValueTa: 2, ValueCash: 3}, 0, st)
	assert.Equal(t, model.NewPortfolioState(1, 2, 3), p)
}
