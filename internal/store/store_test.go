package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"DrawdownSentinel/internal/model"
	"DrawdownSentinel/internal/settings"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// strictly increasing clock so newest-first listings are deterministic
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestSettings_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSettings(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	in := settings.Defaults()
	in.Tranche1Trigger = 12
	saved, err := s.SaveSettings(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, "u1", saved.UserID)

	got, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.Tranche1Trigger)
	assert.Equal(t, "USD", got.Currency)

	in.Currency = "ILS"
	_, err = s.SaveSettings(ctx, "u1", in)
	require.NoError(t, err)
	got, err = s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ILS", got.Currency)
}

func TestSettings_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := settings.Defaults()
	bad.Tranche3Trigger = 15 // below tranche 2
	_, err := s.SaveSettings(ctx, "u1", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, settings.ErrInvalid)

	_, err = s.GetSettings(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound, "invalid settings must not be written")
}

func TestAmmo_DefaultAndUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.GetAmmoState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", a.UserID)
	assert.False(t, a.AnyUsed())

	_, err = s.UpsertAmmoState(ctx, a.WithUsed(2))
	require.NoError(t, err)
	a, err = s.GetAmmoState(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, a.Tranche1Used)
	assert.True(t, a.Tranche2Used)
	assert.False(t, a.Tranche3Used)

	_, err = s.UpsertAmmoState(ctx, model.AmmoState{UserID: "u1"})
	require.NoError(t, err)
	a, err = s.GetAmmoState(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, a.AnyUsed())
}

func TestSnapshot_UpsertPerMonth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LatestSnapshot(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.UpsertSnapshot(ctx, model.NewSnapshot("u1", "2024-03-01", model.NewPortfolioState(600, 200, 200)))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := s.UpsertSnapshot(ctx, model.NewSnapshot("u1", "2024-03-01", model.NewPortfolioState(700, 200, 100)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same month keeps the row")
	assert.Equal(t, 700.0, second.ValueSp)
	assert.Equal(t, 10.0, second.CashPercent)

	april, err := s.UpsertSnapshot(ctx, model.NewSnapshot("u1", "2024-04-01", model.NewPortfolioState(1, 1, 1)))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, april.ID)

	latest, err := s.LatestSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", latest.SnapshotMonth)
}

func TestContribution_OnePerSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.UpsertSnapshot(ctx, model.NewSnapshot("u1", "2024-03-01", model.NewPortfolioState(1, 0, 1)))
	require.NoError(t, err)

	c1, err := s.UpsertContribution(ctx, model.Contribution{UserID: "u1", SnapshotID: snap.ID, Amount: 1000, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, model.ContributionMonthly, c1.Type)

	c2, err := s.UpsertContribution(ctx, model.Contribution{
		UserID: "u1", SnapshotID: snap.ID, Amount: 2500, Currency: "USD", Type: model.ContributionBonus,
	})
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, 2500.0, c2.Amount)
	assert.Equal(t, model.ContributionBonus, c2.Type)
}

func TestHistory_AppendAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	amount := 3000.0
	dd := 11.11
	status := string(model.StatusCorrection)
	for _, typ := range []model.RecommendationType{model.RecNormal, model.RecFireAmmo1} {
		r := model.RecommendationRecord{
			UserID:             "u1",
			RecommendationType: string(typ),
			RecommendationText: "text",
			DrawdownPercent:    &dd,
			MarketStatus:       &status,
			Priority:           6,
		}
		if typ == model.RecFireAmmo1 {
			r.TransferAmount = &amount
			r.Priority = 4
		}
		_, err := s.AppendRecommendation(ctx, r)
		require.NoError(t, err)
	}
	_, err := s.AppendRecommendation(ctx, model.RecommendationRecord{UserID: "u2", RecommendationType: "NORMAL", Priority: 6})
	require.NoError(t, err)

	recs, err := s.ListRecommendations(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "FIRE_AMMO_1", recs[0].RecommendationType, "newest first")
	require.NotNil(t, recs[0].TransferAmount)
	assert.Equal(t, 3000.0, *recs[0].TransferAmount)
	assert.Nil(t, recs[1].TransferAmount)
	assert.Nil(t, recs[0].SnapshotID)

	recs, err = s.ListRecommendations(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	m, err := s.AppendMarketState(ctx, model.MarketStateRecord{UserID: "u1", Ticker: "SPY", LastPrice: 400, High52w: 450, DrawdownPercent: &dd})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", m.AsOfDate)

	states, err := s.ListMarketStates(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 450.0, states[0].High52w)

	empty, err := s.ListMarketStates(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListUserIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveSettings(ctx, "bob", settings.Defaults())
	require.NoError(t, err)
	_, err = s.UpsertSnapshot(ctx, model.NewSnapshot("alice", "2024-03-01", model.NewPortfolioState(1, 1, 1)))
	require.NoError(t, err)
	_, err = s.UpsertSnapshot(ctx, model.NewSnapshot("bob", "2024-03-01", model.NewPortfolioState(1, 1, 1)))
	require.NoError(t, err)

	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *Store) error {
		if _, err := tx.UpsertAmmoState(ctx, model.AmmoState{UserID: "u1", Tranche1Used: true}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	a, err := s.GetAmmoState(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, a.Tranche1Used)

	err = s.InTx(ctx, func(tx *Store) error {
		_, err := tx.UpsertAmmoState(ctx, model.AmmoState{UserID: "u1", Tranche1Used: true})
		return err
	})
	require.NoError(t, err)
	a, err = s.GetAmmoState(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, a.Tranche1Used)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, listLimit(0))
	assert.Equal(t, DefaultListLimit, listLimit(-3))
	assert.Equal(t, DefaultListLimit, listLimit(10000))
	assert.Equal(t, 7, listLimit(7))
}

func TestOpen_CreatesDatabaseDir(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "data", "nested", "sentinel.db")

	s, err := Open(ctx, Config{Driver: "sqlite", DSN: dsn}, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.SaveSettings(ctx, "u1", settings.Defaults())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Driver: "sqlite", DSN: dsn}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
}

func TestSqliteFile(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ""},
		{"file::memory:?cache=shared", ""},
		{"file:test.db?mode=memory", ""},
		{"", ""},
		{"data/drawdown_sentinel.db", "data/drawdown_sentinel.db"},
		{"file:data/x.db?_pragma=busy_timeout(5000)", "data/x.db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqliteFile(tt.dsn), tt.dsn)
	}
}

func TestListSnapshots_OldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.ListSnapshots(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, month := range []string{"2024-04-01", "2024-02-01", "2024-03-01"} {
		_, err := s.UpsertSnapshot(ctx, model.NewSnapshot("u1", month, model.NewPortfolioState(1, 1, 1)))
		require.NoError(t, err)
	}
	_, err = s.UpsertSnapshot(ctx, model.NewSnapshot("u2", "2024-01-01", model.NewPortfolioState(1, 1, 1)))
	require.NoError(t, err)

	snaps, err := s.ListSnapshots(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "2024-02-01", snaps[0].SnapshotMonth)
	assert.Equal(t, "2024-03-01", snaps[1].SnapshotMonth)
	assert.Equal(t, "2024-04-01", snaps[2].SnapshotMonth)
}

func TestGetContribution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.UpsertSnapshot(ctx, model.NewSnapshot("u1", "2024-03-01", model.NewPortfolioState(1, 0, 1)))
	require.NoError(t, err)

	_, err = s.GetContribution(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpsertContribution(ctx, model.Contribution{
		UserID: "u1", SnapshotID: snap.ID, Amount: 1500, Currency: "ILS", Type: model.ContributionBonus,
	})
	require.NoError(t, err)

	c, err := s.GetContribution(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, c.Amount)
	assert.Equal(t, "ILS", c.Currency)
	assert.Equal(t, model.ContributionBonus, c.Type)
	assert.Equal(t, "u1", c.UserID)
}
