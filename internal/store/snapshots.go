package store

import (
	"context"
	"fmt"

	"DrawdownSentinel/internal/model"
)

const snapshotColumns = `id, user_id, snapshot_month, value_sp, value_ta, cash_value, stocks_value,
	total_value, cash_percent, stocks_percent, percent_sp, percent_ta, created_at, updated_at`

// LatestSnapshot returns the most recent monthly snapshot or ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context, userID string) (model.Snapshot, error) {
	var out model.Snapshot
	err := s.get(ctx, &out, `SELECT `+snapshotColumns+` FROM portfolio_snapshots
		WHERE user_id = ? ORDER BY snapshot_month DESC LIMIT 1`, userID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("latest snapshot %s: %w", userID, err)
	}
	return out, nil
}

// UpsertSnapshot writes the snapshot for (user, month). A second write in the
// same month replaces the values and keeps the row id.
func (s *Store) UpsertSnapshot(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	now := s.now()
	snap.ID = newID()
	snap.CreatedAt = now
	snap.UpdatedAt = now

	err := s.exec(ctx, `INSERT INTO portfolio_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, snapshot_month) DO UPDATE SET
			value_sp = excluded.value_sp,
			value_ta = excluded.value_ta,
			cash_value = excluded.cash_value,
			stocks_value = excluded.stocks_value,
			total_value = excluded.total_value,
			cash_percent = excluded.cash_percent,
			stocks_percent = excluded.stocks_percent,
			percent_sp = excluded.percent_sp,
			percent_ta = excluded.percent_ta,
			updated_at = excluded.updated_at`,
		snap.ID, snap.UserID, snap.SnapshotMonth, snap.ValueSp, snap.ValueTa, snap.CashValue, snap.StocksValue,
		snap.TotalValue, snap.CashPercent, snap.StocksPercent, snap.PercentSp, snap.PercentTa,
		snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("upsert snapshot %s %s: %w", snap.UserID, snap.SnapshotMonth, err)
	}

	var out model.Snapshot
	if err := s.get(ctx, &out, `SELECT `+snapshotColumns+` FROM portfolio_snapshots
		WHERE user_id = ? AND snapshot_month = ?`, snap.UserID, snap.SnapshotMonth); err != nil {
		return model.Snapshot{}, fmt.Errorf("reload snapshot: %w", err)
	}
	return out, nil
}

// UpsertContribution records the single contribution attached to a snapshot.
func (s *Store) UpsertContribution(ctx context.Context, c model.Contribution) (model.Contribution, error) {
	c.ID = newID()
	c.CreatedAt = s.now()
	if c.Type == "" {
		c.Type = model.ContributionMonthly
	}
	err := s.exec(ctx, `INSERT INTO contributions (id, user_id, snapshot_id, amount, currency, contribution_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (snapshot_id) DO UPDATE SET
			amount = excluded.amount,
			currency = excluded.currency,
			contribution_type = excluded.contribution_type`,
		c.ID, c.UserID, c.SnapshotID, c.Amount, c.Currency, string(c.Type), c.CreatedAt)
	if err != nil {
		return model.Contribution{}, fmt.Errorf("upsert contribution %s: %w", c.SnapshotID, err)
	}

	var out model.Contribution
	if err := s.get(ctx, &out, `SELECT id, user_id, snapshot_id, amount, currency, contribution_type, created_at
		FROM contributions WHERE snapshot_id = ?`, c.SnapshotID); err != nil {
		return model.Contribution{}, fmt.Errorf("reload contribution: %w", err)
	}
	return out, nil
}

// ListSnapshots returns every snapshot for the user, oldest month first.
func (s *Store) ListSnapshots(ctx context.Context, userID string) ([]model.Snapshot, error) {
	out := []model.Snapshot{}
	if err := s.selectAll(ctx, &out, `SELECT `+snapshotColumns+` FROM portfolio_snapshots
		WHERE user_id = ? ORDER BY snapshot_month ASC`, userID); err != nil {
		return nil, fmt.Errorf("list snapshots %s: %w", userID, err)
	}
	return out, nil
}

// GetContribution returns the contribution attached to a snapshot or ErrNotFound.
func (s *Store) GetContribution(ctx context.Context, snapshotID string) (model.Contribution, error) {
	var out model.Contribution
	if err := s.get(ctx, &out, `SELECT id, user_id, snapshot_id, amount, currency, contribution_type, created_at
		FROM contributions WHERE snapshot_id = ?`, snapshotID); err != nil {
		return model.Contribution{}, fmt.Errorf("contribution %s: %w", snapshotID, err)
	}
	return out, nil
}
