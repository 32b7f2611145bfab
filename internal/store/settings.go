package store

import (
	"context"
	"fmt"

	"DrawdownSentinel/internal/model"
	"DrawdownSentinel/internal/settings"
)

const settingsColumns = `user_id, stocks_target_percent, cash_target_percent, cash_min_pct, cash_max_pct,
	snp_target_percent, ta125_target_percent, tranche_1_trigger, tranche_2_trigger, tranche_3_trigger,
	rebuild_threshold, contribution_split_cash_percent, contribution_split_stocks_percent,
	monthly_contribution_total, currency, updated_at`

// GetSettings returns the saved settings for userID or ErrNotFound.
func (s *Store) GetSettings(ctx context.Context, userID string) (model.Settings, error) {
	var out model.Settings
	err := s.get(ctx, &out, `SELECT `+settingsColumns+` FROM user_settings WHERE user_id = ?`, userID)
	if err != nil {
		return model.Settings{}, fmt.Errorf("get settings %s: %w", userID, err)
	}
	return out, nil
}

// SaveSettings validates and upserts settings. Invalid settings are rejected
// with an error wrapping settings.ErrInvalid and nothing is written.
func (s *Store) SaveSettings(ctx context.Context, userID string, in model.Settings) (model.Settings, error) {
	if err := settings.Validate(in); err != nil {
		return model.Settings{}, err
	}
	in.UserID = userID
	in.UpdatedAt = s.now()

	err := s.exec(ctx, `INSERT INTO user_settings (`+settingsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			stocks_target_percent = excluded.stocks_target_percent,
			cash_target_percent = excluded.cash_target_percent,
			cash_min_pct = excluded.cash_min_pct,
			cash_max_pct = excluded.cash_max_pct,
			snp_target_percent = excluded.snp_target_percent,
			ta125_target_percent = excluded.ta125_target_percent,
			tranche_1_trigger = excluded.tranche_1_trigger,
			tranche_2_trigger = excluded.tranche_2_trigger,
			tranche_3_trigger = excluded.tranche_3_trigger,
			rebuild_threshold = excluded.rebuild_threshold,
			contribution_split_cash_percent = excluded.contribution_split_cash_percent,
			contribution_split_stocks_percent = excluded.contribution_split_stocks_percent,
			monthly_contribution_total = excluded.monthly_contribution_total,
			currency = excluded.currency,
			updated_at = excluded.updated_at`,
		in.UserID, in.StocksTargetPercent, in.CashTargetPercent, in.CashMinPct, in.CashMaxPct,
		in.SpTargetPercent, in.TaTargetPercent, in.Tranche1Trigger, in.Tranche2Trigger, in.Tranche3Trigger,
		in.RebuildThreshold, in.ContributionSplitCashPercent, in.ContributionSplitStocksPercent,
		in.MonthlyContributionTotal, in.Currency, in.UpdatedAt)
	if err != nil {
		return model.Settings{}, fmt.Errorf("save settings %s: %w", userID, err)
	}
	return in, nil
}
