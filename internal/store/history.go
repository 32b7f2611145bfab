package store

import (
	"context"
	"fmt"

	"DrawdownSentinel/internal/model"
)

// DefaultListLimit caps history listings when the caller passes no limit.
const DefaultListLimit = 50

// AppendRecommendation adds a row to the recommendation log.
func (s *Store) AppendRecommendation(ctx context.Context, r model.RecommendationRecord) (model.RecommendationRecord, error) {
	r.ID = newID()
	r.CreatedAt = s.now()
	err := s.exec(ctx, `INSERT INTO recommendations_log (id, user_id, snapshot_id, recommendation_type,
			recommendation_text, transfer_amount, drawdown_percent, market_status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.SnapshotID, r.RecommendationType, r.RecommendationText,
		r.TransferAmount, r.DrawdownPercent, r.MarketStatus, r.Priority, r.CreatedAt)
	if err != nil {
		return model.RecommendationRecord{}, fmt.Errorf("append recommendation %s: %w", r.UserID, err)
	}
	return r, nil
}

// ListRecommendations returns the newest recommendations first.
func (s *Store) ListRecommendations(ctx context.Context, userID string, limit int) ([]model.RecommendationRecord, error) {
	out := []model.RecommendationRecord{}
	err := s.selectAll(ctx, &out, `SELECT id, user_id, snapshot_id, recommendation_type, recommendation_text,
			transfer_amount, drawdown_percent, market_status, priority, created_at
		FROM recommendations_log WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recommendations %s: %w", userID, err)
	}
	return out, nil
}

// AppendMarketState adds a row to the market state log.
func (s *Store) AppendMarketState(ctx context.Context, m model.MarketStateRecord) (model.MarketStateRecord, error) {
	m.ID = newID()
	m.CreatedAt = s.now()
	if m.AsOfDate == "" {
		m.AsOfDate = m.CreatedAt.Format("2006-01-02")
	}
	err := s.exec(ctx, `INSERT INTO market_state (id, user_id, ticker, last_price, high_52w, drawdown_percent, as_of_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Ticker, m.LastPrice, m.High52w, m.DrawdownPercent, m.AsOfDate, m.CreatedAt)
	if err != nil {
		return model.MarketStateRecord{}, fmt.Errorf("append market state %s: %w", m.UserID, err)
	}
	return m, nil
}

// ListMarketStates returns the newest market state rows first.
func (s *Store) ListMarketStates(ctx context.Context, userID string, limit int) ([]model.MarketStateRecord, error) {
	out := []model.MarketStateRecord{}
	err := s.selectAll(ctx, &out, `SELECT id, user_id, ticker, last_price, high_52w, drawdown_percent, as_of_date, created_at
		FROM market_state WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list market states %s: %w", userID, err)
	}
	return out, nil
}

// ListUserIDs returns every user with saved settings or a snapshot.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	out := []string{}
	err := s.selectAll(ctx, &out, `SELECT user_id FROM user_settings
		UNION SELECT user_id FROM portfolio_snapshots ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func listLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultListLimit
	}
	return limit
}
