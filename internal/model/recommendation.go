package model

import (
	"strings"
	"time"
)

// RecommendationType is the closed set of engine outcomes.
type RecommendationType string

const (
	RecStopCashOverMax RecommendationType = "STOP_CASH_OVER_MAX"
	RecFireAmmo3       RecommendationType = "FIRE_AMMO_3"
	RecFireAmmo2       RecommendationType = "FIRE_AMMO_2"
	RecFireAmmo1       RecommendationType = "FIRE_AMMO_1"
	RecRebuildAmmo     RecommendationType = "REBUILD_AMMO"
	RecNormal          RecommendationType = "NORMAL"
)

// FireAmmo returns the FIRE_AMMO type for tranche 1..3.
func FireAmmo(tranche int) RecommendationType {
	switch tranche {
	case 1:
		return RecFireAmmo1
	case 2:
		return RecFireAmmo2
	case 3:
		return RecFireAmmo3
	}
	return ""
}

// Tranche returns the tranche index named by a FIRE_AMMO type, or 0.
func (t RecommendationType) Tranche() int {
	switch t {
	case RecFireAmmo1:
		return 1
	case RecFireAmmo2:
		return 2
	case RecFireAmmo3:
		return 3
	}
	return 0
}

// IsFireAmmo reports whether the type deploys a tranche.
func (t RecommendationType) IsFireAmmo() bool {
	return strings.HasPrefix(string(t), "FIRE_AMMO_")
}

// StrategyResult is the engine output. TransferAmount nil means no money movement.
// The numeric detail fields carry everything a presenter needs to render text in
// any language.
type StrategyResult struct {
	RecommendationType RecommendationType `json:"recommendation_type"`
	RecommendationText string             `json:"recommendation_text"`
	TransferAmount     *float64           `json:"transfer_amount"`
	MarketStatus       MarketStatus       `json:"market_status"`
	Priority           int                `json:"priority"`

	DrawdownPercent    float64 `json:"drawdown_percent"`
	CashPercent        float64 `json:"cash_percent"`
	TargetPercent      float64 `json:"target_percent,omitempty"`
	TrancheIndex       int     `json:"tranche_index,omitempty"`
	CashContribution   float64 `json:"cash_contribution,omitempty"`
	StocksContribution float64 `json:"stocks_contribution,omitempty"`
	Currency           string  `json:"currency"`
}

// RecommendationRecord is one row of the append-only recommendation log.
type RecommendationRecord struct {
	ID                 string    `db:"id" json:"id"`
	UserID             string    `db:"user_id" json:"user_id"`
	SnapshotID         *string   `db:"snapshot_id" json:"snapshot_id"`
	RecommendationType string    `db:"recommendation_type" json:"recommendation_type"`
	RecommendationText string    `db:"recommendation_text" json:"recommendation_text"`
	TransferAmount     *float64  `db:"transfer_amount" json:"transfer_amount"`
	DrawdownPercent    *float64  `db:"drawdown_percent" json:"drawdown_percent"`
	MarketStatus       *string   `db:"market_status" json:"market_status"`
	Priority           int       `db:"priority" json:"priority"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
