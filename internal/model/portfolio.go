package model

import "time"

// PortfolioState is a snapshot of the three buckets with derived allocation percentages.
type PortfolioState struct {
	ValueSp     float64 `json:"value_sp"`
	ValueTa     float64 `json:"value_ta"`
	ValueCash   float64 `json:"value_cash"`
	TotalValue  float64 `json:"total_value"`
	PercentSp   float64 `json:"percent_sp"`
	PercentTa   float64 `json:"percent_ta"`
	PercentCash float64 `json:"percent_cash"`
}

// NewPortfolioState derives totals and percentages. All percentages are 0 when the
// portfolio is empty.
func NewPortfolioState(valueSp, valueTa, valueCash float64) PortfolioState {
	p := PortfolioState{
		ValueSp:    valueSp,
		ValueTa:    valueTa,
		ValueCash:  valueCash,
		TotalValue: valueSp + valueTa + valueCash,
	}
	if p.TotalValue > 0 {
		p.PercentSp = valueSp / p.TotalValue * 100
		p.PercentTa = valueTa / p.TotalValue * 100
		p.PercentCash = valueCash / p.TotalValue * 100
	}
	return p
}

// StocksValue is the combined equity value.
func (p PortfolioState) StocksValue() float64 {
	return p.ValueSp + p.ValueTa
}

// StocksPercent is the combined equity allocation.
func (p PortfolioState) StocksPercent() float64 {
	return p.PercentSp + p.PercentTa
}

// ContributionType classifies a deposit.
type ContributionType string

const (
	ContributionMonthly    ContributionType = "monthly"
	ContributionBonus      ContributionType = "bonus"
	ContributionAdjustment ContributionType = "adjustment"
)

// Contribution is money added to the portfolio alongside a snapshot.
type Contribution struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	SnapshotID string           `db:"snapshot_id" json:"snapshot_id"`
	Amount     float64          `db:"amount" json:"amount"`
	Currency   string           `db:"currency" json:"currency"`
	Type       ContributionType `db:"contribution_type" json:"contribution_type"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// Snapshot is the persisted monthly portfolio row. One per user per calendar month.
type Snapshot struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	SnapshotMonth string    `db:"snapshot_month" json:"snapshot_month"`
	ValueSp       float64   `db:"value_sp" json:"value_sp"`
	ValueTa       float64   `db:"value_ta" json:"value_ta"`
	CashValue     float64   `db:"cash_value" json:"cash_value"`
	StocksValue   float64   `db:"stocks_value" json:"stocks_value"`
	TotalValue    float64   `db:"total_value" json:"total_value"`
	CashPercent   float64   `db:"cash_percent" json:"cash_percent"`
	StocksPercent float64   `db:"stocks_percent" json:"stocks_percent"`
	PercentSp     float64   `db:"percent_sp" json:"percent_sp"`
	PercentTa     float64   `db:"percent_ta" json:"percent_ta"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SnapshotMonth returns the monthly period key (first day of the month) for t.
func SnapshotMonth(t time.Time) string {
	return t.Format("2006-01") + "-01"
}

// NewSnapshot builds the monthly row for a portfolio state.
func NewSnapshot(userID string, month string, p PortfolioState) Snapshot {
	return Snapshot{
		UserID:        userID,
		SnapshotMonth: month,
		ValueSp:       p.ValueSp,
		ValueTa:       p.ValueTa,
		CashValue:     p.ValueCash,
		StocksValue:   p.StocksValue(),
		TotalValue:    p.TotalValue,
		CashPercent:   p.PercentCash,
		StocksPercent: p.StocksPercent(),
		PercentSp:     p.PercentSp,
		PercentTa:     p.PercentTa,
	}
}

// State rebuilds the evaluation input from a persisted snapshot.
func (s Snapshot) State() PortfolioState {
	return NewPortfolioState(s.ValueSp, s.ValueTa, s.CashValue)
}
