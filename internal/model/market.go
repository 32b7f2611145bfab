package model

import "time"

// PriceBar represents a single trading day as returned by the price provider.
type PriceBar struct {
	Date  time.Time
	High  float64
	Close float64
}

// TimeSeriesPoint is one derived point of the charting series.
// DrawdownPct is measured from the running peak close, not from the 52-week high.
type TimeSeriesPoint struct {
	Date        time.Time `json:"date"`
	Close       float64   `json:"close"`
	ReturnPct   float64   `json:"return_pct"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

// MarketState summarizes the latest evaluation point of a ticker.
type MarketState struct {
	LastPrice       float64 `json:"last_price"`
	High52w         float64 `json:"high_52w"`
	DrawdownPercent float64 `json:"drawdown_percent"`
}

// Available reports whether the state carries real data. A zero 52-week high
// means the provider returned nothing usable, not a 0% drawdown.
func (m MarketState) Available() bool {
	return m.High52w > 0
}

// MarketStatus is the coarse drawdown severity.
type MarketStatus string

const (
	StatusNormal     MarketStatus = "normal"
	StatusCorrection MarketStatus = "correction"
	StatusBear       MarketStatus = "bear"
	StatusCrash      MarketStatus = "crash"
)

// MarketStateRecord is one row of the append-only market state log.
type MarketStateRecord struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Ticker          string    `db:"ticker" json:"ticker"`
	LastPrice       float64   `db:"last_price" json:"last_price"`
	High52w         float64   `db:"high_52w" json:"high_52w"`
	DrawdownPercent *float64  `db:"drawdown_percent" json:"drawdown_percent"`
	AsOfDate        string    `db:"as_of_date" json:"as_of_date"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
