package analytics

import (
	"math"

	"DrawdownSentinel/internal/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// Stats are whole-window figures shown next to the chart.
type Stats struct {
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	AnnualizedVolPct float64 `json:"annualized_vol_pct"`
	TradingDays      int     `json:"trading_days"`
}

// ComputeStats derives window statistics from an already computed series.
func ComputeStats(points []model.TimeSeriesPoint) Stats {
	s := Stats{TradingDays: len(points)}
	if len(points) == 0 {
		return s
	}

	drawdowns := make([]float64, len(points))
	for i, p := range points {
		drawdowns[i] = p.DrawdownPct
	}
	s.MaxDrawdownPct = floats.Max(drawdowns)
	s.TotalReturnPct = points[len(points)-1].ReturnPct

	// Needs at least two returns for a sample standard deviation.
	if len(points) < 3 {
		return s
	}
	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (points[i].Close-prev)/prev)
	}
	if len(returns) < 2 {
		return s
	}
	s.AnnualizedVolPct = Round2(stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear) * 100)
	return s
}
