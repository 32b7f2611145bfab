package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"DrawdownSentinel/internal/model"
)

// ErrNegativePrice is returned when a bar carries a negative high or close.
var ErrNegativePrice = errors.New("negative price in bar")

// Series is the chronologically ascending chart series plus its summary.
type Series struct {
	Points []model.TimeSeriesPoint `json:"time_series"`
	// Summary.DrawdownPercent is the unrounded trigger drawdown from High52w.
	Summary model.MarketState `json:"summary"`
	// CurrentDrawdown is the rounded running-close drawdown of the last point.
	CurrentDrawdown float64 `json:"current_drawdown"`
	Stats           Stats   `json:"stats"`
}

// ComputeTimeSeries sorts bars by date and derives the cumulative return and the
// drawdown from the running peak close for every bar. The 52-week high is the
// maximum High over the whole window.
//
// Empty input yields an empty series whose summary is not Available.
func ComputeTimeSeries(bars []model.PriceBar) (Series, error) {
	if len(bars) == 0 {
		return Series{Points: []model.TimeSeriesPoint{}}, nil
	}
	for i, b := range bars {
		if b.High < 0 || b.Close < 0 {
			return Series{}, fmt.Errorf("bar %d (%s): %w", i, b.Date.Format("2006-01-02"), ErrNegativePrice)
		}
	}

	sorted := make([]model.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	firstClose := sorted[0].Close
	var high52w, runningHigh float64
	points := make([]model.TimeSeriesPoint, len(sorted))

	for i, b := range sorted {
		if b.High > high52w {
			high52w = b.High
		}
		if b.Close > runningHigh {
			runningHigh = b.Close
		}

		var returnPct float64
		if firstClose > 0 {
			returnPct = (b.Close - firstClose) / firstClose * 100
		}
		var drawdownPct float64
		if runningHigh > 0 {
			drawdownPct = (runningHigh - b.Close) / runningHigh * 100
		}

		points[i] = model.TimeSeriesPoint{
			Date:        b.Date,
			Close:       b.Close,
			ReturnPct:   Round2(returnPct),
			DrawdownPct: Round2(drawdownPct),
		}
	}

	last := points[len(points)-1]
	summary := model.MarketState{LastPrice: last.Close, High52w: high52w}
	if dd, err := TriggerDrawdown(last.Close, high52w); err == nil {
		summary.DrawdownPercent = dd
	}

	return Series{
		Points:          points,
		Summary:         summary,
		CurrentDrawdown: last.DrawdownPct,
		Stats:           ComputeStats(points),
	}, nil
}

// Round2 rounds half-up to two decimal places.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
