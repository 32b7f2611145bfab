package analytics

import (
	"errors"

	"DrawdownSentinel/internal/model"
)

// ErrNoHigh is returned when the 52-week high is zero or negative and the drawdown is undefined.
var ErrNoHigh = errors.New("52-week high unavailable")

// TriggerDrawdown returns how far lastPrice sits below high52w, in percent.
// This is the figure compared against tranche triggers; it is never rounded.
func TriggerDrawdown(lastPrice, high52w float64) (float64, error) {
	if high52w <= 0 {
		return 0, ErrNoHigh
	}
	return (high52w - lastPrice) / high52w * 100, nil
}

// NewMarketState builds a MarketState from a last price and 52-week high.
func NewMarketState(lastPrice, high52w float64) (model.MarketState, error) {
	dd, err := TriggerDrawdown(lastPrice, high52w)
	if err != nil {
		return model.MarketState{}, err
	}
	return model.MarketState{LastPrice: lastPrice, High52w: high52w, DrawdownPercent: dd}, nil
}
