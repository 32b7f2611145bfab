package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"DrawdownSentinel/internal/model"
)

const twelveDataBaseURL = "https://api.twelvedata.com"

// TwelveDataFetcher implements Fetcher using the Twelve Data time_series endpoint.
type TwelveDataFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewTwelveDataFetcher creates a fetcher with optional proxy support.
func NewTwelveDataFetcher(apiKey, proxyURL string) *TwelveDataFetcher {
	return &TwelveDataFetcher{
		BaseURL: twelveDataBaseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *TwelveDataFetcher) Name() string { return "twelvedata" }

// tdSeries is the time_series response. Numbers arrive as strings.
type tdSeries struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		High     string `json:"high"`
		Close    string `json:"close"`
	} `json:"values"`
}

func (f *TwelveDataFetcher) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.PriceBar, error) {
	if f.APIKey == "" {
		return nil, fmt.Errorf("twelvedata: api key is not configured")
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1day")
	q.Set("start_date", from.Format("2006-01-02"))
	q.Set("end_date", to.Format("2006-01-02"))
	q.Set("apikey", f.APIKey)
	endpoint := f.BaseURL + "/time_series?" + q.Encode()

	var series tdSeries
	if err := getJSON(ctx, f.Client, "twelvedata", endpoint, nil, &series); err != nil {
		return nil, err
	}
	if series.Status == "error" {
		return nil, &APIError{Provider: "twelvedata", Message: series.Message}
	}
	if len(series.Values) == 0 {
		return nil, fmt.Errorf("twelvedata %s: %w", symbol, ErrNoData)
	}

	bars := make([]model.PriceBar, 0, len(series.Values))
	for _, v := range series.Values {
		date, err := parseTDDate(v.Datetime)
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s: parse datetime %q: %w", symbol, v.Datetime, err)
		}
		high, err := strconv.ParseFloat(v.High, 64)
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s: parse high %q: %w", symbol, v.High, err)
		}
		closePrice, err := strconv.ParseFloat(v.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s: parse close %q: %w", symbol, v.Close, err)
		}
		bars = append(bars, model.PriceBar{Date: date, High: high, Close: closePrice})
	}
	return bars, nil
}

func parseTDDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
