package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DrawdownSentinel/internal/analytics"
	"DrawdownSentinel/internal/metrics"
	"DrawdownSentinel/internal/model"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  []model.PriceBar
	Err   error

	mu    sync.Mutex
	Calls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, from, to time.Time) ([]model.PriceBar, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	return generateMockBars(m.Price, from, to), nil
}

// CallCount returns how many times the provider was hit.
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

func generateMockBars(basePrice float64, from, to time.Time) []model.PriceBar {
	days := int(to.Sub(from).Hours() / 24)
	if days <= 0 {
		days = 1
	}
	bars := make([]model.PriceBar, 0, days)
	for i := 0; i < days; i++ {
		p := basePrice * (1 + float64(i-days/2)*0.001)
		bars = append(bars, model.PriceBar{
			Date:  from.AddDate(0, 0, i),
			High:  p * 1.005,
			Close: p,
		})
	}
	return bars
}

// TickerData is the per-ticker part of a market report. A failed ticker carries
// Error and zero values instead of failing the whole report.
type TickerData struct {
	LastPrice       float64                 `json:"last_price"`
	High52w         float64                 `json:"high_52w"`
	DrawdownPercent float64                 `json:"drawdown_percent"`
	CurrentDrawdown float64                 `json:"current_drawdown"`
	TimeSeries      []model.TimeSeriesPoint `json:"time_series"`
	Stats           analytics.Stats         `json:"stats"`
	Error           string                  `json:"error,omitempty"`
}

// MarketReport is the multi-ticker answer.
type MarketReport struct {
	Tickers  map[string]TickerData `json:"tickers"`
	AsOfDate string                `json:"as_of_date"`
}

// Options tunes provider access.
type Options struct {
	// RequestsPerMinute caps provider calls; 0 disables limiting.
	RequestsPerMinute int
	CacheTTL          time.Duration
	// Lookback is the trailing window requested from the provider.
	Lookback time.Duration
	Metrics  *metrics.Registry
	Logger   zerolog.Logger
}

type cacheEntry struct {
	series    analytics.Series
	fetchedAt time.Time
}

// Collector fetches price history and turns it into analytics series, guarding the
// provider with a rate limiter, a circuit breaker and a short-lived cache.
type Collector struct {
	Fetcher Fetcher

	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	cacheTTL time.Duration
	lookback time.Duration
	metrics  *metrics.Registry
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options) *Collector {
	c := &Collector{
		Fetcher:  fetcher,
		cacheTTL: opts.CacheTTL,
		lookback: opts.Lookback,
		metrics:  opts.Metrics,
		log:      opts.Logger.With().Str("component", "collector").Str("provider", fetcher.Name()).Logger(),
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
	if c.lookback <= 0 {
		c.lookback = 365 * 24 * time.Hour
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fetcher.Name(),
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("provider breaker state changed")
			c.metrics.SetBreakerState(name, int(to))
		},
	})
	return c
}

// Series returns the analytics series for symbol, served from cache when fresh.
func (c *Collector) Series(ctx context.Context, symbol string) (analytics.Series, error) {
	if s, ok := c.cached(symbol); ok {
		c.metrics.ObserveCache(true)
		return s, nil
	}
	c.metrics.ObserveCache(false)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return analytics.Series{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	to := c.now().UTC()
	from := to.Add(-c.lookback)
	started := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.Fetcher.FetchDailyBars(ctx, symbol, from, to)
	})
	c.metrics.ObserveProvider(c.Fetcher.Name(), started, err)
	if err != nil {
		return analytics.Series{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	series, err := analytics.ComputeTimeSeries(out.([]model.PriceBar))
	if err != nil {
		return analytics.Series{}, fmt.Errorf("compute %s: %w", symbol, err)
	}
	c.metrics.SetTriggerDrawdown(symbol, series.Summary.DrawdownPercent)
	c.log.Debug().Str("symbol", symbol).Int("bars", len(series.Points)).
		Float64("high_52w", series.Summary.High52w).Msg("series computed")

	c.mu.Lock()
	c.cache[symbol] = cacheEntry{series: series, fetchedAt: c.now()}
	c.mu.Unlock()
	return series, nil
}

// MarketState returns the trigger summary for symbol. A series without a 52-week
// high is reported as analytics.ErrNoHigh.
func (c *Collector) MarketState(ctx context.Context, symbol string) (model.MarketState, error) {
	s, err := c.Series(ctx, symbol)
	if err != nil {
		return model.MarketState{}, err
	}
	if !s.Summary.Available() {
		return model.MarketState{}, fmt.Errorf("market state %s: %w", symbol, analytics.ErrNoHigh)
	}
	return s.Summary, nil
}

// tickerError keeps the provider's own message when it sent one.
func tickerError(sym string, err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrNoData):
		return fmt.Sprintf("No data available for %s", sym)
	default:
		return fmt.Sprintf("Failed to fetch %s data", sym)
	}
}

// Report fetches all symbols concurrently. Per-ticker failures are captured in TickerData.Error.
func (c *Collector) Report(ctx context.Context, symbols []string) MarketReport {
	report := MarketReport{
		Tickers:  make(map[string]TickerData, len(symbols)),
		AsOfDate: c.now().UTC().Format("2006-01-02"),
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			td := TickerData{TimeSeries: []model.TimeSeriesPoint{}}
			s, err := c.Series(ctx, sym)
			if err != nil {
				c.log.Error().Err(err).Str("symbol", sym).Msg("fetch ticker")
				td.Error = tickerError(sym, err)
			} else {
				td.LastPrice = s.Summary.LastPrice
				td.High52w = s.Summary.High52w
				td.DrawdownPercent = s.Summary.DrawdownPercent
				td.CurrentDrawdown = s.CurrentDrawdown
				td.TimeSeries = s.Points
				td.Stats = s.Stats
			}
			mu.Lock()
			report.Tickers[sym] = td
			mu.Unlock()
		}(sym)
	}
	wg.Wait()
	return report
}

// Invalidate drops cached series so the next call hits the provider.
// With no symbols, the whole cache is cleared.
func (c *Collector) Invalidate(symbols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(symbols) == 0 {
		c.cache = make(map[string]cacheEntry)
		return
	}
	for _, s := range symbols {
		delete(c.cache, s)
	}
}

func (c *Collector) cached(symbol string) (analytics.Series, bool) {
	if c.cacheTTL <= 0 {
		return analytics.Series{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[symbol]
	if !ok || c.now().Sub(e.fetchedAt) > c.cacheTTL {
		return analytics.Series{}, false
	}
	return e.series, true
}
