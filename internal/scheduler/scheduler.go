package scheduler

import (
	"context"
	"fmt"
	"time"

	"DrawdownSentinel/internal/collector"
	"DrawdownSentinel/internal/model"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// MarketRefresher is the collector surface the daily job needs.
type MarketRefresher interface {
	Invalidate(symbols ...string)
	Report(ctx context.Context, symbols []string) collector.MarketReport
}

// MarketLog records benchmark state for every known user.
type MarketLog interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	AppendMarketState(ctx context.Context, m model.MarketStateRecord) (model.MarketStateRecord, error)
}

// Scheduler manages the cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Market    MarketRefresher
	Log       MarketLog
	Benchmark string
	Symbols   []string
	Ctx       context.Context

	log zerolog.Logger
}

// NewScheduler creates a new Scheduler. symbols always includes the benchmark.
func NewScheduler(ctx context.Context, market MarketRefresher, ml MarketLog, benchmark string, symbols []string, log zerolog.Logger) *Scheduler {
	all := []string{benchmark}
	for _, s := range symbols {
		if s != benchmark {
			all = append(all, s)
		}
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Market:    market,
		Log:       ml,
		Benchmark: benchmark,
		Symbols:   all,
		Ctx:       ctx,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the daily market refresh.
func (s *Scheduler) RegisterAll(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyRefresh); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunDailyNow executes the daily refresh immediately and returns the number of
// market state rows written.
func (s *Scheduler) RunDailyNow() int {
	return s.refresh()
}

func (s *Scheduler) dailyRefresh() {
	s.refresh()
}

// refresh bypasses the cache, fetches every symbol and appends the
// benchmark state for each user. It returns the number of rows written.
func (s *Scheduler) refresh() int {
	s.log.Info().Strs("symbols", s.Symbols).Msg("running daily market refresh")
	ctx, cancel := context.WithTimeout(s.Ctx, 5*time.Minute)
	defer cancel()

	s.Market.Invalidate(s.Symbols...)
	report := s.Market.Report(ctx, s.Symbols)
	for sym, td := range report.Tickers {
		if td.Error != "" {
			s.log.Error().Str("symbol", sym).Str("error", td.Error).Msg("daily refresh ticker failed")
		}
	}

	bench, ok := report.Tickers[s.Benchmark]
	if !ok || bench.Error != "" || bench.High52w <= 0 {
		s.log.Warn().Str("symbol", s.Benchmark).Msg("benchmark unavailable, market state not recorded")
		return 0
	}

	users, err := s.Log.ListUserIDs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list users")
		return 0
	}

	written := 0
	for _, userID := range users {
		dd := bench.DrawdownPercent
		if _, err := s.Log.AppendMarketState(ctx, model.MarketStateRecord{
			UserID:          userID,
			Ticker:          s.Benchmark,
			LastPrice:       bench.LastPrice,
			High52w:         bench.High52w,
			DrawdownPercent: &dd,
			AsOfDate:        report.AsOfDate,
		}); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("record market state")
			continue
		}
		written++
	}
	s.log.Info().Int("users", written).Float64("drawdown", bench.DrawdownPercent).Msg("daily market refresh done")
	return written
}
