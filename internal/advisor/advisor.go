// Package advisor runs the preview-then-save evaluation flow: load the user's
// settings, ammo and latest snapshot, fold in a pending contribution, fetch the
// benchmark's market state and ask the strategy engine for one recommendation.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"DrawdownSentinel/internal/ammo"
	"DrawdownSentinel/internal/metrics"
	"DrawdownSentinel/internal/model"
	"DrawdownSentinel/internal/report"
	"DrawdownSentinel/internal/store"
	"DrawdownSentinel/internal/strategy"

	"github.com/rs/zerolog"
)

// ErrInvalidInput marks a malformed evaluation request.
var ErrInvalidInput = errors.New("invalid input")

// MarketSource returns the trigger summary for a ticker.
type MarketSource interface {
	MarketState(ctx context.Context, symbol string) (model.MarketState, error)
}

// Holdings are the bucket values the user reports. Nil in a Request means
// "use the latest saved snapshot".
type Holdings struct {
	ValueSp   float64 `json:"value_sp"`
	ValueTa   float64 `json:"value_ta"`
	ValueCash float64 `json:"value_cash"`
}

// Request is one evaluation.
type Request struct {
	Holdings         *Holdings              `json:"holdings,omitempty"`
	Contribution     float64                `json:"contribution"`
	ContributionType model.ContributionType `json:"contribution_type,omitempty"`
	// Currency of the contribution, USD or ILS. Empty means the settings currency.
	Currency string `json:"currency,omitempty"`
	// Month is any date inside the snapshot month, YYYY-MM-DD. Empty means now.
	Month    string `json:"month,omitempty"`
	Language string `json:"language,omitempty"`
}

// Outcome is what Preview and Save return. Result is nil when the market data
// is unavailable; the portfolio part is still valid.
type Outcome struct {
	Settings     model.Settings        `json:"settings"`
	Portfolio    model.PortfolioState  `json:"portfolio"`
	Ammo         model.AmmoState       `json:"ammo"`
	Market       *model.MarketState    `json:"market"`
	MarketError  string                `json:"market_error,omitempty"`
	Result       *model.StrategyResult `json:"result"`
	Title        string                `json:"title,omitempty"`
	Snapshot     *model.Snapshot       `json:"snapshot,omitempty"`
	Contribution *model.Contribution   `json:"contribution,omitempty"`
	AmmoChanged  bool                  `json:"ammo_changed"`
}

// Service wires the store, the market source and the ammo manager around the engine.
type Service struct {
	store     *store.Store
	market    MarketSource
	ammo      *ammo.Manager
	defaults  model.Settings
	benchmark string
	metrics   *metrics.Registry
	log       zerolog.Logger
	now       func() time.Time
}

// Options configures a Service.
type Options struct {
	Defaults  model.Settings
	Benchmark string
	Metrics   *metrics.Registry
	Logger    zerolog.Logger
}

// NewService creates a Service.
func NewService(st *store.Store, market MarketSource, am *ammo.Manager, opts Options) *Service {
	return &Service{
		store:     st,
		market:    market,
		ammo:      am,
		defaults:  opts.Defaults,
		benchmark: opts.Benchmark,
		metrics:   opts.Metrics,
		log:       opts.Logger.With().Str("component", "advisor").Logger(),
		now:       time.Now,
	}
}

// Settings returns the user's saved settings or the configured defaults.
func (s *Service) Settings(ctx context.Context, userID string) (model.Settings, error) {
	st, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		st = s.defaults
		st.UserID = userID
		return st, nil
	}
	return st, err
}

// Preview evaluates without writing anything.
func (s *Service) Preview(ctx context.Context, userID string, req Request) (Outcome, error) {
	out, _, err := s.evaluate(ctx, userID, req)
	if err != nil {
		return Outcome{}, err
	}
	s.observe(out, "preview")
	return out, nil
}

// Save evaluates and persists the snapshot, contribution, market state,
// recommendation and ammo transition in one transaction. The user's ammo lock
// is held from the read through the write.
func (s *Service) Save(ctx context.Context, userID string, req Request) (Outcome, error) {
	unlock := s.ammo.Lock(userID)
	defer unlock()

	out, month, err := s.evaluate(ctx, userID, req)
	if err != nil {
		return Outcome{}, err
	}

	err = s.store.InTx(ctx, func(tx *store.Store) error {
		snap, err := tx.UpsertSnapshot(ctx, model.NewSnapshot(userID, month, out.Portfolio))
		if err != nil {
			return err
		}
		out.Snapshot = &snap

		if req.Contribution > 0 {
			currency := req.Currency
			if currency == "" {
				currency = out.Settings.Currency
			}
			c, err := tx.UpsertContribution(ctx, model.Contribution{
				UserID:     userID,
				SnapshotID: snap.ID,
				Amount:     req.Contribution,
				Currency:   currency,
				Type:       req.ContributionType,
			})
			if err != nil {
				return err
			}
			out.Contribution = &c
		}

		if out.Result == nil {
			return nil
		}

		dd := out.Market.DrawdownPercent
		if _, err := tx.AppendMarketState(ctx, model.MarketStateRecord{
			UserID:          userID,
			Ticker:          s.benchmark,
			LastPrice:       out.Market.LastPrice,
			High52w:         out.Market.High52w,
			DrawdownPercent: &dd,
			AsOfDate:        s.now().UTC().Format("2006-01-02"),
		}); err != nil {
			return err
		}

		status := string(out.Result.MarketStatus)
		snapID := snap.ID
		if _, err := tx.AppendRecommendation(ctx, model.RecommendationRecord{
			UserID:             userID,
			SnapshotID:         &snapID,
			RecommendationType: string(out.Result.RecommendationType),
			RecommendationText: out.Result.RecommendationText,
			TransferAmount:     out.Result.TransferAmount,
			DrawdownPercent:    &dd,
			MarketStatus:       &status,
			Priority:           out.Result.Priority,
		}); err != nil {
			return err
		}

		a, changed, err := s.ammo.Apply(ctx, tx, userID, out.Result.RecommendationType)
		if err != nil {
			return err
		}
		out.Ammo = a
		out.AmmoChanged = changed
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("save evaluation: %w", err)
	}

	s.observe(out, "save")
	s.log.Info().Str("user_id", userID).Str("month", month).
		Bool("recommended", out.Result != nil).Bool("ammo_changed", out.AmmoChanged).
		Msg("evaluation saved")
	return out, nil
}

func (s *Service) evaluate(ctx context.Context, userID string, req Request) (Outcome, string, error) {
	if userID == "" {
		return Outcome{}, "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := req.validate(); err != nil {
		return Outcome{}, "", err
	}
	month, err := s.month(req.Month)
	if err != nil {
		return Outcome{}, "", err
	}

	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return Outcome{}, "", fmt.Errorf("load settings: %w", err)
	}
	ammoState, err := s.ammo.Get(ctx, userID)
	if err != nil {
		return Outcome{}, "", fmt.Errorf("load ammo: %w", err)
	}

	holdings := Holdings{}
	if req.Holdings != nil {
		holdings = *req.Holdings
	} else {
		snap, err := s.store.LatestSnapshot(ctx, userID)
		switch {
		case err == nil:
			holdings = Holdings{ValueSp: snap.ValueSp, ValueTa: snap.ValueTa, ValueCash: snap.CashValue}
			// The month's snapshot already includes its contribution. A new
			// contribution replaces that row, so take the old one back out.
			if req.Contribution > 0 && snap.SnapshotMonth == month {
				if holdings, err = s.withoutContribution(ctx, snap, holdings, settings); err != nil {
					return Outcome{}, "", err
				}
			}
		case !errors.Is(err, store.ErrNotFound):
			return Outcome{}, "", fmt.Errorf("load snapshot: %w", err)
		}
	}

	out := Outcome{
		Settings:  settings,
		Portfolio: FoldContribution(holdings, req.Contribution, settings),
		Ammo:      ammoState,
	}

	market, err := s.market.MarketState(ctx, s.benchmark)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, "", ctxErr
		}
		s.log.Warn().Err(err).Str("symbol", s.benchmark).Msg("market data unavailable, skipping recommendation")
		out.MarketError = "market data unavailable"
		return out, month, nil
	}
	out.Market = &market

	res := strategy.Evaluate(out.Portfolio, market, ammoState, settings)
	lang := report.ParseLanguage(req.Language)
	res.RecommendationText = report.Text(res, lang)
	out.Result = &res
	out.Title = report.Title(res.RecommendationType, lang)
	return out, month, nil
}

func (s *Service) withoutContribution(ctx context.Context, snap model.Snapshot, h Holdings, st model.Settings) (Holdings, error) {
	prev, err := s.store.GetContribution(ctx, snap.ID)
	if errors.Is(err, store.ErrNotFound) {
		return h, nil
	}
	if err != nil {
		return Holdings{}, fmt.Errorf("load contribution: %w", err)
	}
	sp, ta, cash := contributionShares(prev.Amount, st)
	return Holdings{
		ValueSp:   math.Max(0, h.ValueSp-sp),
		ValueTa:   math.Max(0, h.ValueTa-ta),
		ValueCash: math.Max(0, h.ValueCash-cash),
	}, nil
}

func (s *Service) month(in string) (string, error) {
	if in == "" {
		return model.SnapshotMonth(s.now()), nil
	}
	t, err := time.Parse("2006-01-02", in)
	if err != nil {
		return "", fmt.Errorf("%w: month must be YYYY-MM-DD", ErrInvalidInput)
	}
	return model.SnapshotMonth(t), nil
}

func (s *Service) observe(out Outcome, mode string) {
	recType := "UNAVAILABLE"
	if out.Result != nil {
		recType = string(out.Result.RecommendationType)
	}
	s.metrics.ObserveEvaluation(recType, mode)
}

func (r Request) validate() error {
	if r.Contribution < 0 {
		return fmt.Errorf("%w: contribution cannot be negative", ErrInvalidInput)
	}
	switch r.ContributionType {
	case "", model.ContributionMonthly, model.ContributionBonus, model.ContributionAdjustment:
	default:
		return fmt.Errorf("%w: unknown contribution type %q", ErrInvalidInput, r.ContributionType)
	}
	switch r.Currency {
	case "", "USD", "ILS":
	default:
		return fmt.Errorf("%w: currency must be USD or ILS", ErrInvalidInput)
	}
	if h := r.Holdings; h != nil && (h.ValueSp < 0 || h.ValueTa < 0 || h.ValueCash < 0) {
		return fmt.Errorf("%w: holdings cannot be negative", ErrInvalidInput)
	}
	return nil
}

// FoldContribution adds a pending contribution to the holdings using the
// settings split. The equity share goes to the two proxies by their target
// ratio, or entirely to the broad-market proxy when no targets are set.
func FoldContribution(h Holdings, amount float64, st model.Settings) model.PortfolioState {
	if amount <= 0 {
		return model.NewPortfolioState(h.ValueSp, h.ValueTa, h.ValueCash)
	}
	sp, ta, cash := contributionShares(amount, st)
	return model.NewPortfolioState(h.ValueSp+sp, h.ValueTa+ta, h.ValueCash+cash)
}

func contributionShares(amount float64, st model.Settings) (sp, ta, cash float64) {
	cash = amount * st.ContributionSplitCashPercent / 100
	stocks := amount * st.ContributionSplitStocksPercent / 100

	sp = stocks
	if total := st.SpTargetPercent + st.TaTargetPercent; total > 0 {
		sp = stocks * st.SpTargetPercent / total
		ta = stocks - sp
	}
	return sp, ta, cash
}
