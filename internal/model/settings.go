package model

import "time"

// Settings holds the user-configured strategy thresholds. All values are percentages
// except MonthlyContributionTotal, which is in the settings currency.
//
// Tranche triggers must be ordered t1 <= t2 <= t3; the settings package enforces
// that before a value reaches the strategy engine.
type Settings struct {
	UserID string `db:"user_id" json:"user_id,omitempty" yaml:"-"`

	StocksTargetPercent float64 `db:"stocks_target_percent" json:"stocks_target_percent" yaml:"stocks_target_percent" validate:"gte=0,lte=100"`
	CashTargetPercent   float64 `db:"cash_target_percent" json:"cash_target_percent" yaml:"cash_target_percent" validate:"gte=0,lte=100"`
	CashMinPct          float64 `db:"cash_min_pct" json:"cash_min_pct" yaml:"cash_min_pct" validate:"gte=0,lte=100,ltefield=CashTargetPercent"`
	CashMaxPct          float64 `db:"cash_max_pct" json:"cash_max_pct" yaml:"cash_max_pct" validate:"gte=0,lte=100,gtefield=CashTargetPercent"`

	// Optional split of the equity share between the two proxies. Both zero means
	// all new equity money goes to the broad-market proxy.
	SpTargetPercent float64 `db:"snp_target_percent" json:"snp_target_percent" yaml:"snp_target_percent" validate:"gte=0,lte=100"`
	TaTargetPercent float64 `db:"ta125_target_percent" json:"ta125_target_percent" yaml:"ta125_target_percent" validate:"gte=0,lte=100"`

	Tranche1Trigger  float64 `db:"tranche_1_trigger" json:"tranche_1_trigger" yaml:"tranche_1_trigger" validate:"gte=0,lte=100"`
	Tranche2Trigger  float64 `db:"tranche_2_trigger" json:"tranche_2_trigger" yaml:"tranche_2_trigger" validate:"gte=0,lte=100,gtefield=Tranche1Trigger"`
	Tranche3Trigger  float64 `db:"tranche_3_trigger" json:"tranche_3_trigger" yaml:"tranche_3_trigger" validate:"gte=0,lte=100,gtefield=Tranche2Trigger"`
	RebuildThreshold float64 `db:"rebuild_threshold" json:"rebuild_threshold" yaml:"rebuild_threshold" validate:"gte=0,lte=100"`

	ContributionSplitCashPercent   float64 `db:"contribution_split_cash_percent" json:"contribution_split_cash_percent" yaml:"contribution_split_cash_percent" validate:"gte=0,lte=100"`
	ContributionSplitStocksPercent float64 `db:"contribution_split_stocks_percent" json:"contribution_split_stocks_percent" yaml:"contribution_split_stocks_percent" validate:"gte=0,lte=100"`
	MonthlyContributionTotal       float64 `db:"monthly_contribution_total" json:"monthly_contribution_total" yaml:"monthly_contribution_total" validate:"gte=0"`

	Currency string `db:"currency" json:"currency" yaml:"currency" validate:"oneof=USD ILS"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at" yaml:"-"`
}

// Thresholds is the subset of settings used for market status classification.
type Thresholds struct {
	Tranche1Trigger float64
	Tranche2Trigger float64
	Tranche3Trigger float64
}

// Thresholds returns the trigger ladder.
func (s Settings) Thresholds() Thresholds {
	return Thresholds{
		Tranche1Trigger: s.Tranche1Trigger,
		Tranche2Trigger: s.Tranche2Trigger,
		Tranche3Trigger: s.Tranche3Trigger,
	}
}

// Trigger returns the drawdown trigger for tranche 1..3.
func (t Thresholds) Trigger(tranche int) float64 {
	switch tranche {
	case 1:
		return t.Tranche1Trigger
	case 2:
		return t.Tranche2Trigger
	case 3:
		return t.Tranche3Trigger
	}
	return 0
}
