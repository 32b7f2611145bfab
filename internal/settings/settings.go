// Package settings validates user strategy settings before they reach the engine.
package settings

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"DrawdownSentinel/internal/model"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid wraps every validation failure so callers can map it to a 422.
var ErrInvalid = errors.New("invalid settings")

const sumTolerance = 1e-9

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateSums, model.Settings{})
	return v
}

// validateSums checks the cross-field totals that tags cannot express.
func validateSums(sl validator.StructLevel) {
	s := sl.Current().Interface().(model.Settings)
	if math.Abs(s.StocksTargetPercent+s.CashTargetPercent-100) > sumTolerance {
		sl.ReportError(s.CashTargetPercent, "CashTargetPercent", "cash_target_percent", "sum100", "")
	}
	if math.Abs(s.ContributionSplitCashPercent+s.ContributionSplitStocksPercent-100) > sumTolerance {
		sl.ReportError(s.ContributionSplitCashPercent, "ContributionSplitCashPercent", "contribution_split_cash_percent", "sum100", "")
	}
	if s.SpTargetPercent+s.TaTargetPercent > 0 &&
		math.Abs(s.SpTargetPercent+s.TaTargetPercent-s.StocksTargetPercent) > sumTolerance {
		sl.ReportError(s.SpTargetPercent, "SpTargetPercent", "snp_target_percent", "sumstocks", "")
	}
}

// Validate enforces the settings invariants, including t1 <= t2 <= t3.
// The returned error wraps ErrInvalid and lists every failing field.
func Validate(s model.Settings) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate settings: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		if fe.Param() == "0" {
			return fe.Field() + " cannot be negative"
		}
	case "lte":
		return fe.Field() + " cannot exceed " + fe.Param() + "%"
	case "gtefield":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "sum100":
		return fe.Field() + " and its counterpart must add up to 100%"
	case "sumstocks":
		return "SP and TA targets must add up to the stocks target"
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// Defaults returns the settings a new user starts with.
func Defaults() model.Settings {
	return model.Settings{
		StocksTargetPercent:            80,
		CashTargetPercent:              20,
		CashMinPct:                     10,
		CashMaxPct:                     35,
		Tranche1Trigger:                10,
		Tranche2Trigger:                20,
		Tranche3Trigger:                30,
		RebuildThreshold:               5,
		ContributionSplitCashPercent:   20,
		ContributionSplitStocksPercent: 80,
		MonthlyContributionTotal:       1000,
		Currency:                       "USD",
	}
}
