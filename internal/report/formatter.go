package report

import (
	"fmt"
	"strings"

	"DrawdownSentinel/internal/analytics"
	"DrawdownSentinel/internal/model"

	"github.com/dustin/go-humanize"
)

// CurrencySymbol returns the display symbol for a settings currency.
func CurrencySymbol(currency string) string {
	switch strings.ToUpper(currency) {
	case "ILS":
		return "₪"
	default:
		return "$"
	}
}

// FormatMoney renders an amount with thousands separators and at most two decimals.
func FormatMoney(amount float64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + CurrencySymbol(currency) + humanize.CommafWithDigits(amount, 2)
}

// Text renders the recommendation sentence from the structured result fields.
func Text(res model.StrategyResult, lang Language) string {
	tmpl, ok := catalogFor(lang).recommendation[res.RecommendationType]
	if !ok {
		return ""
	}
	var transfer float64
	if res.TransferAmount != nil {
		transfer = *res.TransferAmount
	}
	return fmt.Sprintf(tmpl,
		res.DrawdownPercent,
		FormatMoney(transfer, res.Currency),
		res.CashPercent,
		res.TargetPercent,
		FormatMoney(res.CashContribution, res.Currency),
		FormatMoney(res.StocksContribution, res.Currency),
		res.TrancheIndex,
	)
}

// Title returns the short notification title for a recommendation type.
func Title(t model.RecommendationType, lang Language) string {
	c := catalogFor(lang)
	if title, ok := c.title[t]; ok {
		return title
	}
	return c.defaultTitle
}

// StatusLabel returns the display label of a market status.
func StatusLabel(s model.MarketStatus, lang Language) string {
	if label, ok := catalogFor(lang).status[s]; ok {
		return label
	}
	return string(s)
}

// TypeLabel turns FIRE_AMMO_1 into "FIRE AMMO 1" for log listings.
func TypeLabel(t model.RecommendationType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// FormatRecommendation formats a full, multi-line recommendation summary for CLI output.
func FormatRecommendation(market model.MarketState, portfolio model.PortfolioState, res model.StrategyResult, lang Language) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s | %s\n\n", Title(res.RecommendationType, lang), StatusLabel(res.MarketStatus, lang)))
	b.WriteString(fmt.Sprintf("Last price: %.2f | 52w high: %.2f | Drawdown: %.2f%%\n",
		market.LastPrice, market.High52w, analytics.Round2(market.DrawdownPercent)))
	b.WriteString(fmt.Sprintf("Portfolio: %s (SP %.1f%% | TA %.1f%% | Cash %.1f%%)\n",
		FormatMoney(portfolio.TotalValue, res.Currency), portfolio.PercentSp, portfolio.PercentTa, portfolio.PercentCash))
	b.WriteString(fmt.Sprintf("\n[P%d] %s\n", res.Priority, TypeLabel(res.RecommendationType)))
	b.WriteString(Text(res, lang))
	b.WriteString("\n")
	if res.TransferAmount != nil {
		b.WriteString(fmt.Sprintf("Transfer: %s\n", FormatMoney(*res.TransferAmount, res.Currency)))
	}
	return b.String()
}

// FormatAmmoStatus formats the tranche flags for display.
func FormatAmmoStatus(a model.AmmoState) string {
	mark := func(used bool) string {
		if used {
			return "used"
		}
		return "ready"
	}
	var b strings.Builder
	b.WriteString("Ammo status\n")
	b.WriteString(fmt.Sprintf("Tranche 1: %s\n", mark(a.Tranche1Used)))
	b.WriteString(fmt.Sprintf("Tranche 2: %s\n", mark(a.Tranche2Used)))
	b.WriteString(fmt.Sprintf("Tranche 3: %s\n", mark(a.Tranche3Used)))
	if !a.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Updated: %s\n", a.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}
