package rates

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// AmountScale is the number of decimal places kept on money amounts.
	AmountScale = 2
	// PriceScale is the number of decimal places kept on unit prices.
	PriceScale = 4
)

// Mode selects how a rule prices a quantity.
type Mode string

const (
	ModeFlat   Mode = "flat"
	ModeTiered Mode = "tiered"
)

// IsValid reports whether the mode is supported.
func (m Mode) IsValid() bool {
	switch m {
	case ModeFlat, ModeTiered:
		return true
	default:
		return false
	}
}

// ParseMode converts a stored value into a Mode.
func ParseMode(value string) (Mode, error) {
	m := Mode(value)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
	return m, nil
}

// Source records which precedence level produced a rate.
type Source string

const (
	SourceCustom  Source = "custom"
	SourceRegion  Source = "region"
	SourceRule    Source = "rule"
	SourceDefault Source = "default"
)

// IsValid reports whether the source is supported.
func (s Source) IsValid() bool {
	switch s {
	case SourceCustom, SourceRegion, SourceRule, SourceDefault:
		return true
	default:
		return false
	}
}

// ParseSource converts a stored value into a Source.
func ParseSource(value string) (Source, error) {
	s := Source(value)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, value)
	}
	return s, nil
}

// Rate is a resolved price for one account at one instant.
type Rate struct {
	Mode      Mode
	UnitPrice decimal.Decimal
	Tiers     []Tier
	Source    Source
	RuleID    int64
}

// Flat builds a flat rate from a source.
func Flat(price decimal.Decimal, source Source) Rate {
	return Rate{Mode: ModeFlat, UnitPrice: price.Round(PriceScale), Source: source}
}

// Charge prices quantity, rounded to AmountScale.
func (r Rate) Charge(quantity decimal.Decimal) decimal.Decimal {
	if !quantity.IsPositive() {
		return decimal.Zero
	}
	if r.Mode == ModeTiered && len(r.Tiers) > 0 {
		return tieredCharge(r.Tiers, quantity).Round(AmountScale)
	}
	return quantity.Mul(r.UnitPrice).Round(AmountScale)
}

// EffectiveUnitPrice is the flat price, or the blended tiered price for quantity.
func (r Rate) EffectiveUnitPrice(quantity decimal.Decimal) decimal.Decimal {
	if r.Mode != ModeTiered || len(r.Tiers) == 0 {
		return r.UnitPrice
	}
	if !quantity.IsPositive() {
		return r.Tiers[0].Price.Round(PriceScale)
	}
	return tieredCharge(r.Tiers, quantity).Div(quantity).Round(PriceScale)
}

// tieredCharge bills each slice of quantity at its tier's marginal price.
// Quantity above the last bounded tier is billed at the last tier's price.
func tieredCharge(tiers []Tier, quantity decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for i, tier := range tiers {
		if quantity.LessThanOrEqual(tier.Min) {
			break
		}
		upper := quantity
		last := i == len(tiers)-1
		if tier.Max.Valid && !last && tier.Max.Decimal.LessThan(quantity) {
			upper = tier.Max.Decimal
		}
		total = total.Add(upper.Sub(tier.Min).Mul(tier.Price))
	}
	return total
}
