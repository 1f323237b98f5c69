package rates

import (
	"time"

	"github.com/shopspring/decimal"

	usage "hydrospark/internal/usage/domain"
)

// Tier is one band of a tiered rule. A null Max means unbounded.
type Tier struct {
	Min   decimal.Decimal
	Max   decimal.NullDecimal
	Price decimal.Decimal
}

// Rule prices consumption for an account type over an effective range.
type Rule struct {
	ID            int64
	AccountType   usage.AccountType
	Mode          Mode
	FlatPrice     decimal.Decimal
	Tiers         []Tier
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Active        bool
}

// Validate checks rule invariants.
func (r Rule) Validate() error {
	if !r.AccountType.IsValid() {
		return usage.ErrInvalidAccountType
	}
	if r.EffectiveTo != nil && r.EffectiveTo.Before(r.EffectiveFrom) {
		return ErrInvalidEffectiveRange
	}
	switch r.Mode {
	case ModeFlat:
		if r.FlatPrice.IsNegative() {
			return ErrNegativePrice
		}
		return nil
	case ModeTiered:
		return validateTiers(r.Tiers)
	default:
		return ErrInvalidMode
	}
}

func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return ErrNoTiers
	}
	for i, tier := range tiers {
		if tier.Price.IsNegative() {
			return ErrNegativePrice
		}
		if tier.Max.Valid && !tier.Max.Decimal.GreaterThan(tier.Min) {
			return ErrInvalidTier
		}
		if i == 0 {
			if !tier.Min.IsZero() {
				return ErrInvalidTier
			}
			continue
		}
		prev := tiers[i-1]
		if !prev.Max.Valid || !prev.Max.Decimal.Equal(tier.Min) {
			return ErrInvalidTier
		}
	}
	return nil
}

// AppliesAt reports whether the rule is active and its range contains at.
func (r Rule) AppliesAt(at time.Time) bool {
	if !r.Active {
		return false
	}
	if at.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && at.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// Rate converts the rule into a resolved rate.
func (r Rule) Rate() Rate {
	if r.Mode == ModeTiered {
		tiers := make([]Tier, len(r.Tiers))
		copy(tiers, r.Tiers)
		price := decimal.Zero
		if len(tiers) > 0 {
			price = tiers[0].Price.Round(PriceScale)
		}
		return Rate{Mode: ModeTiered, UnitPrice: price, Tiers: tiers, Source: SourceRule, RuleID: r.ID}
	}
	rate := Flat(r.FlatPrice, SourceRule)
	rate.RuleID = r.ID
	return rate
}

// RegionRate is a flat price override for a region (zip code).
type RegionRate struct {
	Region      string
	Price       decimal.Decimal
	Description string
	Active      bool
}
