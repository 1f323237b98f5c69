// Package catalog loads rate tables from YAML and seeds them into a store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	rates "hydrospark/internal/rates/domain"
	usage "hydrospark/internal/usage/domain"
)

// Catalog is the file form of the rate tables.
type Catalog struct {
	Rules       []RuleEntry   `yaml:"rules"`
	RegionRates []RegionEntry `yaml:"region_rates"`
}

// RuleEntry is one rate rule. Prices and bounds are strings to keep them exact.
type RuleEntry struct {
	ID            int64       `yaml:"id"`
	AccountType   string      `yaml:"account_type"`
	Mode          string      `yaml:"mode"`
	FlatPrice     string      `yaml:"flat_price"`
	EffectiveFrom string      `yaml:"effective_from"`
	EffectiveTo   string      `yaml:"effective_to"`
	Active        *bool       `yaml:"active"`
	Tiers         []TierEntry `yaml:"tiers"`
}

// TierEntry is one band of a tiered rule. An empty max is unbounded.
type TierEntry struct {
	Min   string `yaml:"min"`
	Max   string `yaml:"max"`
	Price string `yaml:"price"`
}

// RegionEntry is a region price override.
type RegionEntry struct {
	Region      string `yaml:"region"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
}

// Result counts what Seed stored.
type Result struct {
	Rules       int
	RegionRates int
}

// LoadFile reads and parses a catalog file.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	return Parse(data)
}

// Parse decodes a catalog document.
func Parse(data []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("catalog: %w", err)
	}
	return catalog, nil
}

// Build converts the entries into validated domain values.
func (c Catalog) Build() ([]rates.Rule, []rates.RegionRate, error) {
	rules := make([]rates.Rule, 0, len(c.Rules))
	for i, entry := range c.Rules {
		rule, err := entry.rule()
		if err != nil {
			return nil, nil, fmt.Errorf("catalog: rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	regions := make([]rates.RegionRate, 0, len(c.RegionRates))
	seen := make(map[string]bool, len(c.RegionRates))
	for i, entry := range c.RegionRates {
		region, err := entry.regionRate()
		if err != nil {
			return nil, nil, fmt.Errorf("catalog: region rate %d: %w", i, err)
		}
		if seen[region.Region] {
			return nil, nil, fmt.Errorf("catalog: duplicate region %q", region.Region)
		}
		seen[region.Region] = true
		regions = append(regions, region)
	}
	return rules, regions, nil
}

// Seed validates the whole catalog first, then writes every entry.
func Seed(ctx context.Context, w rates.CatalogWriter, c Catalog) (Result, error) {
	if w == nil {
		return Result{}, errors.New("catalog: nil writer")
	}
	rules, regions, err := c.Build()
	if err != nil {
		return Result{}, err
	}
	var result Result
	for _, rule := range rules {
		if _, err := w.UpsertRule(ctx, rule); err != nil {
			return result, fmt.Errorf("catalog: upsert %s rule: %w", rule.AccountType, err)
		}
		result.Rules++
	}
	for _, region := range regions {
		if err := w.UpsertRegionRate(ctx, region); err != nil {
			return result, fmt.Errorf("catalog: upsert region %s: %w", region.Region, err)
		}
		result.RegionRates++
	}
	return result, nil
}

func (e RuleEntry) rule() (rates.Rule, error) {
	accountType, err := usage.ParseAccountType(e.AccountType)
	if err != nil {
		return rates.Rule{}, err
	}
	mode, err := rates.ParseMode(e.Mode)
	if err != nil {
		return rates.Rule{}, err
	}
	from, err := parseDate(e.EffectiveFrom)
	if err != nil {
		return rates.Rule{}, fmt.Errorf("effective_from: %w", err)
	}
	rule := rates.Rule{
		ID:            e.ID,
		AccountType:   accountType,
		Mode:          mode,
		EffectiveFrom: from,
		Active:        e.Active == nil || *e.Active,
	}
	if e.EffectiveTo != "" {
		to, err := parseDate(e.EffectiveTo)
		if err != nil {
			return rates.Rule{}, fmt.Errorf("effective_to: %w", err)
		}
		rule.EffectiveTo = &to
	}
	if rule.FlatPrice, err = parseDecimal(e.FlatPrice, decimal.Zero); err != nil {
		return rates.Rule{}, fmt.Errorf("flat_price: %w", err)
	}
	for i, t := range e.Tiers {
		tier, err := t.tier()
		if err != nil {
			return rates.Rule{}, fmt.Errorf("tier %d: %w", i, err)
		}
		rule.Tiers = append(rule.Tiers, tier)
	}
	if err := rule.Validate(); err != nil {
		return rates.Rule{}, err
	}
	return rule, nil
}

func (e TierEntry) tier() (rates.Tier, error) {
	var (
		tier rates.Tier
		err  error
	)
	if tier.Min, err = parseDecimal(e.Min, decimal.Zero); err != nil {
		return tier, fmt.Errorf("min: %w", err)
	}
	if e.Max != "" {
		max, err := decimal.NewFromString(e.Max)
		if err != nil {
			return tier, fmt.Errorf("max: %w", err)
		}
		tier.Max = decimal.NewNullDecimal(max)
	}
	if e.Price == "" {
		return tier, errors.New("price required")
	}
	if tier.Price, err = decimal.NewFromString(e.Price); err != nil {
		return tier, fmt.Errorf("price: %w", err)
	}
	return tier, nil
}

func (e RegionEntry) regionRate() (rates.RegionRate, error) {
	if e.Region == "" {
		return rates.RegionRate{}, errors.New("region required")
	}
	price, err := decimal.NewFromString(e.Price)
	if err != nil {
		return rates.RegionRate{}, fmt.Errorf("price: %w", err)
	}
	if price.IsNegative() {
		return rates.RegionRate{}, rates.ErrNegativePrice
	}
	return rates.RegionRate{
		Region:      e.Region,
		Price:       price,
		Description: e.Description,
		Active:      e.Active == nil || *e.Active,
	}, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("date required")
	}
	return time.Parse(time.DateOnly, value)
}

func parseDecimal(value string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if value == "" {
		return fallback, nil
	}
	return decimal.NewFromString(value)
}
