package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hydrospark/internal/observability/metrics"
	rates "hydrospark/internal/rates/domain"
	usage "hydrospark/internal/usage/domain"
)

// DefaultUnitPrice is used when no rate is configured for an account.
var DefaultUnitPrice = decimal.RequireFromString("2.50")

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver picks the unit price that applies to an account at an instant.
type Resolver struct {
	defaultPrice decimal.Decimal
	logger       *zap.Logger
}

// NewResolver constructs a resolver with the system default price.
func NewResolver(defaultPrice decimal.Decimal, opts ...ResolverOption) (*Resolver, error) {
	if defaultPrice.IsNegative() {
		return nil, errors.New("rate resolver: negative default price")
	}
	r := &Resolver{
		defaultPrice: defaultPrice.Round(rates.PriceScale),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// DefaultPrice returns the configured fallback price.
func (r *Resolver) DefaultPrice() decimal.Decimal {
	return r.defaultPrice
}

// Resolve applies custom, region, rule and default precedence in that order.
func (r *Resolver) Resolve(ctx context.Context, repo rates.RuleRepository, account usage.Account, at time.Time) (rates.Rate, error) {
	if account.CustomRate.Valid {
		return rates.Flat(account.CustomRate.Decimal, rates.SourceCustom), nil
	}
	if repo == nil {
		return rates.Rate{}, errors.New("rate resolver: nil rule repository")
	}

	if account.Region != "" {
		region, err := repo.FindRegionRate(ctx, account.Region)
		if err != nil {
			return rates.Rate{}, fmt.Errorf("rate resolver: region %s: %w", account.Region, err)
		}
		if region != nil && region.Active {
			return rates.Flat(region.Price, rates.SourceRegion), nil
		}
	}

	if account.Type.IsValid() {
		rules, err := repo.ListByAccountType(ctx, account.Type, true)
		if err != nil {
			return rates.Rate{}, fmt.Errorf("rate resolver: rules for %s: %w", account.Type, err)
		}
		if rule, ok := SelectRule(rules, at); ok {
			return rule.Rate(), nil
		}
	}

	r.logger.Warn("no rate configured, using default price",
		zap.String("account_id", account.ID),
		zap.String("account_type", string(account.Type)),
		zap.String("region", account.Region),
		zap.Time("at", at),
		zap.String("default_price", r.defaultPrice.String()),
	)
	metrics.IncRateFallback(string(account.Type))
	return rates.Flat(r.defaultPrice, rates.SourceDefault), nil
}

// SelectRule returns the applicable rule at an instant: latest EffectiveFrom, then lowest ID.
func SelectRule(rules []rates.Rule, at time.Time) (rates.Rule, bool) {
	candidates := make([]rates.Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.AppliesAt(at) {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return rates.Rule{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].EffectiveFrom.Equal(candidates[j].EffectiveFrom) {
			return candidates[i].EffectiveFrom.After(candidates[j].EffectiveFrom)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], true
}
