package rates

import (
	"context"

	usage "hydrospark/internal/usage/domain"
)

// RuleRepository reads the rate tables.
type RuleRepository interface {
	ListByAccountType(ctx context.Context, accountType usage.AccountType, activeOnly bool) ([]Rule, error)
	// FindRegionRate returns nil when no active rate exists for region.
	FindRegionRate(ctx context.Context, region string) (*RegionRate, error)
}

// CatalogWriter stores rate tables, used by seeding.
type CatalogWriter interface {
	UpsertRule(ctx context.Context, rule Rule) (int64, error)
	UpsertRegionRate(ctx context.Context, rate RegionRate) error
}
