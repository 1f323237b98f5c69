package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hydrospark/internal/platform/database"
	rates "hydrospark/internal/rates/domain"
	usage "hydrospark/internal/usage/domain"
)

// RuleRepository reads and writes rate rules, tiers and region rates.
type RuleRepository struct {
	db database.Querier
}

// NewRuleRepository constructs a repository over db or a transaction.
func NewRuleRepository(db database.Querier) *RuleRepository {
	return &RuleRepository{db: db}
}

// ListByAccountType returns rules for the account type with their tiers in order.
func (r *RuleRepository) ListByAccountType(ctx context.Context, accountType usage.AccountType, activeOnly bool) ([]rates.Rule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT r.id, r.account_type, r.mode, r.flat_price, r.effective_from, r.effective_to, r.active,
	t.position, t.min_qty, t.max_qty, t.price
FROM rate_rules r
LEFT JOIN rate_tiers t ON t.rule_id = r.id
WHERE r.account_type = $1 AND (NOT $2 OR r.active)
ORDER BY r.id ASC, t.position ASC`, string(accountType), activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rates.Rule
	for rows.Next() {
		var (
			rule        rates.Rule
			ruleType    string
			mode        string
			effectiveTo sql.NullTime
			position    sql.NullInt64
			minQty      decimal.NullDecimal
			maxQty      decimal.NullDecimal
			price       decimal.NullDecimal
		)
		if err := rows.Scan(&rule.ID, &ruleType, &mode, &rule.FlatPrice, &rule.EffectiveFrom, &effectiveTo, &rule.Active,
			&position, &minQty, &maxQty, &price); err != nil {
			return nil, err
		}
		if n := len(result); n == 0 || result[n-1].ID != rule.ID {
			parsed, err := rates.ParseMode(mode)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", rule.ID, err)
			}
			rule.Mode = parsed
			rule.AccountType = usage.AccountType(ruleType)
			rule.EffectiveFrom = usage.DayStart(rule.EffectiveFrom)
			if effectiveTo.Valid {
				to := usage.DayStart(effectiveTo.Time)
				rule.EffectiveTo = &to
			}
			result = append(result, rule)
		}
		if position.Valid {
			last := &result[len(result)-1]
			last.Tiers = append(last.Tiers, rates.Tier{Min: minQty.Decimal, Max: maxQty, Price: price.Decimal})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FindRegionRate returns the active rate for region, or nil.
func (r *RuleRepository) FindRegionRate(ctx context.Context, region string) (*rates.RegionRate, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate repo: nil db")
	}
	var rate rates.RegionRate
	err := r.db.QueryRowContext(ctx, `
SELECT region, price, description, active
FROM region_rates
WHERE region = $1 AND active`, region).Scan(&rate.Region, &rate.Price, &rate.Description, &rate.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// UpsertRule stores a rule and replaces its tiers. Callers run it inside a transaction.
func (r *RuleRepository) UpsertRule(ctx context.Context, rule rates.Rule) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("rate repo: nil db")
	}
	if err := rule.Validate(); err != nil {
		return 0, err
	}
	var effectiveTo *time.Time
	if rule.EffectiveTo != nil {
		to := usage.DayStart(*rule.EffectiveTo)
		effectiveTo = &to
	}
	args := []any{string(rule.AccountType), string(rule.Mode), rule.FlatPrice.Round(rates.PriceScale),
		usage.DayStart(rule.EffectiveFrom), effectiveTo, rule.Active}

	var id int64
	var err error
	if rule.ID == 0 {
		err = r.db.QueryRowContext(ctx, `
INSERT INTO rate_rules (account_type, mode, flat_price, effective_from, effective_to, active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, `
INSERT INTO rate_rules (id, account_type, mode, flat_price, effective_from, effective_to, active)
VALUES ($7, $1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	account_type = EXCLUDED.account_type,
	mode = EXCLUDED.mode,
	flat_price = EXCLUDED.flat_price,
	effective_from = EXCLUDED.effective_from,
	effective_to = EXCLUDED.effective_to,
	active = EXCLUDED.active
RETURNING id`, append(args, rule.ID)...).Scan(&id)
	}
	if err != nil {
		return 0, err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM rate_tiers WHERE rule_id = $1`, id); err != nil {
		return 0, err
	}
	if rule.Mode != rates.ModeTiered {
		return id, nil
	}
	for i, tier := range rule.Tiers {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO rate_tiers (rule_id, position, min_qty, max_qty, price)
VALUES ($1, $2, $3, $4, $5)`, id, i, tier.Min, tier.Max, tier.Price.Round(rates.PriceScale))
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}

// UpsertRegionRate stores a region rate keyed by region.
func (r *RuleRepository) UpsertRegionRate(ctx context.Context, rate rates.RegionRate) error {
	if r == nil || r.db == nil {
		return errors.New("rate repo: nil db")
	}
	if rate.Region == "" {
		return errors.New("rate repo: empty region")
	}
	if rate.Price.IsNegative() {
		return rates.ErrNegativePrice
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO region_rates (region, price, description, active)
VALUES ($1, $2, $3, $4)
ON CONFLICT (region) DO UPDATE SET
	price = EXCLUDED.price,
	description = EXCLUDED.description,
	active = EXCLUDED.active`, rate.Region, rate.Price.Round(rates.PriceScale), rate.Description, rate.Active)
	return err
}
