package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingapp "hydrospark/internal/billing/application"
	billing "hydrospark/internal/billing/domain"
	rateapp "hydrospark/internal/rates/application"
	rates "hydrospark/internal/rates/domain"
	"hydrospark/internal/store"
	"hydrospark/internal/store/memory"
	usage "hydrospark/internal/usage/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newEngine(t *testing.T, now time.Time) *billingapp.Engine {
	t.Helper()
	resolver, err := rateapp.NewResolver(rateapp.DefaultUnitPrice)
	require.NoError(t, err)
	seq := 0
	engine, err := billingapp.NewEngine(resolver,
		billingapp.WithClock(fixedClock{now: now}),
		billingapp.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("inv-%d", seq)
		}),
	)
	require.NoError(t, err)
	return engine
}

func seedDaily(t *testing.T, s *memory.Store, accountID string, from, to time.Time, qty string) {
	t.Helper()
	var records []usage.ConsumptionRecord
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		records = append(records, usage.ConsumptionRecord{AccountID: accountID, Date: d, Quantity: dec(qty)})
	}
	require.NoError(t, s.AddConsumption(records...))
}

func begin(t *testing.T, s *memory.Store) store.UnitOfWork {
	t.Helper()
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = uow.Rollback() })
	return uow
}

func TestCalculateZeroConsumption(t *testing.T) {
	s := memory.NewStore()
	s.AddAccount(usage.Account{ID: "a1", Type: usage.AccountTypeResidential})

	calc, err := newEngine(t, day(2024, 6, 1)).Calculate(context.Background(), begin(t, s), "a1", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.True(t, calc.Quantity.IsZero())
	assert.True(t, calc.Amount.IsZero())
	assert.Equal(t, rates.SourceDefault, calc.Rate.Source)
}

func TestCalculateUnknownAccount(t *testing.T) {
	s := memory.NewStore()
	_, err := newEngine(t, day(2024, 6, 1)).Calculate(context.Background(), begin(t, s), "ghost", day(2024, 1, 1), day(2024, 1, 31))
	assert.ErrorIs(t, err, usage.ErrAccountNotFound)
}

func TestCalculateInvalidPeriod(t *testing.T) {
	s := memory.NewStore()
	s.AddAccount(usage.Account{ID: "a1", Type: usage.AccountTypeResidential})
	_, err := newEngine(t, day(2024, 6, 1)).Calculate(context.Background(), begin(t, s), "a1", day(2024, 2, 1), day(2024, 1, 1))
	assert.ErrorIs(t, err, billing.ErrInvalidPeriod)
}

func TestCalculateTieredRule(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	s.AddAccount(usage.Account{ID: "a1", Type: usage.AccountTypeCommercial})
	_, err := s.UpsertRule(ctx, rates.Rule{
		AccountType: usage.AccountTypeCommercial,
		Mode:        rates.ModeTiered,
		Tiers: []rates.Tier{
			{Min: dec("0"), Max: decimal.NewNullDecimal(dec("10")), Price: dec("2.00")},
			{Min: dec("10"), Max: decimal.NewNullDecimal(dec("20")), Price: dec("3.00")},
		},
		EffectiveFrom: day(2020, 1, 1),
		Active:        true,
	})
	require.NoError(t, err)
	seedDaily(t, s, "a1", day(2024, 1, 1), day(2024, 1, 3), "5")

	calc, err := newEngine(t, day(2024, 6, 1)).Calculate(ctx, begin(t, s), "a1", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, "15", calc.Quantity.String())
	assert.Equal(t, "35", calc.Amount.String())
	assert.Equal(t, rates.SourceRule, calc.Rate.Source)
}

func TestGenerateSnapshotsPriceAndDueDate(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	s.AddAccount(usage.Account{ID: "a1", Type: usage.AccountTypeResidential, CustomRate: decimal.NewNullDecimal(dec("1.2345"))})
	seedDaily(t, s, "a1", day(2024, 1, 1), day(2024, 1, 31), "3.33")
	engine := newEngine(t, day(2024, 2, 1))

	uow := begin(t, s)
	invoice, err := engine.Generate(ctx, uow, "a1", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	assert.Equal(t, "inv-1", invoice.ID)
	assert.Equal(t, billing.StatusPending, invoice.Status)
	assert.Equal(t, day(2024, 2, 15), invoice.DueDate)
	assert.Equal(t, rates.SourceCustom, invoice.RateSource)
	assert.True(t, invoice.Amount.Equal(invoice.Quantity.Mul(invoice.UnitPrice).Round(2)))
	assert.Len(t, s.Invoices("a1"), 1)

	_, err = engine.Generate(ctx, begin(t, s), "a1", day(2024, 1, 1), day(2024, 1, 31))
	assert.ErrorIs(t, err, billing.ErrDuplicateInvoice)
}

func TestEstimateFromReading(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	s.AddAccount(usage.Account{ID: "a1", Type: usage.AccountTypeResidential})
	engine := newEngine(t, day(2024, 3, 10))

	est, err := engine.EstimateFromReading(ctx, begin(t, s), "a1", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "80", est.Quantity.String())
	assert.Equal(t, "200", est.Amount.String())
	assert.Nil(t, est.SinceInvoice)

	seedDaily(t, s, "a1", day(2024, 1, 1), day(2024, 1, 31), "2")
	uow := begin(t, s)
	_, err = engine.Generate(ctx, uow, "a1", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	est, err = engine.EstimateFromReading(ctx, begin(t, s), "a1", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "38", est.Quantity.String())
	require.NotNil(t, est.SinceInvoice)
	assert.Equal(t, day(2024, 1, 31), *est.SinceInvoice)

	est, err = engine.EstimateFromReading(ctx, begin(t, s), "a1", dec("10"))
	require.NoError(t, err)
	assert.True(t, est.Quantity.IsZero())

	_, err = engine.EstimateFromReading(ctx, begin(t, s), "a1", dec("-1"))
	assert.ErrorIs(t, err, billing.ErrNegativeReading)
}

func TestSummarize(t *testing.T) {
	s := memory.NewStore()
	s.AddAccount(usage.Account{ID: "a1", Type: usage.AccountTypeResidential})
	require.NoError(t, s.AddConsumption(
		usage.ConsumptionRecord{AccountID: "a1", Date: day(2024, 1, 1), Quantity: dec("2")},
		usage.ConsumptionRecord{AccountID: "a1", Date: day(2024, 1, 2), Quantity: dec("7")},
		usage.ConsumptionRecord{AccountID: "a1", Date: day(2024, 1, 5), Quantity: dec("3")},
	))

	summary, err := newEngine(t, day(2024, 6, 1)).Summarize(context.Background(), begin(t, s), "a1", day(2024, 1, 1), day(2024, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, "12", summary.Total.String())
	assert.Equal(t, "4", summary.AverageDaily.String())
	assert.Equal(t, "7", summary.MaxDaily.String())
	assert.Equal(t, 10, summary.Days)
	assert.Equal(t, 3, summary.Observations)
}

func TestNewEngineRequiresResolver(t *testing.T) {
	_, err := billingapp.NewEngine(nil)
	assert.Error(t, err)
}

var errBoom = errors.New("boom")
