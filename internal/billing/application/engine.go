package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	billing "hydrospark/internal/billing/domain"
	"hydrospark/internal/observability/metrics"
	rateapp "hydrospark/internal/rates/application"
	rates "hydrospark/internal/rates/domain"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
)

// DefaultDueDays is the gap between period end and due date.
const DefaultDueDays = 15

// estimateRatio is applied to a raw reading when the account has never been billed.
var estimateRatio = decimal.RequireFromString("0.8")

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Calculation is a priced period before it becomes an invoice.
type Calculation struct {
	AccountID string
	Period    billing.Period
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
	Rate      rates.Rate
	Records   int
	Estimated bool
}

// Estimate is a bill estimated from a raw meter reading.
type Estimate struct {
	AccountID string
	Reading   decimal.Decimal
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
	Source    rates.Source
	// SinceInvoice is the period end of the invoice the reading was diffed against.
	SinceInvoice *time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithDueDays overrides the due-date offset.
func WithDueDays(days int) EngineOption {
	return func(e *Engine) {
		if days >= 0 {
			e.dueDays = days
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIDGenerator overrides invoice id generation.
func WithIDGenerator(next func() string) EngineOption {
	return func(e *Engine) {
		if next != nil {
			e.newID = next
		}
	}
}

// Engine prices consumption periods and issues invoices.
type Engine struct {
	resolver *rateapp.Resolver
	clock    Clock
	dueDays  int
	logger   *zap.Logger
	newID    func() string
}

// NewEngine constructs the billing engine.
func NewEngine(resolver *rateapp.Resolver, opts ...EngineOption) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("billing engine: nil rate resolver")
	}
	e := &Engine{
		resolver: resolver,
		clock:    SystemClock{},
		dueDays:  DefaultDueDays,
		logger:   zap.NewNop(),
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Calculate sums consumption over [start, end] and prices it with the rate in effect at end.
func (e *Engine) Calculate(ctx context.Context, uow store.UnitOfWork, accountID string, start, end time.Time) (Calculation, error) {
	calc, err := e.calculate(ctx, uow, accountID, start, end)
	metrics.IncBillCalculate(metrics.ResultOf(err))
	return calc, err
}

func (e *Engine) calculate(ctx context.Context, uow store.UnitOfWork, accountID string, start, end time.Time) (Calculation, error) {
	if uow == nil {
		return Calculation{}, errors.New("billing engine: nil unit of work")
	}
	period, err := billing.NewPeriod(start, end)
	if err != nil {
		return Calculation{}, err
	}
	account, err := uow.Accounts().Get(ctx, accountID)
	if err != nil {
		return Calculation{}, fmt.Errorf("calculate %s: %w", accountID, err)
	}
	totals, err := uow.Consumption().SumRange(ctx, accountID, period.Start, period.End)
	if err != nil {
		return Calculation{}, fmt.Errorf("calculate %s: sum consumption: %w", accountID, err)
	}
	return e.price(ctx, uow, *account, period, totals)
}

func (e *Engine) price(ctx context.Context, uow store.UnitOfWork, account usage.Account, period billing.Period, totals usage.Totals) (Calculation, error) {
	rate, err := e.resolver.Resolve(ctx, uow.Rates(), account, period.End)
	if err != nil {
		return Calculation{}, fmt.Errorf("calculate %s: %w", account.ID, err)
	}
	quantity := totals.Quantity.Round(usage.QuantityScale)
	return Calculation{
		AccountID: account.ID,
		Period:    period,
		Quantity:  quantity,
		UnitPrice: rate.EffectiveUnitPrice(quantity),
		Amount:    rate.Charge(quantity),
		Rate:      rate,
		Records:   totals.Records,
		Estimated: totals.Estimated,
	}, nil
}

// Generate calculates the period and inserts a pending invoice. The caller commits.
func (e *Engine) Generate(ctx context.Context, uow store.UnitOfWork, accountID string, start, end time.Time) (*billing.Invoice, error) {
	invoice, err := e.generate(ctx, uow, accountID, start, end)
	metrics.IncInvoiceGenerate(metrics.ResultOf(err))
	return invoice, err
}

func (e *Engine) generate(ctx context.Context, uow store.UnitOfWork, accountID string, start, end time.Time) (*billing.Invoice, error) {
	calc, err := e.calculate(ctx, uow, accountID, start, end)
	if err != nil {
		return nil, err
	}
	exists, err := uow.Invoices().Exists(ctx, accountID, calc.Period.Start, calc.Period.End)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", accountID, err)
	}
	if exists {
		return nil, fmt.Errorf("generate %s %s..%s: %w", accountID,
			calc.Period.Start.Format(time.DateOnly), calc.Period.End.Format(time.DateOnly), billing.ErrDuplicateInvoice)
	}
	invoice := e.newInvoice(calc, billing.StatusPending)
	if err := uow.Invoices().Insert(ctx, invoice); err != nil {
		return nil, fmt.Errorf("generate %s: insert invoice: %w", accountID, err)
	}
	e.logger.Info("invoice generated",
		zap.String("account_id", accountID),
		zap.String("invoice_id", invoice.ID),
		zap.String("amount", invoice.Amount.String()),
		zap.String("rate_source", string(invoice.RateSource)),
	)
	return invoice, nil
}

func (e *Engine) dueDate(periodEnd time.Time) time.Time {
	return periodEnd.AddDate(0, 0, e.dueDays)
}

func (e *Engine) newInvoice(calc Calculation, status billing.Status) *billing.Invoice {
	return &billing.Invoice{
		ID:          e.newID(),
		AccountID:   calc.AccountID,
		PeriodStart: calc.Period.Start,
		PeriodEnd:   calc.Period.End,
		Quantity:    calc.Quantity,
		UnitPrice:   calc.UnitPrice,
		Amount:      calc.Amount,
		RateSource:  calc.Rate.Source,
		DueDate:     e.dueDate(calc.Period.End),
		Status:      status,
		Estimated:   calc.Estimated,
		CreatedAt:   e.clock.Now().UTC(),
	}
}

// EstimateFromReading prices usage implied by a cumulative meter reading:
// the reading minus the last invoiced quantity, or 80% of the reading when
// the account has no invoice yet. Negative usage clamps to zero.
func (e *Engine) EstimateFromReading(ctx context.Context, uow store.UnitOfWork, accountID string, reading decimal.Decimal) (Estimate, error) {
	if uow == nil {
		return Estimate{}, errors.New("billing engine: nil unit of work")
	}
	if reading.IsNegative() {
		return Estimate{}, billing.ErrNegativeReading
	}
	account, err := uow.Accounts().Get(ctx, accountID)
	if err != nil {
		return Estimate{}, fmt.Errorf("estimate %s: %w", accountID, err)
	}
	last, err := uow.Invoices().Latest(ctx, accountID)
	if err != nil {
		return Estimate{}, fmt.Errorf("estimate %s: latest invoice: %w", accountID, err)
	}

	est := Estimate{AccountID: accountID, Reading: reading}
	if last != nil {
		est.Quantity = reading.Sub(last.Quantity)
		end := last.PeriodEnd
		est.SinceInvoice = &end
	} else {
		est.Quantity = reading.Mul(estimateRatio)
	}
	if est.Quantity.IsNegative() {
		est.Quantity = decimal.Zero
	}
	est.Quantity = est.Quantity.Round(usage.QuantityScale)

	rate, err := e.resolver.Resolve(ctx, uow.Rates(), *account, usage.DayStart(e.clock.Now()))
	if err != nil {
		return Estimate{}, fmt.Errorf("estimate %s: %w", accountID, err)
	}
	est.UnitPrice = rate.EffectiveUnitPrice(est.Quantity)
	est.Amount = rate.Charge(est.Quantity)
	est.Source = rate.Source
	return est, nil
}

// Summarize aggregates consumption over [start, end].
func (e *Engine) Summarize(ctx context.Context, uow store.UnitOfWork, accountID string, start, end time.Time) (usage.Summary, error) {
	if uow == nil {
		return usage.Summary{}, errors.New("billing engine: nil unit of work")
	}
	period, err := billing.NewPeriod(start, end)
	if err != nil {
		return usage.Summary{}, err
	}
	if _, err := uow.Accounts().Get(ctx, accountID); err != nil {
		return usage.Summary{}, fmt.Errorf("summarize %s: %w", accountID, err)
	}
	records, err := uow.Consumption().ListRange(ctx, accountID, period.Start, period.End)
	if err != nil {
		return usage.Summary{}, fmt.Errorf("summarize %s: %w", accountID, err)
	}
	return usage.Summarize(accountID, period.Start, period.End, records), nil
}
