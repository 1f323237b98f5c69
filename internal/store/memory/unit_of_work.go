package memory

import (
	"context"
	"sort"
	"time"

	anomaly "hydrospark/internal/anomaly/domain"
	billing "hydrospark/internal/billing/domain"
	forecast "hydrospark/internal/forecast/domain"
	rates "hydrospark/internal/rates/domain"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
)

type unitOfWork struct {
	store  *Store
	state  *mutableState
	closed bool
}

var _ store.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) Accounts() usage.AccountRepository        { return accountRepo{u} }
func (u *unitOfWork) Consumption() usage.ConsumptionRepository { return consumptionRepo{u} }
func (u *unitOfWork) Rates() rates.RuleRepository              { return rateRepo{u} }
func (u *unitOfWork) Invoices() billing.InvoiceRepository      { return invoiceRepo{u} }
func (u *unitOfWork) Forecasts() forecast.Repository           { return forecastRepo{u} }
func (u *unitOfWork) Alerts() anomaly.Repository               { return alertRepo{u} }

// Commit publishes the unit's writes.
func (u *unitOfWork) Commit() error {
	if u.closed {
		return store.ErrClosed
	}
	u.closed = true
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.state = u.state
	return nil
}

// Rollback discards the unit's writes. Rolling back a closed unit is a no-op.
func (u *unitOfWork) Rollback() error {
	u.closed = true
	return nil
}

func (u *unitOfWork) check(ctx context.Context) error {
	if u.closed {
		return store.ErrClosed
	}
	return ctx.Err()
}

type accountRepo struct{ u *unitOfWork }

func (r accountRepo) Get(ctx context.Context, id string) (*usage.Account, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, usage.ErrEmptyAccountID
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	account, ok := r.u.store.accounts[id]
	if !ok {
		return nil, usage.ErrAccountNotFound
	}
	return &account, nil
}

func (r accountRepo) List(ctx context.Context) ([]usage.Account, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	out := make([]usage.Account, 0, len(r.u.store.accounts))
	for _, account := range r.u.store.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type consumptionRepo struct{ u *unitOfWork }

func (r consumptionRepo) ListRange(ctx context.Context, accountID string, from, to time.Time) ([]usage.ConsumptionRecord, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	from, to = usage.DayStart(from), usage.DayStart(to)
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	var out []usage.ConsumptionRecord
	for date, record := range r.u.store.consumption[accountID] {
		if date.Before(from) || date.After(to) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r consumptionRepo) SumRange(ctx context.Context, accountID string, from, to time.Time) (usage.Totals, error) {
	records, err := r.ListRange(ctx, accountID, from, to)
	if err != nil {
		return usage.Totals{}, err
	}
	return usage.TotalsOf(records), nil
}

func (r consumptionRepo) Span(ctx context.Context, accountID string) (usage.Span, bool, error) {
	if err := r.u.check(ctx); err != nil {
		return usage.Span{}, false, err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	var span usage.Span
	found := false
	for date := range r.u.store.consumption[accountID] {
		if !found || date.Before(span.First) {
			span.First = date
		}
		if !found || date.After(span.Last) {
			span.Last = date
		}
		found = true
	}
	return span, found, nil
}

type rateRepo struct{ u *unitOfWork }

func (r rateRepo) ListByAccountType(ctx context.Context, accountType usage.AccountType, activeOnly bool) ([]rates.Rule, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	var out []rates.Rule
	for _, rule := range r.u.store.rules {
		if rule.AccountType != accountType || (activeOnly && !rule.Active) {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r rateRepo) FindRegionRate(ctx context.Context, region string) (*rates.RegionRate, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	rate, ok := r.u.store.regions[region]
	if !ok || !rate.Active {
		return nil, nil
	}
	return &rate, nil
}

type invoiceRepo struct{ u *unitOfWork }

func (r invoiceRepo) Exists(ctx context.Context, accountID string, start, end time.Time) (bool, error) {
	if err := r.u.check(ctx); err != nil {
		return false, err
	}
	for _, invoice := range r.u.state.invoices[accountID] {
		if invoice.PeriodStart.Equal(start) && invoice.PeriodEnd.Equal(end) {
			return true, nil
		}
	}
	return false, nil
}

func (r invoiceRepo) Insert(ctx context.Context, invoice *billing.Invoice) error {
	if err := r.u.check(ctx); err != nil {
		return err
	}
	if invoice == nil {
		return billing.ErrNilInvoice
	}
	r.u.store.mu.RLock()
	fault := r.u.store.faults[invoice.AccountID]
	r.u.store.mu.RUnlock()
	if fault != nil {
		return fault
	}
	exists, err := r.Exists(ctx, invoice.AccountID, invoice.PeriodStart, invoice.PeriodEnd)
	if err != nil {
		return err
	}
	if exists {
		return billing.ErrDuplicateInvoice
	}
	r.u.state.invoices[invoice.AccountID] = append(r.u.state.invoices[invoice.AccountID], *invoice)
	return nil
}

func (r invoiceRepo) Latest(ctx context.Context, accountID string) (*billing.Invoice, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	invoices := sortedInvoices(r.u.state.invoices[accountID])
	if len(invoices) == 0 {
		return nil, nil
	}
	latest := invoices[len(invoices)-1]
	return &latest, nil
}

func (r invoiceRepo) ListByAccount(ctx context.Context, accountID string) ([]billing.Invoice, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	return sortedInvoices(r.u.state.invoices[accountID]), nil
}

type forecastRepo struct{ u *unitOfWork }

func (r forecastRepo) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	if err := r.u.check(ctx); err != nil {
		return 0, err
	}
	n := int64(len(r.u.state.forecasts[accountID]))
	delete(r.u.state.forecasts, accountID)
	return n, nil
}

func (r forecastRepo) InsertBatch(ctx context.Context, points []forecast.Point) error {
	if err := r.u.check(ctx); err != nil {
		return err
	}
	for _, point := range points {
		r.u.state.forecasts[point.AccountID] = append(r.u.state.forecasts[point.AccountID], point)
	}
	return nil
}

func (r forecastRepo) ListByAccount(ctx context.Context, accountID string) ([]forecast.Point, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	return sortedPoints(r.u.state.forecasts[accountID]), nil
}

type alertRepo struct{ u *unitOfWork }

func (r alertRepo) Insert(ctx context.Context, alert *anomaly.Alert) error {
	if err := r.u.check(ctx); err != nil {
		return err
	}
	if alert == nil {
		return anomaly.ErrNilAlert
	}
	r.u.state.alerts[alert.AccountID] = append(r.u.state.alerts[alert.AccountID], *alert)
	return nil
}

func (r alertRepo) ExistsForDay(ctx context.Context, accountID string, date time.Time) (bool, error) {
	if err := r.u.check(ctx); err != nil {
		return false, err
	}
	date = usage.DayStart(date)
	for _, alert := range r.u.state.alerts[accountID] {
		if usage.DayStart(alert.Date).Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (r alertRepo) ListByAccount(ctx context.Context, accountID string) ([]anomaly.Alert, error) {
	if err := r.u.check(ctx); err != nil {
		return nil, err
	}
	return sortedAlerts(r.u.state.alerts[accountID]), nil
}
