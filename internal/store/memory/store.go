// Package memory is an in-process implementation of the store used for
// tests, local runs and the demo seed.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	anomaly "hydrospark/internal/anomaly/domain"
	billing "hydrospark/internal/billing/domain"
	forecast "hydrospark/internal/forecast/domain"
	rates "hydrospark/internal/rates/domain"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
)

// Store keeps every table in memory. Reference data (accounts, consumption,
// rates) is written through the seeding methods; invoices, forecasts and
// alerts are written through units of work.
type Store struct {
	mu sync.RWMutex

	accounts    map[string]usage.Account
	consumption map[string]map[time.Time]usage.ConsumptionRecord
	rules       []rates.Rule
	regions     map[string]rates.RegionRate
	nextRuleID  int64

	state  *mutableState
	faults map[string]error
}

type mutableState struct {
	invoices  map[string][]billing.Invoice
	forecasts map[string][]forecast.Point
	alerts    map[string][]anomaly.Alert
}

func newMutableState() *mutableState {
	return &mutableState{
		invoices:  make(map[string][]billing.Invoice),
		forecasts: make(map[string][]forecast.Point),
		alerts:    make(map[string][]anomaly.Alert),
	}
}

func (s *mutableState) clone() *mutableState {
	out := newMutableState()
	for k, v := range s.invoices {
		out.invoices[k] = append([]billing.Invoice(nil), v...)
	}
	for k, v := range s.forecasts {
		out.forecasts[k] = append([]forecast.Point(nil), v...)
	}
	for k, v := range s.alerts {
		out.alerts[k] = append([]anomaly.Alert(nil), v...)
	}
	return out
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]usage.Account),
		consumption: make(map[string]map[time.Time]usage.ConsumptionRecord),
		regions:     make(map[string]rates.RegionRate),
		state:       newMutableState(),
		faults:      make(map[string]error),
	}
}

var _ store.Factory = (*Store)(nil)

// Begin snapshots mutable tables into a new unit of work.
func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &unitOfWork{store: s, state: s.state.clone()}, nil
}

// AddAccount inserts or replaces an account.
func (s *Store) AddAccount(account usage.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

// AddConsumption inserts or replaces records, keeping one per (account, date).
func (s *Store) AddConsumption(records ...usage.ConsumptionRecord) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		record.Date = usage.DayStart(record.Date)
		days := s.consumption[record.AccountID]
		if days == nil {
			days = make(map[time.Time]usage.ConsumptionRecord)
			s.consumption[record.AccountID] = days
		}
		days[record.Date] = record
	}
	return nil
}

// UpsertRule stores a rule, assigning an id when it has none.
func (s *Store) UpsertRule(_ context.Context, rule rates.Rule) (int64, error) {
	if err := rule.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == 0 {
		s.nextRuleID++
		rule.ID = s.nextRuleID
	} else if rule.ID > s.nextRuleID {
		s.nextRuleID = rule.ID
	}
	for i, existing := range s.rules {
		if existing.ID == rule.ID {
			s.rules[i] = rule
			return rule.ID, nil
		}
	}
	s.rules = append(s.rules, rule)
	return rule.ID, nil
}

// UpsertRegionRate stores a region rate.
func (s *Store) UpsertRegionRate(_ context.Context, rate rates.RegionRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[rate.Region] = rate
	return nil
}

// FailInvoiceInsert makes invoice inserts for accountID fail with err until cleared with nil.
func (s *Store) FailInvoiceInsert(accountID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, accountID)
		return
	}
	s.faults[accountID] = err
}

// Invoices returns committed invoices for an account ordered by period.
func (s *Store) Invoices(accountID string) []billing.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedInvoices(s.state.invoices[accountID])
}

// Forecasts returns committed forecast points for an account ordered by date.
func (s *Store) Forecasts(accountID string) []forecast.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPoints(s.state.forecasts[accountID])
}

// Alerts returns committed alerts for an account ordered by date.
func (s *Store) Alerts(accountID string) []anomaly.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedAlerts(s.state.alerts[accountID])
}

func sortedInvoices(in []billing.Invoice) []billing.Invoice {
	out := append([]billing.Invoice(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out
}

func sortedPoints(in []forecast.Point) []forecast.Point {
	out := append([]forecast.Point(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func sortedAlerts(in []anomaly.Alert) []anomaly.Alert {
	out := append([]anomaly.Alert(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
