package notify

import (
	"context"
	"errors"

	anomaly "hydrospark/internal/anomaly/domain"
	usage "hydrospark/internal/usage/domain"
)

// AlertNotifier receives newly created alerts.
type AlertNotifier interface {
	Notify(ctx context.Context, account usage.Account, alerts []anomaly.Alert) error
}

// MultiNotifier dispatches alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []AlertNotifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...AlertNotifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards alerts to all notifiers.
func (m *MultiNotifier) Notify(ctx context.Context, account usage.Account, alerts []anomaly.Alert) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if notifier != nil {
			if err := notifier.Notify(ctx, account, alerts); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
