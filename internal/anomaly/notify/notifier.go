package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	anomaly "hydrospark/internal/anomaly/domain"
	"hydrospark/internal/observability/metrics"
	usage "hydrospark/internal/usage/domain"
)

// Clock provides time for dedupe bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Notifier renders new alerts and sends them through a channel.
type Notifier struct {
	channel      Channel
	template     *Template
	clock        Clock
	dedupeWindow time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("anomaly notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		clock:    systemClock{},
		sent:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify sends one message per alert. It attempts every alert and returns the joined errors.
func (n *Notifier) Notify(ctx context.Context, account usage.Account, alerts []anomaly.Alert) error {
	if n == nil {
		return nil
	}
	var errs []error
	for _, alert := range alerts {
		content, err := n.template.Render(buildTemplateData(account, alert))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !n.shouldSend(content) {
			continue
		}
		err = n.channel.Send(ctx, content)
		metrics.IncNotify(metrics.ResultOf(err))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n.markSent(content)
	}
	return errors.Join(errs...)
}

func buildTemplateData(account usage.Account, alert anomaly.Alert) TemplateData {
	name := account.Name
	if name == "" {
		name = alert.AccountID
	}
	return TemplateData{
		AccountID:   alert.AccountID,
		AccountName: name,
		Date:        alert.Date.UTC().Format(time.DateOnly),
		Type:        string(alert.Type),
		Observed:    alert.Observed.StringFixed(2),
		Expected:    alert.Expected.StringFixed(2),
		Deviation:   alert.DeviationPct.StringFixed(1),
		RiskScore:   alert.RiskScore.StringFixed(0),
		Suggestion:  suggestionFor(alert.Type),
	}
}

func suggestionFor(t anomaly.Type) string {
	switch t {
	case anomaly.TypeSpike:
		return "Check for burst pipes or unusual one-off usage."
	case anomaly.TypeLeak:
		return "Inspect fixtures and the service line for continuous flow."
	case anomaly.TypeUnusualPattern:
		return "Verify the meter reading and occupancy."
	default:
		return "Review the account consumption."
	}
}

func (n *Notifier) shouldSend(content string) bool {
	if n.dedupeWindow <= 0 {
		return true
	}
	n.mu.Lock()
	at, ok := n.sent[hashContent(content)]
	n.mu.Unlock()
	return !ok || n.clock.Now().Sub(at) >= n.dedupeWindow
}

func (n *Notifier) markSent(content string) {
	if n.dedupeWindow <= 0 {
		return
	}
	n.mu.Lock()
	n.sent[hashContent(content)] = n.clock.Now()
	n.mu.Unlock()
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}
