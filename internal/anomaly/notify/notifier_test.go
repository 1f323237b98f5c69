package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	anomaly "hydrospark/internal/anomaly/domain"
	usage "hydrospark/internal/usage/domain"
)

func spikeAlert() anomaly.Alert {
	return anomaly.Alert{
		ID:           "al-1",
		AccountID:    "a1",
		Date:         time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		Observed:     decimal.NewFromInt(100),
		Expected:     decimal.NewFromInt(11),
		DeviationPct: decimal.RequireFromString("809.09"),
		RiskScore:    decimal.NewFromInt(100),
		Type:         anomaly.TypeSpike,
		Status:       anomaly.StatusNew,
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL, WithTimeout(time.Second))
	require.NoError(t, err)
	notifier, err := NewNotifier(channel, nil)
	require.NoError(t, err)

	err = notifier.Notify(context.Background(), usage.Account{ID: "a1", Name: "Oak Street"}, []anomaly.Alert{spikeAlert()})
	require.NoError(t, err)

	select {
	case payload := <-payloadCh:
		assert.Equal(t, "text", payload.MsgType)
		for _, expected := range []string{
			"Account: Oak Street (a1)",
			"Date: 2024-06-12",
			"Type: spike",
			"Observed: 100.00",
			"Expected: 11.00",
			"Deviation: 809.1%",
			"Risk Score: 100",
		} {
			assert.Contains(t, payload.Text.Content, expected)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook payload")
	}
}

func TestWebhookChannelNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	require.NoError(t, err)
	err = channel.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type recordingChannel struct {
	mu       sync.Mutex
	contents []string
	err      error
}

func (r *recordingChannel) Send(_ context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.contents = append(r.contents, content)
	return nil
}

func (r *recordingChannel) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contents)
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestNotifierDedupeWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 13, 6, 0, 0, 0, time.UTC)}
	channel := &recordingChannel{}
	notifier, err := NewNotifier(channel, nil, WithClock(clock), WithDedupeWindow(time.Hour))
	require.NoError(t, err)
	account := usage.Account{ID: "a1"}

	require.NoError(t, notifier.Notify(context.Background(), account, []anomaly.Alert{spikeAlert()}))
	require.NoError(t, notifier.Notify(context.Background(), account, []anomaly.Alert{spikeAlert()}))
	assert.Equal(t, 1, channel.Count())

	clock.now = clock.now.Add(2 * time.Hour)
	require.NoError(t, notifier.Notify(context.Background(), account, []anomaly.Alert{spikeAlert()}))
	assert.Equal(t, 2, channel.Count())
}

func TestNotifierCustomTemplateAndErrors(t *testing.T) {
	tpl, err := NewTemplate("{{.Type}}:{{.AccountName}}")
	require.NoError(t, err)
	channel := &recordingChannel{}
	notifier, err := NewNotifier(channel, tpl)
	require.NoError(t, err)

	require.NoError(t, notifier.Notify(context.Background(), usage.Account{ID: "a1"}, []anomaly.Alert{spikeAlert()}))
	assert.Equal(t, "spike:a1", channel.contents[0])

	channel.err = errors.New("down")
	err = notifier.Notify(context.Background(), usage.Account{ID: "a1"}, []anomaly.Alert{spikeAlert(), spikeAlert()})
	require.Error(t, err)
	assert.Equal(t, 2, strings.Count(err.Error(), "down"))
}

func TestMultiNotifierFansOut(t *testing.T) {
	first, second := &recordingChannel{}, &recordingChannel{}
	n1, err := NewNotifier(first, nil)
	require.NoError(t, err)
	n2, err := NewNotifier(second, nil)
	require.NoError(t, err)

	multi := NewMultiNotifier(n1, nil, n2)
	require.NoError(t, multi.Notify(context.Background(), usage.Account{ID: "a1"}, []anomaly.Alert{spikeAlert()}))
	assert.Equal(t, 1, first.Count())
	assert.Equal(t, 1, second.Count())
}
