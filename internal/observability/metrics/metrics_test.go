package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersBeforeInitAreNoops(t *testing.T) {
	if rateFallbackTotal != nil {
		t.Skip("metrics already registered")
	}
	IncRateFallback("Residential")
	ObserveBackfill("", time.Second)
}

func TestRateFallbackCounter(t *testing.T) {
	Init(nil, nil)
	require.NotNil(t, rateFallbackTotal)

	before := testutil.ToFloat64(rateFallbackTotal.WithLabelValues("Commercial"))
	IncRateFallback("Commercial")
	IncRateFallback("Commercial")
	assert.Equal(t, before+2, testutil.ToFloat64(rateFallbackTotal.WithLabelValues("Commercial")))

	unknownBefore := testutil.ToFloat64(rateFallbackTotal.WithLabelValues("unknown"))
	IncRateFallback("")
	assert.Equal(t, unknownBefore+1, testutil.ToFloat64(rateFallbackTotal.WithLabelValues("unknown")))
}

func TestBackfillInvoicesIgnoresNonPositive(t *testing.T) {
	Init(nil, nil)
	before := testutil.ToFloat64(backfillInvoices.WithLabelValues("generated"))
	AddBackfillInvoices("generated", 0)
	AddBackfillInvoices("generated", -1)
	AddBackfillInvoices("generated", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(backfillInvoices.WithLabelValues("generated")))
}

func TestResultOf(t *testing.T) {
	assert.Equal(t, ResultSuccess, ResultOf(nil))
	assert.Equal(t, ResultError, ResultOf(errors.New("boom")))
}
