package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRejectsBadTime(t *testing.T) {
	_, err := NewScheduler("25:99", nil)
	require.Error(t, err)
}

func TestShouldRun(t *testing.T) {
	s, err := NewScheduler("02:30", nil)
	require.NoError(t, err)

	assert.True(t, s.shouldRun(time.Date(2024, 5, 1, 2, 30, 41, 0, time.UTC)))
	assert.False(t, s.shouldRun(time.Date(2024, 5, 1, 2, 31, 0, 0, time.UTC)))
	assert.False(t, s.shouldRun(time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)))
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	var order []string
	s, err := NewScheduler("02:00", nil,
		Job{Name: "backfill", Run: func(context.Context) error { order = append(order, "backfill"); return boom }},
		Job{Name: "detect", Run: func(context.Context) error { order = append(order, "detect"); return nil }},
	)
	require.NoError(t, err)

	err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"backfill", "detect"}, order)
}

func TestRunOnceStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	s, err := NewScheduler("02:00", nil,
		Job{Name: "first", Run: func(context.Context) error { cancel(); return nil }},
		Job{Name: "second", Run: func(context.Context) error { ran = true; return nil }},
	)
	require.NoError(t, err)

	err = s.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestStartReturnsOnCancel(t *testing.T) {
	s, err := NewScheduler("02:00", nil, Job{Name: "noop", Run: func(context.Context) error { return nil }})
	require.NoError(t, err)
	s.tick = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
