package importer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pasarmalam/internal/schedule"
)

func civilTime(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, schedule.Civil)
}

func TestCronNext(t *testing.T) {
	tests := []struct {
		expr  string
		after time.Time
		want  time.Time
	}{
		{"0 4 * * *", civilTime(16, 3, 59), civilTime(16, 4, 0)},
		{"0 4 * * *", civilTime(16, 4, 0), civilTime(17, 4, 0)},
		{"*/15 * * * *", civilTime(16, 10, 7), civilTime(16, 10, 15)},
		{"30 9 * * 1-5", civilTime(16, 10, 0), civilTime(19, 9, 30)}, // Friday to Monday
		{"0 0 1 * *", civilTime(16, 0, 0), time.Date(2026, 11, 1, 0, 0, 0, 0, schedule.Civil)},
		{"5,35 * * * *", civilTime(16, 10, 6), civilTime(16, 10, 35)},
		{"0 3 * * 7", civilTime(16, 12, 0), civilTime(18, 3, 0)},
		{"0 3 * * 5-7", civilTime(16, 12, 0), civilTime(17, 3, 0)},
		{"0 3 * * 6-7", civilTime(17, 12, 0), civilTime(18, 3, 0)},
	}
	for _, tt := range tests {
		c, err := ParseCron(tt.expr)
		require.NoError(t, err, tt.expr)
		got, ok := c.Next(tt.after)
		require.True(t, ok, tt.expr)
		assert.True(t, got.Equal(tt.want), "%s after %s: got %s want %s", tt.expr, tt.after, got, tt.want)
	}
}

func TestCronNextEvaluatesInCivilTime(t *testing.T) {
	c, err := ParseCron("0 4 * * *")
	require.NoError(t, err)
	got, ok := c.Next(time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC)), "04:00 MYT is 20:00 UTC, got %s", got)
}

func TestCronEitherDayFieldFires(t *testing.T) {
	c, err := ParseCron("0 3 1 * 1")
	require.NoError(t, err)

	got, ok := c.Next(civilTime(16, 12, 0))
	require.True(t, ok)
	assert.True(t, got.Equal(civilTime(19, 3, 0)), "first Monday wins, got %s", got)

	got, ok = c.Next(civilTime(26, 12, 0))
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2026, 11, 1, 3, 0, 0, 0, schedule.Civil)), "the 1st fires on a Sunday, got %s", got)
}

func TestParseCronErrors(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "60 * * * *", "* 24 * * *", "5-1 * * * *", "a * * * *", "* * * * 8"} {
		_, err := ParseCron(expr)
		assert.Error(t, err, expr)
	}
	c, err := ParseCron("0 0 31 2 *")
	require.NoError(t, err)
	_, ok := c.Next(civilTime(16, 0, 0))
	assert.False(t, ok, "February 31st never comes")
}

func TestRunCronStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- RunCron(ctx, "* * * * *", nil, func(context.Context, time.Time) error {
			calls.Add(1)
			return errors.New("ignored")
		}, discardLogger())
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Error(t, RunCron(context.Background(), "bad", nil, nil, discardLogger()))
}
