package retry

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestOrchestrator(maxAttempts int) (*Orchestrator, *[]time.Duration) {
	o := New(maxAttempts, 20*time.Second, testLogger())
	var slept []time.Duration
	o.sleep = func(d time.Duration) { slept = append(slept, d) }
	return o, &slept
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	o, slept := newTestOrchestrator(8)

	calls := 0
	err := o.Do("lookup", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept, "no delay before the first attempt")
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	o, slept := newTestOrchestrator(8)

	calls := 0
	err := o.Do("lookup", func() error {
		calls++
		if calls < 3 {
			return errors.New("overlay not settled")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2, "one delay per retry, none before the first attempt")
	assert.Equal(t, 20*time.Second, (*slept)[0])
}

func TestDoExhaustsCeiling(t *testing.T) {
	o, _ := newTestOrchestrator(8)

	boom := errors.New("calculator never appeared")
	calls := 0
	err := o.Do("profitability", func() error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.Equal(t, 8, calls, "exactly the ceiling, never more")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "after 8 attempts")
}

func TestNewClampsInvalidCeiling(t *testing.T) {
	o := New(0, time.Second, testLogger())
	assert.Equal(t, DefaultMaxAttempts, o.maxAttempts)
}
