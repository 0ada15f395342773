package pace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWaitEnforcesDelay(t *testing.T) {
	p := NewFixed(30*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, p.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestFixedWaitHonorsContext(t *testing.T) {
	p := NewFixed(time.Hour, time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdaptiveBacksOffAfterErrors(t *testing.T) {
	a := NewAdaptive(time.Second, 2*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}

	assert.Equal(t, 1500*time.Millisecond, a.minDelay)
	assert.Equal(t, 3*time.Second, a.maxDelay)
}

func TestAdaptiveRecoversTowardFloor(t *testing.T) {
	a := NewAdaptive(time.Second, 2*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}
	require.Equal(t, 1500*time.Millisecond, a.minDelay)

	for i := 0; i < 6; i++ {
		a.RecordSuccess()
	}
	assert.Equal(t, 1350*time.Millisecond, a.minDelay)
}

func TestAdaptiveNeverDropsBelowFloor(t *testing.T) {
	a := NewAdaptive(time.Second, 2*time.Second)

	for i := 0; i < 60; i++ {
		a.RecordSuccess()
	}
	assert.Equal(t, time.Second, a.minDelay)
}
