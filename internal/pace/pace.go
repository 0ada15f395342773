// Package pace spreads product processing out over time so the overlay
// and the storefront see a human-speed visit pattern.
package pace

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer gates the start of each product's processing.
type Pacer interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordError()
}

// Fixed waits a jittered delay between actions.
type Fixed struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewFixed(minDelay, maxDelay time.Duration) *Fixed {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Fixed{minDelay: minDelay, maxDelay: maxDelay}
}

func (p *Fixed) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.lastAction)
	delay := p.delay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	p.lastAction = time.Now()
	return nil
}

func (p *Fixed) RecordSuccess() {}
func (p *Fixed) RecordError()   {}

func (p *Fixed) delay() time.Duration {
	if p.minDelay >= p.maxDelay {
		return p.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(p.maxDelay - p.minDelay)))
	return p.minDelay + jitter
}

// Adaptive slows down after consecutive extraction failures and creeps
// back toward the configured floor after a streak of successes.
type Adaptive struct {
	*Fixed
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
	floor         time.Duration
}

func NewAdaptive(minDelay, maxDelay time.Duration) *Adaptive {
	return &Adaptive{
		Fixed:         NewFixed(minDelay, maxDelay),
		maxErrorCount: 3,
		backoffFactor: 1.5,
		floor:         minDelay,
	}
}

func (a *Adaptive) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < a.floor {
			newMin = a.floor
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *Adaptive) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > 60*time.Second {
			newMin = 60 * time.Second
		}
		if newMax > 120*time.Second {
			newMax = 120 * time.Second
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}

// None never waits. Used in tests and manual one-off runs.
type None struct{}

func (None) Wait(context.Context) error { return nil }
func (None) RecordSuccess()             {}
func (None) RecordError()               {}
