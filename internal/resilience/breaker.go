package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected by an open breaker.
var ErrBreakerOpen = eris.New("circuit breaker is open")

// Breaker stops calling a failing upstream for a cooldown period.
// Threshold failures inside Window open it; after Cooldown one probe is let
// through, and its result closes or reopens the breaker.
type Breaker struct {
	name      string
	threshold int
	window    time.Duration
	cooldown  time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	openedAt    time.Time

	nowFunc func() time.Time
}

// NewBreaker creates a closed breaker. Zero values default to 3 failures in
// 30s opening the breaker for 60s.
func NewBreaker(name string, threshold int, window, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 30 * time.Second
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

// Allow reports whether a call would currently be let through.
func (b *Breaker) Allow() bool {
	return b.State() != BreakerOpen
}

// State returns the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.nowFunc().Sub(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal is Execute for functions that return a value.
func ExecuteVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.acquire() {
		return zero, ErrBreakerOpen
	}
	val, err := fn(ctx)
	b.Record(err)
	return val, err
}

func (b *Breaker) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return true
	}
	if b.nowFunc().Sub(b.openedAt) >= b.cooldown {
		b.transition(BreakerHalfOpen)
		return true
	}
	return false
}

// Record feeds a call result into the breaker. Callers that cannot wrap
// their call in Execute report outcomes here.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFunc()
	if err == nil {
		b.failures = 0
		if b.state != BreakerClosed {
			b.transition(BreakerClosed)
		}
		return
	}

	if now.Sub(b.lastFailure) > b.window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now

	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.openedAt = now
		if b.state != BreakerOpen {
			b.transition(BreakerOpen)
			zap.L().Warn("resilience: circuit breaker opened",
				zap.String("breaker", b.name),
				zap.Int("failures", b.failures),
				zap.Duration("cooldown", b.cooldown),
			)
		}
	}
}

func (b *Breaker) transition(to BreakerState) {
	zap.L().Debug("resilience: breaker state change",
		zap.String("breaker", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}
