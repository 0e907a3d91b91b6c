package shipping

import (
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 10 * time.Minute
)

// BreakerState mirrors the values exported on shipping_breaker_state.
type BreakerState int

const (
	StateClosed   BreakerState = metrics.BreakerClosed
	StateOpen     BreakerState = metrics.BreakerOpen
	StateHalfOpen BreakerState = metrics.BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker stops calls to the rate API for a cooldown after it rate limits
// us or keeps failing. Once the cooldown passes a single probe is let
// through; its result closes or re-opens the breaker.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	openUntil time.Time
	probing   bool

	threshold int
	cooldown  time.Duration
	now       func() time.Time
	onChange  func(BreakerState)
}

// NewBreaker builds a closed breaker. onChange may be nil.
func NewBreaker(threshold int, cooldown time.Duration, onChange func(BreakerState)) *Breaker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Breaker{
		state:     StateClosed,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		onChange:  onChange,
	}
}

// Allow reports whether a call may go out now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return false
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Success records a completed call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != StateClosed {
		b.setState(StateClosed)
	}
}

// Failure records a failed call. A rate limit opens the breaker at once.
func (b *Breaker) Failure(rateLimited bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	b.failures++
	if rateLimited || b.state == StateHalfOpen || b.failures >= b.threshold {
		b.open()
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) open() {
	b.openUntil = b.now().Add(b.cooldown)
	b.failures = 0
	b.setState(StateOpen)
}

func (b *Breaker) setState(state BreakerState) {
	b.state = state
	if b.onChange != nil {
		b.onChange(state)
	}
}
