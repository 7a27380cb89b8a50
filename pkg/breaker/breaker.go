package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State of a circuit breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Error is returned when a call is rejected because the breaker is open.
// It lets callers distinguish "service is down" from "this call failed".
type Error struct {
	Name  string
	State State
}

func (e *Error) Error() string {
	return fmt.Sprintf("circuit breaker %s is %s", e.Name, e.State)
}

// Option configures a Breaker.
type Option func(*config)

type config struct {
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	now              func() time.Time
}

// WithFailureThreshold sets consecutive failures before opening.
func WithFailureThreshold(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets half-open successes required to close.
func WithSuccessThreshold(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.successThreshold = n
		}
	}
}

// WithTimeout sets how long the breaker stays open before probing.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// Breaker is a three-state circuit breaker guarding one external
// dependency. Safe for concurrent use.
type Breaker struct {
	name string
	cfg  config

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	nextAttempt  time.Time
}

// New creates a breaker with defaults: 5 failures to open, 2 successes
// to close, 30s open window.
func New(name string, opts ...Option) *Breaker {
	cfg := config{
		failureThreshold: 5,
		successThreshold: 2,
		timeout:          30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Breaker{name: name, cfg: cfg, state: StateClosed}
}

// Execute runs fn under the breaker's admission control. While OPEN and
// before the retry window it rejects with *Error without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.cfg.now().Before(b.nextAttempt) {
			return &Error{Name: b.name, State: b.state}
		}
		// retry window reached: probe with one call
		b.state = StateHalfOpen
		b.successCount = 0
	}
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.successThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
		}
	case StateClosed:
		b.failureCount = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// a single probe failure reopens immediately
		b.open()
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.failureThreshold {
			b.open()
		}
	}
}

// open transitions to OPEN and schedules the next probe. Callers hold mu.
func (b *Breaker) open() {
	b.state = StateOpen
	b.successCount = 0
	b.nextAttempt = b.cfg.now().Add(b.cfg.timeout)
}

// Name returns the breaker's registry name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot is a point-in-time view for health reporting.
type Snapshot struct {
	Name         string    `json:"name"`
	State        State     `json:"state"`
	FailureCount int       `json:"failure_count"`
	SuccessCount int       `json:"success_count"`
	NextAttempt  time.Time `json:"next_attempt,omitempty"`
}

// Snapshot returns the current counters and state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:         b.name,
		State:        b.state,
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
		NextAttempt:  b.nextAttempt,
	}
}
