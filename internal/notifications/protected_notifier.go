package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type ProtectedNotifierConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // trial calls allowed while half-open

	// OnStateChange, when set, is called outside the lock after each
	// transition.
	OnStateChange func(from, to string)
}

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

// ProtectedNotifier wraps a Notifier with a per-call timeout and a circuit
// breaker so a failing provider does not tie up every worker.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	now   func() time.Time

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedNotifier{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: stateClosed,
	}
}

func (n *ProtectedNotifier) SendBookingConfirmation(ctx context.Context, in BookingConfirmationInput) error {
	return n.call(ctx, func(ctx context.Context) error {
		return n.inner.SendBookingConfirmation(ctx, in)
	})
}

func (n *ProtectedNotifier) SendBookingStatusChanged(ctx context.Context, in BookingStatusChangedInput) error {
	return n.call(ctx, func(ctx context.Context) error {
		return n.inner.SendBookingStatusChanged(ctx, in)
	})
}

func (n *ProtectedNotifier) State() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return string(n.state)
}

func (n *ProtectedNotifier) call(ctx context.Context, fn func(context.Context) error) error {
	allowed, from, to := n.allowRequest()
	n.notify(from, to)
	if !allowed {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := fn(sendCtx)
	n.notify(n.afterRequest(err))
	return err
}

func (n *ProtectedNotifier) notify(from, to breakerState) {
	if from != to && n.cfg.OnStateChange != nil {
		n.cfg.OnStateChange(string(from), string(to))
	}
}

func (n *ProtectedNotifier) allowRequest() (allowed bool, from, to breakerState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	from = n.state
	switch n.state {
	case stateOpen:
		if n.now().Sub(n.openedAt) < n.cfg.Cooldown {
			return false, from, n.state
		}
		n.state = stateHalfOpen
		n.halfOpenInFlight = 0
		fallthrough
	case stateHalfOpen:
		if n.halfOpenInFlight >= n.cfg.HalfOpenMaxCalls {
			return false, from, n.state
		}
		n.halfOpenInFlight++
		return true, from, n.state
	default:
		return true, from, n.state
	}
}

func (n *ProtectedNotifier) afterRequest(err error) (from, to breakerState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	from = n.state

	if n.state == stateHalfOpen && n.halfOpenInFlight > 0 {
		n.halfOpenInFlight--
	}

	if err == nil {
		n.consecutiveFailures = 0
		n.state = stateClosed
		return from, n.state
	}

	n.consecutiveFailures++

	// a failed trial call reopens immediately
	if n.state == stateHalfOpen || n.consecutiveFailures >= n.cfg.FailureThreshold {
		n.state = stateOpen
		n.openedAt = n.now()
	}
	return from, n.state
}
