package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/notification"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

type ProtectedNotifierConfig struct {
	// Timeout bounds each delivery.
	Timeout time.Duration
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
	// HalfOpenMaxCalls trial calls may run concurrently while half open.
	HalfOpenMaxCalls int
	// OnStateChange, when set, is called outside the lock after each change.
	OnStateChange func(from, to BreakerState)
}

func (c *ProtectedNotifierConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 15 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
}

// ProtectedNotifier wraps a Notifier with a timeout and a circuit breaker so
// a failing delivery channel does not stall the worker.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	now   func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trials   int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	cfg.applyDefaults()
	return &ProtectedNotifier{inner: inner, cfg: cfg, now: time.Now}
}

// Notify fails fast with ErrCircuitOpen while the circuit is open. A call
// abandoned by its caller's context does not count against the channel.
func (n *ProtectedNotifier) Notify(ctx context.Context, in notification.Notification) error {
	if err := n.acquire(); err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	err := n.inner.Notify(sendCtx, in)
	cancel()

	callerGaveUp := err != nil && ctx.Err() != nil
	n.release(err, callerGaveUp)
	return err
}

func (n *ProtectedNotifier) State() BreakerState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *ProtectedNotifier) acquire() error {
	n.mu.Lock()
	from := n.state

	switch n.state {
	case StateOpen:
		if n.now().Sub(n.openedAt) < n.cfg.Cooldown {
			n.mu.Unlock()
			return ErrCircuitOpen
		}
		n.state = StateHalfOpen
		n.trials = 1
	case StateHalfOpen:
		if n.trials >= n.cfg.HalfOpenMaxCalls {
			n.mu.Unlock()
			return ErrCircuitOpen
		}
		n.trials++
	}

	to := n.state
	n.mu.Unlock()
	n.changed(from, to)
	return nil
}

func (n *ProtectedNotifier) release(err error, neutral bool) {
	n.mu.Lock()
	from := n.state

	if n.state == StateHalfOpen && n.trials > 0 {
		n.trials--
	}

	switch {
	case neutral:
	case err == nil:
		n.failures = 0
		n.state = StateClosed
	default:
		n.failures++
		if n.state == StateHalfOpen || n.failures >= n.cfg.FailureThreshold {
			n.state = StateOpen
			n.openedAt = n.now()
		}
	}

	to := n.state
	n.mu.Unlock()
	n.changed(from, to)
}

func (n *ProtectedNotifier) changed(from, to BreakerState) {
	if from != to && n.cfg.OnStateChange != nil {
		n.cfg.OnStateChange(from, to)
	}
}
