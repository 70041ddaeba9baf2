package notifier

import (
	"errors"
	"sync"
	"time"

	"github.com/mescon/Tickarr/internal/clock"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state - deliveries are allowed.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects deliveries until the reset timeout has passed.
	CircuitOpen
	// CircuitHalfOpen lets probe deliveries through to test the target.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrCircuitOpen is reported when a target is skipped because its circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open: notification target unavailable")

// BreakerConfig configures when a failing target is taken out of rotation.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that open the circuit.
	// Default: 5
	FailureThreshold int
	// ResetTimeout is how long an open circuit waits before a probe.
	// Default: 1 minute
	ResetTimeout time.Duration
	// SuccessThreshold is the number of probe successes that close the circuit.
	// Default: 1
	SuccessThreshold int
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
		SuccessThreshold: 1,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	return c
}

// BreakerStats is a snapshot of one target's breaker.
type BreakerStats struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastFailureTime     time.Time    `json:"last_failure_time"`
	TotalFailures       int64        `json:"total_failures"`
	TotalSuccesses      int64        `json:"total_successes"`
	TotalRejected       int64        `json:"total_rejected"`
}

// breaker tracks delivery health of one notification URL.
type breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	clk       clock.Clock
	state     CircuitState
	failures  int
	successes int
	lastFail  time.Time
	totalFail int64
	totalOK   int64
	rejected  int64
}

func newBreaker(cfg BreakerConfig, clk clock.Clock) *breaker {
	return &breaker{cfg: cfg.withDefaults(), clk: clk}
}

// allow reports whether a delivery may be attempted. An open circuit moves to
// half-open once the reset timeout has passed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitOpen {
		return true
	}
	if b.clk.Now().Sub(b.lastFail) >= b.cfg.ResetTimeout {
		b.state = CircuitHalfOpen
		b.successes = 0
		return true
	}
	b.rejected++
	return false
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalOK++
	b.failures = 0
	if b.state == CircuitHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = CircuitClosed
			b.successes = 0
		}
	}
}

// recordFailure returns true when this failure opened the circuit.
func (b *breaker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFail++
	b.failures++
	b.successes = 0
	b.lastFail = b.clk.Now()

	switch b.state {
	case CircuitClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.state = CircuitOpen
			return true
		}
	case CircuitHalfOpen:
		b.state = CircuitOpen
		return true
	}
	return false
}

func (b *breaker) stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		LastFailureTime:     b.lastFail,
		TotalFailures:       b.totalFail,
		TotalSuccesses:      b.totalOK,
		TotalRejected:       b.rejected,
	}
}

// breakerRegistry hands out one breaker per URL.
type breakerRegistry struct {
	mu       sync.RWMutex
	cfg      BreakerConfig
	clk      clock.Clock
	breakers map[string]*breaker
}

func newBreakerRegistry(cfg BreakerConfig, clk clock.Clock) *breakerRegistry {
	return &breakerRegistry{cfg: cfg.withDefaults(), clk: clk, breakers: make(map[string]*breaker)}
}

func (r *breakerRegistry) get(url string) *breaker {
	r.mu.RLock()
	b, ok := r.breakers[url]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[url]; ok {
		return b
	}
	b = newBreaker(r.cfg, r.clk)
	r.breakers[url] = b
	return b
}

func (r *breakerRegistry) all() map[string]BreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]BreakerStats, len(r.breakers))
	for url, b := range r.breakers {
		out[url] = b.stats()
	}
	return out
}
