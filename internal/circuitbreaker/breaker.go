// Package circuitbreaker sheds load from a failing dependency. Each key
// tracks its own circuit: closed while healthy, open after repeated
// failures, half-open when probing for recovery.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State is the position of a circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

var stateChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mintora",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit breaker state transitions by key, from-state, and to-state.",
}, []string{"key", "from_state", "to_state"})

func init() {
	prometheus.MustRegister(stateChanges)
}

type circuit struct {
	state    State
	failures int
	openedAt time.Time
}

// Breaker holds one circuit per key. A circuit opens after threshold
// consecutive failures; after openFor it admits a single probe, and the
// probe's outcome either closes the circuit or reopens it.
type Breaker struct {
	threshold int
	openFor   time.Duration

	mu       sync.Mutex
	circuits map[string]*circuit

	// now is swappable in tests.
	now func() time.Time
}

// New builds a breaker. Non-positive arguments fall back to 5 failures and
// a 30 second open window.
func New(threshold int, openFor time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		openFor:   openFor,
		circuits:  make(map[string]*circuit),
		now:       time.Now,
	}
}

// Allow reports whether a call for key may proceed. An open circuit whose
// window has elapsed moves to half-open and admits this one call as the
// probe; further calls are rejected until the probe is recorded.
func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok {
		return true
	}

	switch c.state {
	case StateOpen:
		if b.now().Sub(c.openedAt) < b.openFor {
			return false
		}
		b.moveTo(key, c, StateHalfOpen)
		return true
	case StateHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess clears the failure streak and closes a half-open circuit.
func (b *Breaker) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok {
		return
	}
	c.failures = 0
	if c.state == StateHalfOpen {
		b.moveTo(key, c, StateClosed)
	}
}

// RecordFailure extends the failure streak, tripping the circuit open at
// the threshold. A failed probe reopens immediately.
func (b *Breaker) RecordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok {
		c = &circuit{}
		b.circuits[key] = c
	}
	c.failures++

	switch {
	case c.state == StateHalfOpen:
		b.moveTo(key, c, StateOpen)
	case c.state == StateClosed && c.failures >= b.threshold:
		b.moveTo(key, c, StateOpen)
	}
}

// State returns the circuit position for key; unknown keys are closed.
func (b *Breaker) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[key]; ok {
		return c.state
	}
	return StateClosed
}

// moveTo is called with b.mu held.
func (b *Breaker) moveTo(key string, c *circuit, to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	if to == StateOpen {
		c.openedAt = b.now()
	}
	stateChanges.WithLabelValues(key, from.String(), to.String()).Inc()
}
