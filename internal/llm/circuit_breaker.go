package llm

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects requests after
// repeated provider failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig tunes the provider breaker. Zero values take the
// defaults noted on each field.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trips the
	// circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing probe
	// requests. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive probe successes
	// required to close the circuit again. Default: 2.
	HalfOpenMaxSuccesses uint32
}

func (c *CircuitBreakerConfig) normalize() {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxSuccesses == 0 {
		c.HalfOpenMaxSuccesses = 2
	}
}

// CircuitBreaker wraps gobreaker so a failing provider degrades the pipeline
// instead of stalling it. Closed passes requests through, open rejects them
// immediately with ErrCircuitOpen, half-open lets probes through.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a breaker with default settings. The name shows
// up in state-change logs ("llm: breaker ollama closed -> open").
func NewCircuitBreaker(name string) *CircuitBreaker {
	return NewCircuitBreakerWithConfig(name, CircuitBreakerConfig{})
}

// NewCircuitBreakerWithConfig creates a breaker with explicit settings.
func NewCircuitBreakerWithConfig(name string, config CircuitBreakerConfig) *CircuitBreaker {
	config.normalize()

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.HalfOpenMaxSuccesses,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("llm: breaker %s %s -> %s", name, from, to)
		},
	}

	return &CircuitBreaker{name: name, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. A canceled context counts as a
// failure so a hung provider still trips the circuit.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return result, err
}

// State reports "closed", "open", or "half-open".
func (cb *CircuitBreaker) State() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Counts exposes the breaker's request counters for health reporting.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}
