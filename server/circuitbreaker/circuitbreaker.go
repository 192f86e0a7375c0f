// Package circuitbreaker fails LLM calls fast while the provider keeps
// failing. It wraps sony/gobreaker and exports its state to Prometheus.
// It never retries.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string        // Label for logs and metrics
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Closed-state period after which counts reset
	Timeout          time.Duration // Time spent open before going half-open
	FailureThreshold uint32        // Consecutive failures that trip the breaker
	TestMode         bool          // Skip metric registration in test mode
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	stateGauge prometheus.Gauge
	tripsTotal prometheus.Counter
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config Config, logger *zap.Logger, registry *prometheus.Registry) (*CircuitBreaker, error) {
	if config.FailureThreshold == 0 {
		return nil, errors.New("failure threshold must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &CircuitBreaker{
		name:   config.Name,
		logger: logger,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "explainthat_circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			ConstLabels: prometheus.Labels{"name": config.Name},
		}),
		tripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "explainthat_circuit_breaker_trips_total",
			Help:        "Total number of times the circuit breaker has tripped",
			ConstLabels: prometheus.Labels{"name": config.Name},
		}),
	}

	if !config.TestMode && registry != nil {
		if err := registry.Register(c.stateGauge); err != nil {
			return nil, err
		}
		if err := registry.Register(c.tripsTotal); err != nil {
			return nil, err
		}
	}

	threshold := config.FailureThreshold
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: c.onStateChange,
		// A client that hung up says nothing about the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return c, nil
}

func (c *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	c.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		c.tripsTotal.Inc()
	}
	c.logger.Warn("circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f if the breaker allows it. While open, or when the
// half-open trial budget is spent, it returns ErrCircuitOpen without
// calling f.
func (c *CircuitBreaker) Execute(f func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current state of the circuit breaker.
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Counts returns the request counts for the current generation.
func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}
