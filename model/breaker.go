package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hupe1980/a2ahost/logging"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerInterval    time.Duration = 60 * time.Second
	defaultBreakerTimeout     time.Duration = 30 * time.Second
)

// BreakerOptions contains options for the circuit breaker wrapper.
type BreakerOptions struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Logger receives state change events.
	Logger logging.Logger
}

// CircuitBreaker wraps a Model with circuit breaker protection. When the
// wrapped backend fails repeatedly, the circuit opens and subsequent calls
// fail fast without reaching the provider, preventing retry storms.
type CircuitBreaker struct {
	inner   Model
	breaker *gobreaker.CircuitBreaker[*Response]
}

var _ Model = (*CircuitBreaker)(nil)

// NewCircuitBreaker wraps inner with a circuit breaker.
func NewCircuitBreaker(inner Model, optFns ...func(o *BreakerOptions)) *CircuitBreaker {
	opts := BreakerOptions{
		MaxFailures: defaultBreakerMaxFailures,
		Interval:    defaultBreakerInterval,
		Timeout:     defaultBreakerTimeout,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)
	info := inner.Info()

	breaker := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        info.Provider + ":" + info.Name,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &CircuitBreaker{
		inner:   inner,
		breaker: breaker,
	}
}

// Generate implements Model. Calls are routed through the circuit breaker.
func (cb *CircuitBreaker) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := cb.breaker.Execute(func() (*Response, error) {
		return cb.inner.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("model %q circuit open: %w", cb.inner.Info().Name, err)
		}

		return nil, err
	}

	return resp, nil
}

// Info returns metadata of the wrapped model.
func (cb *CircuitBreaker) Info() Info {
	return cb.inner.Info()
}

// State returns the current circuit breaker state for monitoring.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}
