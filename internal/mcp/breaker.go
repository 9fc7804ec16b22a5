package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds the circuit breaker settings.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trips the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
	// HalfOpenMaxRequests is the number of probes allowed while half-open.
	HalfOpenMaxRequests uint32
}

// DefaultBreakerConfig returns MaxFailures 3, Timeout 30s, HalfOpenMaxRequests 1.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 3, Timeout: 30 * time.Second, HalfOpenMaxRequests: 1}
}

type breaker struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(cfg BreakerConfig, onChange func(from, to gobreaker.State)) *breaker {
	def := DefaultBreakerConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.HalfOpenMaxRequests == 0 {
		cfg.HalfOpenMaxRequests = def.HalfOpenMaxRequests
	}

	settings := gobreaker.Settings{
		Name:        "knowledge-service",
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// A caller abandoning a request says nothing about the remote side.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onChange != nil {
				onChange(from, to)
			}
		},
	}
	return &breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breaker) execute(fn func() ([]byte, error)) ([]byte, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	if err != nil {
		return nil, err
	}
	body, _ := out.([]byte)
	return body, nil
}

func (b *breaker) open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func (b *breaker) state() string {
	return b.cb.State().String()
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
