// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package sync

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/manicsync/manicsync/internal/logging"
	"github.com/manicsync/manicsync/internal/metrics"
)

// requestBreaker protects the remote server from hammering while it is
// down and the sync pass from stalling on a dead endpoint. The breaker
// uses real time for its open/half-open transitions; tests exercise the
// client underneath it rather than the breaker's clock.
type requestBreaker struct {
	cb   *gobreaker.CircuitBreaker[breakerResult]
	name string
}

// breakerResult carries a response body and status through the breaker.
type breakerResult struct {
	body   []byte
	status int
}

// newRequestBreaker opens after threshold consecutive failures and
// probes again after cooldown. Zero values fall back to 5 failures and
// a 60 second cooldown.
func newRequestBreaker(name string, threshold int, cooldown time.Duration) *requestBreaker {
	if threshold < 1 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[breakerResult](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // single probe in half-open state
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= uint32(threshold)
			if shouldTrip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Str("breaker", name).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &requestBreaker{cb: cb, name: name}
}

// execute runs fn under breaker protection and records the outcome.
func (b *requestBreaker) execute(fn func() ([]byte, int, error)) ([]byte, int, error) {
	result, err := b.cb.Execute(func() (breakerResult, error) {
		body, status, err := fn()
		return breakerResult{body: body, status: status}, err
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		}
		return result.body, result.status, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result.body, result.status, nil
}

// stateToFloat converts circuit breaker state to a metric value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a readable label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
