// Package resilience provides fault-tolerance patterns for calls to the
// Ledger Service: retry with exponential backoff, circuit breaker, and
// bulkhead.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Config holds resilience parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
}

// maxBackoff caps the retry wait. The accrual scheduler retries whole
// passes anyway, so a single call never sleeps longer than this.
const maxBackoff = 5 * time.Second

// RetryWithBackoff runs fn until it succeeds, the attempts are
// exhausted, or ctx is cancelled. The wait doubles from
// cfg.InitialBackoff with up to 50% jitter, capped at maxBackoff.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries {
			return lastErr
		}

		backoff := cfg.InitialBackoff << attempt
		if backoff > maxBackoff || backoff <= 0 {
			backoff = maxBackoff
		}
		wait := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// NewCircuitBreaker creates a circuit breaker tuned for the Ledger
// Service. Accrual commits are never retried, so the breaker sees each
// failure exactly once; it trips at a 50% failure ratio over at least
// 8 calls, and state transitions are logged.
func NewCircuitBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,                // trial requests while half-open
		Interval:    60 * time.Second, // closed-state counter reset
		Timeout:     15 * time.Second, // open -> half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 8 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Bulkhead caps concurrent in-flight calls to the Ledger Service so a
// slow backend cannot absorb every goroutine in the process.
type Bulkhead struct {
	sem *semaphore.Weighted
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	return &Bulkhead{sem: semaphore.NewWeighted(int64(maxConcurrency))}
}

// Acquire blocks until a slot is available or ctx is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	return b.sem.Acquire(ctx, 1)
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	b.sem.Release(1)
}
