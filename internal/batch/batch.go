// Package batch provides the bounded-concurrency segment processing used by
// the ingestion coordinator, adapted from the teacher monorepo's
// flow.Batch[I,O,T,R] (segmenter -> bounded processor -> aggregator)
// pattern for the two concrete shapes this engine needs: order-preserving
// concurrent fan-out, and sequential batches with retry/backoff.
package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Split groups items into consecutive batches of at most size items each.
// A size <= 0 is treated as "everything in one batch".
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// RunConcurrent runs fn over every item with at most limit goroutines in
// flight, preserving input order in the returned results. A limit <= 0
// processes all items with no cap. It is the bounded fan-out idiom used for
// multi-query retrieval and reranking.
func RunConcurrent[T any, R any](ctx context.Context, items []T, limit int, fn func(context.Context, int, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	for i, item := range items {
		group.Go(func() error {
			res, err := fn(groupCtx, i, item)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RetryPolicy describes a bounded exponential backoff schedule.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
	Cap         time.Duration
}

// DefaultRetryPolicy is the schedule mandated for embedding batches and
// vector-store upserts: up to 3 attempts with delays of 500ms, 1s, 2s,
// capped at 4s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Delays:      []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second},
	Cap:         4 * time.Second,
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if attempt < 0 || attempt >= len(p.Delays) {
		return p.Cap
	}
	if p.Delays[attempt] > p.Cap {
		return p.Cap
	}
	return p.Delays[attempt]
}

// Sleeper abstracts time.Sleep so tests can run without wall-clock delays.
type Sleeper func(context.Context, time.Duration)

// RealSleeper sleeps for the requested duration or until ctx is cancelled.
func RealSleeper(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// WithRetry runs fn up to policy.MaxAttempts times in total, with the
// policy's delay schedule between attempts. The final failure is returned
// verbatim. A nil sleeper defaults to RealSleeper.
func WithRetry(ctx context.Context, policy RetryPolicy, sleep Sleeper, fn func(ctx context.Context, attempt int) error) error {
	if sleep == nil {
		sleep = RealSleeper
	}

	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if attempt < attempts-1 {
			sleep(ctx, policy.delayFor(attempt))
		}
	}
	return lastErr
}
