package strategyrt

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// defaultMaxParallelReads bounds how many market-data reads a single strategy
// may have in flight at once.
const defaultMaxParallelReads = 4

// RateLimiter bounds a single strategy's concurrent on-chain submissions and
// market-data reads (subgraph queries and on-chain reserve and balance
// reads alike). Each strategy owns its own RateLimiter instance — limits
// are per-strategy, not shared process-wide.
type RateLimiter struct {
	submit *semaphore.Weighted
	reads  *semaphore.Weighted
}

// NewRateLimiter returns a limiter allowing at most one in-flight on-chain
// submission and maxParallelReads concurrent market-data reads. A
// maxParallelReads of zero or less falls back to defaultMaxParallelReads.
func NewRateLimiter(maxParallelReads int) *RateLimiter {
	if maxParallelReads <= 0 {
		maxParallelReads = defaultMaxParallelReads
	}
	return &RateLimiter{
		submit: semaphore.NewWeighted(1),
		reads:  semaphore.NewWeighted(int64(maxParallelReads)),
	}
}

// AcquireSubmit blocks until the single on-chain submission slot is free, or
// ctx is done.
func (r *RateLimiter) AcquireSubmit(ctx context.Context) error {
	return r.submit.Acquire(ctx, 1)
}

// ReleaseSubmit frees the on-chain submission slot.
func (r *RateLimiter) ReleaseSubmit() {
	r.submit.Release(1)
}

// AcquireRead blocks until a market-data read slot is free, or ctx is done.
func (r *RateLimiter) AcquireRead(ctx context.Context) error {
	return r.reads.Acquire(ctx, 1)
}

// ReleaseRead frees a subgraph read slot.
func (r *RateLimiter) ReleaseRead() {
	r.reads.Release(1)
}
