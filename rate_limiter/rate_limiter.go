package rate_limiter

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// APILimiter combines a token bucket rate limiter with a concurrency semaphore
// Either may be absent, in which case it does not limit
// Every successful Wait must be paired with a Release
type APILimiter struct {
	Name string

	// underlying rate limiter
	limiter *rate.Limiter
	// semaphore to control concurrency
	sem            *semaphore.Weighted
	maxConcurrency int64
}

func NewAPILimiter(l *Definition) *APILimiter {
	res := &APILimiter{
		Name:           l.Name,
		maxConcurrency: l.MaxConcurrency,
	}
	if l.FillRate > 0 && l.BucketSize > 0 {
		res.limiter = rate.NewLimiter(l.FillRate, int(l.BucketSize))
	}
	if l.MaxConcurrency > 0 {
		res.sem = semaphore.NewWeighted(l.MaxConcurrency)
	}
	return res
}

func (l *APILimiter) String() string {
	var parts []string
	if l.limiter != nil {
		parts = append(parts, fmt.Sprintf("Limit(/s): %v, Burst: %d", l.limiter.Limit(), l.limiter.Burst()))
	}
	if l.sem != nil {
		parts = append(parts, fmt.Sprintf("MaxConcurrency: %d", l.maxConcurrency))
	}
	return strings.Join(parts, " ")
}

func (l *APILimiter) acquireSemaphore(ctx context.Context) error {
	if l.sem == nil {
		return nil
	}
	return l.sem.Acquire(ctx, 1)
}

func (l *APILimiter) TryToAcquireSemaphore() bool {
	if l.sem == nil {
		return true
	}
	return l.sem.TryAcquire(1)
}

// Wait blocks until a concurrency slot and a rate token are available, or ctx is done
// If the rate wait fails the concurrency slot is given back
func (l *APILimiter) Wait(ctx context.Context) error {
	if err := l.acquireSemaphore(ctx); err != nil {
		return err
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			l.Release()
			return err
		}
	}
	return nil
}

func (l *APILimiter) Release() {
	if l.sem == nil {
		return
	}
	l.sem.Release(1)
}
