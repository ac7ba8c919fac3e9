package connection

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

const maxBackoff = 5 * time.Minute

// NoOpRateLimit disables the client side retry token bucket of the standard retryer
// https://github.com/aws/aws-sdk-go-v2/issues/543
type NoOpRateLimit struct{}

func (NoOpRateLimit) AddTokens(uint) error { return nil }
func (NoOpRateLimit) GetToken(context.Context, uint) (func() error, error) {
	return noOpToken, nil
}
func noOpToken() error { return nil }

// ExponentialJitterBackoff provides backoff delays with jitter based on the
// number of attempts.
type ExponentialJitterBackoff struct {
	minDelay           time.Duration
	maxBackoffAttempts int
}

// NewExponentialJitterBackoff returns an ExponentialJitterBackoff configured
// for the max backoff.
func NewExponentialJitterBackoff(minDelay time.Duration, maxAttempts int) *ExponentialJitterBackoff {
	return &ExponentialJitterBackoff{minDelay, maxAttempts}
}

// BackoffDelay returns the duration to wait before the next attempt should be
// made. Returns an error if unable get a duration.
func (j *ExponentialJitterBackoff) BackoffDelay(attempt int, err error) (time.Duration, error) {
	// the calculated jitter will be between [0.8, 1.2)
	var jitter = float64(rand.Intn(120-80)+80) / 100

	retryTime := time.Duration(float64(j.minDelay.Nanoseconds()) * math.Pow(3, float64(attempt)) * jitter)

	if retryTime > maxBackoff || retryTime < 0 {
		retryTime = maxBackoff
	}

	slog.Debug("BackoffDelay:", "attempt", attempt, "retry_time", retryTime.String(), "error", err)

	return retryTime, nil
}
