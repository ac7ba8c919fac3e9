package rate_limiter

import (
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

const (
	// WorkerLimiterName is the name of the limiter bounding the number of messages processed concurrently
	WorkerLimiterName = "message_workers"
	// S3LimiterName is the name of the limiter applied to S3 GetObject requests
	S3LimiterName = "s3_get_object"
)

type Definition struct {
	// the limiter name
	Name string
	// the actual limiter config
	FillRate   rate.Limit
	BucketSize int64
	// the max concurrency supported
	MaxConcurrency int64
}

// WorkerDefinition returns a definition which only bounds concurrency
func WorkerDefinition(maxConcurrency int) *Definition {
	return &Definition{
		Name:           WorkerLimiterName,
		MaxConcurrency: int64(maxConcurrency),
	}
}

// RequestRateDefinition returns a definition which only limits the request rate
// the bucket size allows a one second burst
func RequestRateDefinition(name string, requestsPerSecond float64) *Definition {
	burst := int64(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Definition{
		Name:       name,
		FillRate:   rate.Limit(requestsPerSecond),
		BucketSize: burst,
	}
}

func (d *Definition) String() string {
	var parts []string
	if d.FillRate > 0 {
		parts = append(parts, fmt.Sprintf("Limit(/s): %v, Burst: %d", d.FillRate, d.BucketSize))
	}
	if d.MaxConcurrency > 0 {
		parts = append(parts, fmt.Sprintf("MaxConcurrency: %d", d.MaxConcurrency))
	}
	return strings.Join(parts, " ")
}

func (d *Definition) Validate() []string {
	var validationErrors []string
	if d.Name == "" {
		validationErrors = append(validationErrors, "rate limiter definition must specify a name")
	}
	if d.FillRate < 0 || d.BucketSize < 0 || d.MaxConcurrency < 0 {
		validationErrors = append(validationErrors, "rate limiter definition must not contain negative values")
	}
	if (d.FillRate == 0 || d.BucketSize == 0) && d.MaxConcurrency == 0 {
		validationErrors = append(validationErrors, "rate limiter definition must define either a rate limit or max concurrency")
	}

	return validationErrors
}
