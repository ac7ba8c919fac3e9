package object_fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/rate_limiter"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
)

const (
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

// Fetcher retrieves the objects referenced by notifications
// It is safe for concurrent use
type Fetcher struct {
	clients       ClientProvider
	defaultRegion string
	limiter       *rate_limiter.APILimiter

	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
}

type FetcherOption func(*Fetcher)

// WithDefaultRegion sets the region used for references which do not specify one
func WithDefaultRegion(region string) FetcherOption {
	return func(f *Fetcher) {
		if region != "" {
			f.defaultRegion = region
		}
	}
}

// WithRateLimiter limits the rate of GetObject requests (including retries)
func WithRateLimiter(limiter *rate_limiter.APILimiter) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = limiter
	}
}

// WithBackoff sets the retry intervals for transient errors
// maxElapsed bounds the total time spent retrying a single object
func WithBackoff(initialInterval, maxInterval, maxElapsed time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if initialInterval > 0 {
			f.initialInterval = initialInterval
		}
		if maxInterval > 0 {
			f.maxInterval = maxInterval
		}
		if maxElapsed > 0 {
			f.maxElapsed = maxElapsed
		}
	}
}

func NewFetcher(clients ClientProvider, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		clients:         clients,
		defaultRegion:   constants.DefaultRegion,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		maxElapsed:      constants.DefaultFetchMaxElapsedSecs * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the referenced object
// Transient errors are retried with exponential backoff, not found and access denied errors are not.
// Any error returned is a *FetchError, unless ctx was cancelled in which case the context error is returned.
// The caller must close the returned body.
func (f *Fetcher) Fetch(ctx context.Context, ref types.ObjectReference) (*types.ObjectBody, error) {
	region := ref.Region
	if region == "" {
		region = f.defaultRegion
	}
	client, err := f.clients.Client(ctx, region)
	if err != nil {
		return nil, &FetchError{Kind: ErrorKindTransient, Ref: ref, Err: err}
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}

	attempt := 0
	op := func() (*s3.GetObjectOutput, error) {
		attempt++
		out, err := f.getObject(ctx, client, input)
		if err == nil {
			return out, nil
		}
		if isContextError(err) {
			return nil, backoff.Permanent(err)
		}
		fetchErr := &FetchError{Kind: classify(err), Ref: ref, Err: err}
		if fetchErr.Permanent() {
			return nil, backoff.Permanent(fetchErr)
		}
		return nil, fetchErr
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("transient error fetching object, retrying", "object", ref.String(), "attempt", attempt, "retry_in", wait.String(), "error", err)
	}

	out, err := backoff.RetryNotifyWithData(op, backoff.WithContext(f.newBackOff(), ctx), notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &FetchError{Kind: classify(err), Ref: ref, Err: err}
		}
		return nil, fetchErr
	}

	if out.Body == nil {
		return nil, &FetchError{Kind: ErrorKindTransient, Ref: ref, Err: fmt.Errorf("response has no body")}
	}

	return &types.ObjectBody{
		Body:            out.Body,
		ContentEncoding: out.ContentEncoding,
		ContentType:     out.ContentType,
		LastModified:    aws.ToTime(out.LastModified),
		Size:            aws.ToInt64(out.ContentLength),
	}, nil
}

func (f *Fetcher) getObject(ctx context.Context, client GetObjectAPI, input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		defer f.limiter.Release()
	}
	return client.GetObject(ctx, input)
}

func (f *Fetcher) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialInterval
	b.MaxInterval = f.maxInterval
	b.MaxElapsedTime = f.maxElapsed
	b.Reset()
	return b
}
