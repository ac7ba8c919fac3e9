package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/decoder"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/internal_events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/line_splitter"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/notification"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/observable"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/rate_limiter"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
)

// ackTimeout bounds the delete or release call made for a message after processing
const ackTimeout = 30 * time.Second

// Coordinator polls the queue and processes each message on a worker: the notification is parsed,
// every referenced object is fetched, decoded, split and emitted to the observers, and the message is
// then deleted. A message is only deleted if every object it references was emitted in full.
type Coordinator struct {
	observable.ObservableImpl

	queue         Queue
	fetcher       ObjectFetcher
	notifications *notification.Decoder
	splitter      *line_splitter.Splitter
	compression   decoder.Compression

	clientConcurrency        int
	objectConcurrency        int
	batchSize                int
	pollRetryDelay           time.Duration
	poisonMessageMaxReceives int

	// bounds the number of messages in flight
	workers  *rate_limiter.APILimiter
	workerWg sync.WaitGroup
}

func NewCoordinator(queue Queue, fetcher ObjectFetcher, opts ...CoordinatorOption) *Coordinator {
	c := defaultCoordinator()
	c.queue = queue
	c.fetcher = fetcher
	for _, opt := range opts {
		opt(c)
	}
	c.workers = rate_limiter.NewAPILimiter(rate_limiter.WorkerDefinition(c.clientConcurrency))
	return c
}

// Run polls the queue until ctx is cancelled, then waits for in-flight messages to finish
// Messages whose processing is cut short by cancellation are released, never deleted
func (c *Coordinator) Run(ctx context.Context) error {
	slog.Info("Coordinator Run", "queue_url", c.queue.QueueUrl(), "workers", c.workers.String(), "object_concurrency", c.objectConcurrency)
	defer slog.Info("Coordinator Run complete")

	keepaliveCtx, cancelKeepalive := context.WithCancel(context.WithoutCancel(ctx))
	var keepaliveWg sync.WaitGroup
	keepaliveWg.Add(1)
	go func() {
		defer keepaliveWg.Done()
		c.queue.RunKeepalive(keepaliveCtx)
	}()

	c.pollLoop(ctx)

	// keep leases alive until the workers have drained
	c.workerWg.Wait()
	cancelKeepalive()
	keepaliveWg.Wait()
	return nil
}

func (c *Coordinator) pollLoop(ctx context.Context) {
	for ctx.Err() == nil {
		messages, err := c.queue.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			internal_events.SqsReceiveError{QueueUrl: c.queue.QueueUrl(), Err: err}.Emit()
			c.sleep(ctx, c.pollRetryDelay)
			continue
		}

		for _, msg := range messages {
			// block until a worker is free - this stops us polling while all workers are busy
			if err := c.workers.Wait(ctx); err != nil {
				c.release(ctx, msg, reasonShutdown)
				continue
			}
			c.workerWg.Add(1)
			go func(msg *types.QueueMessage) {
				defer func() {
					c.workers.Release()
					c.workerWg.Done()
				}()
				c.ProcessMessage(ctx, msg)
			}(msg)
		}
	}
}

func (c *Coordinator) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
