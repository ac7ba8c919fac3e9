package pipeline

import (
	"runtime"
	"time"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/decoder"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/line_splitter"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/notification"
)

type CoordinatorOption func(*Coordinator)

func WithCompression(compression decoder.Compression) CoordinatorOption {
	return func(c *Coordinator) {
		c.compression = compression
	}
}

func WithSplitter(splitter *line_splitter.Splitter) CoordinatorOption {
	return func(c *Coordinator) {
		if splitter != nil {
			c.splitter = splitter
		}
	}
}

func WithNotificationDecoder(d *notification.Decoder) CoordinatorOption {
	return func(c *Coordinator) {
		if d != nil {
			c.notifications = d
		}
	}
}

// WithClientConcurrency sets the number of messages processed concurrently
func WithClientConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.clientConcurrency = n
		}
	}
}

// WithObjectConcurrency sets the number of objects of a single message processed concurrently
func WithObjectConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.objectConcurrency = n
		}
	}
}

// WithBatchSize sets the max number of lines in each rows event
func WithBatchSize(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithPollRetryDelay sets how long to wait after a failed poll
func WithPollRetryDelay(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollRetryDelay = d
		}
	}
}

// WithPoisonMessageMaxReceives deletes unparseable messages once they have been received n times (0 disables)
func WithPoisonMessageMaxReceives(n int) CoordinatorOption {
	return func(c *Coordinator) {
		c.poisonMessageMaxReceives = n
	}
}

func defaultCoordinator() *Coordinator {
	return &Coordinator{
		compression:       decoder.CompressionNone,
		splitter:          line_splitter.NewSplitter(),
		notifications:     notification.NewDecoder(),
		clientConcurrency: runtime.NumCPU(),
		objectConcurrency: constants.DefaultObjectConcurrency,
		batchSize:         constants.DefaultBatchSize,
		pollRetryDelay:    constants.DefaultPollSecs * time.Second,
	}
}
