package lease

import (
	"time"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
)

type Options struct {
	QueueUrl string
	// long poll wait time for each receive
	WaitTime time.Duration
	// visibility timeout requested on receive and on each extension
	VisibilityTimeout   time.Duration
	MaxNumberOfMessages int32
	// no lease is extended beyond ReceivedAt + MaxLease
	MaxLease time.Duration
	// if false, completed messages are left on the queue
	DeleteMessage bool
	// if true, released messages have their visibility reset so they are redelivered immediately
	ReleaseOnFailure bool
}

func DefaultOptions(queueUrl string) Options {
	return Options{
		QueueUrl:            queueUrl,
		WaitTime:            constants.DefaultPollSecs * time.Second,
		VisibilityTimeout:   constants.DefaultVisibilityTimeoutSecs * time.Second,
		MaxNumberOfMessages: constants.DefaultMaxNumberOfMessages,
		MaxLease:            constants.DefaultMaxLeaseSecs * time.Second,
		DeleteMessage:       true,
	}
}

// keepaliveInterval is how often leases are checked for extension
// It is a third of the extension threshold, so a lease is seen at least twice before it could expire
func (o Options) keepaliveInterval() time.Duration {
	interval := o.VisibilityTimeout / 6
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// extendThreshold is the remaining lease time below which the keepalive extends a lease
func (o Options) extendThreshold() time.Duration {
	return o.VisibilityTimeout / 2
}
