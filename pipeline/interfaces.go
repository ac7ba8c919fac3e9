package pipeline

import (
	"context"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
)

// Queue receives messages and acknowledges them. It is implemented by [lease.Manager]
type Queue interface {
	Poll(ctx context.Context) ([]*types.QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
	Release(ctx context.Context, receiptHandle string, reason string) error
	RunKeepalive(ctx context.Context)
	QueueUrl() string
}

// ObjectFetcher retrieves referenced objects. It is implemented by [object_fetcher.Fetcher]
type ObjectFetcher interface {
	Fetch(ctx context.Context, ref types.ObjectReference) (*types.ObjectBody, error)
}
