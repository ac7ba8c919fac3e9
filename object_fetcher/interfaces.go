package object_fetcher

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GetObjectAPI is the subset of the S3 client used to retrieve objects
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ClientProvider returns an S3 client for the given region
type ClientProvider interface {
	Client(ctx context.Context, region string) (GetObjectAPI, error)
}
