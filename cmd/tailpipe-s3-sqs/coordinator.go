package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	typehelpers "github.com/turbot/go-kit/types"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/config"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/lease"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/line_splitter"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/object_fetcher"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/pipeline"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/rate_limiter"
)

// newCoordinator builds the AWS clients and wires them into a coordinator
func newCoordinator(ctx context.Context, cfg *config.Config) (*pipeline.Coordinator, error) {
	queueConfig, err := cfg.Connection.GetClientConfiguration(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	sqsClient := sqs.NewFromConfig(*queueConfig)

	queueUrl := typehelpers.SafeString(cfg.Sqs.QueueUrl)
	if queueUrl == "" {
		queueUrl, err = lease.ResolveQueueUrl(ctx, sqsClient, typehelpers.SafeString(cfg.Sqs.QueueName), typehelpers.SafeString(cfg.Sqs.QueueOwner))
		if err != nil {
			return nil, err
		}
	}
	slog.Info("resolved queue", "queue_url", queueUrl, "region", queueConfig.Region)
	leases := lease.NewManager(sqsClient, cfg.LeaseOptions(queueUrl))

	clients, err := object_fetcher.NewRegionalClients(cfg.Connection, 0)
	if err != nil {
		return nil, err
	}
	fetchOpts := []object_fetcher.FetcherOption{
		object_fetcher.WithDefaultRegion(queueConfig.Region),
		object_fetcher.WithBackoff(0, 0, cfg.FetchMaxElapsed()),
	}
	if rps := *cfg.S3.RequestsPerSecond; rps > 0 {
		limiter := rate_limiter.NewAPILimiter(rate_limiter.RequestRateDefinition(rate_limiter.S3LimiterName, rps))
		slog.Info("limiting S3 requests", "limiter", limiter.String())
		fetchOpts = append(fetchOpts, object_fetcher.WithRateLimiter(limiter))
	}
	fetcher := object_fetcher.NewFetcher(clients, fetchOpts...)

	rule, err := cfg.MultilineRule()
	if err != nil {
		return nil, err
	}
	splitter := line_splitter.NewSplitter(
		line_splitter.WithMultiline(rule),
		line_splitter.WithMaxLineBytes(*cfg.MaxLineBytes),
	)

	return pipeline.NewCoordinator(leases, fetcher,
		pipeline.WithCompression(cfg.CompressionOption()),
		pipeline.WithSplitter(splitter),
		pipeline.WithNotificationDecoder(cfg.NotificationDecoder()),
		pipeline.WithClientConcurrency(*cfg.Sqs.ClientConcurrency),
		pipeline.WithObjectConcurrency(*cfg.Sqs.ObjectConcurrency),
		pipeline.WithBatchSize(*cfg.BatchSize),
		pipeline.WithPollRetryDelay(cfg.PollRetryDelay()),
		pipeline.WithPoisonMessageMaxReceives(*cfg.Sqs.PoisonMessageMaxReceives),
	), nil
}
