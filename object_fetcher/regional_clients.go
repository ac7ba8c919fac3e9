package object_fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/connection"
)

const defaultClientCacheSize = 32

type newClientFunc func(ctx context.Context, region string) (GetObjectAPI, error)

// RegionalClients is a [ClientProvider] which creates one S3 client per region and caches them
// Clients share the connection's HTTP client so creating one is cheap, but loading the config is not
type RegionalClients struct {
	cache     *lru.Cache[string, GetObjectAPI]
	newClient newClientFunc
	// serialises client creation so each region is only loaded once
	mut sync.Mutex
}

func NewRegionalClients(conn *connection.AwsConnection, cacheSize int) (*RegionalClients, error) {
	return newRegionalClients(cacheSize, func(ctx context.Context, region string) (GetObjectAPI, error) {
		cfg, err := conn.GetClientConfiguration(ctx, &region)
		if err != nil {
			return nil, err
		}
		return s3.NewFromConfig(*cfg, func(o *s3.Options) {
			o.UsePathStyle = conn.UsePathStyle()
		}), nil
	})
}

func newRegionalClients(cacheSize int, newClient newClientFunc) (*RegionalClients, error) {
	if cacheSize <= 0 {
		cacheSize = defaultClientCacheSize
	}
	cache, err := lru.New[string, GetObjectAPI](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client cache: %w", err)
	}
	return &RegionalClients{cache: cache, newClient: newClient}, nil
}

func (r *RegionalClients) Client(ctx context.Context, region string) (GetObjectAPI, error) {
	if client, ok := r.cache.Get(region); ok {
		return client, nil
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	// another worker may have created it while we waited
	if client, ok := r.cache.Get(region); ok {
		return client, nil
	}

	slog.Debug("creating S3 client", "region", region)
	client, err := r.newClient(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client for region %s: %w", region, err)
	}
	r.cache.Add(region, client)
	return client, nil
}
