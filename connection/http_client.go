package connection

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/rs/dnscache"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
	"golang.org/x/sync/semaphore"
)

// sharedHTTPClient is used by the SQS client and every regional S3 client
var sharedHTTPClient = initializeHTTPClient()

// initializeHTTPClient builds an HTTP client with a DNS cache, a bound on parallel DNS lookups
// and a bound on connections per host. Every object fetch and queue call goes through it.
func initializeHTTPClient() aws.HTTPClient {
	// limits the number of parallel DNS lookups
	dnsLookupMaxParallel := readEnvVarToInt(constants.EnvDnsMaxParallel, 25)

	// unused entries are dropped and used entries re-resolved at this interval
	// 0 disables the refresh, -1 disables the cache
	dnsCacheRefreshIntervalSecs := readEnvVarToInt(constants.EnvDnsRefreshSecs, 300)

	// 0 removes the limit (the AWS SDK default)
	httpTransportMaxConnsPerHost := readEnvVarToInt(constants.EnvMaxConnsPerHost, 5000)

	var resolver = &dnscache.Resolver{}
	if dnsCacheRefreshIntervalSecs > 0 {
		go func() {
			t := time.NewTicker(time.Duration(dnsCacheRefreshIntervalSecs) * time.Second)
			defer t.Stop()
			for range t.C {
				resolver.Refresh(true)
			}
		}()
	}

	client := awshttp.NewBuildableClient()

	if httpTransportMaxConnsPerHost > 0 {
		client = client.WithTransportOptions(func(tr *http.Transport) {
			tr.MaxConnsPerHost = httpTransportMaxConnsPerHost
		})
	}

	if dnsCacheRefreshIntervalSecs >= 0 {
		sem := semaphore.NewWeighted(int64(dnsLookupMaxParallel))
		dialer := client.GetDialer()

		client = client.WithTransportOptions(func(tr *http.Transport) {
			tr.DialContext = func(ctx context.Context, network string, addr string) (conn net.Conn, err error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}

				if err := sem.Acquire(ctx, 1); err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				sem.Release(1)
				if err != nil {
					return nil, err
				}

				// try each address in turn until one connects
				for _, ip := range ips {
					conn, err = dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						break
					}
				}

				return
			}
		})
	}

	return client
}
