package constants

const (
	EnvLogLevel = "TAILPIPE_LOG_LEVEL"

	EnvAwsMaxAttempts  = "AWS_MAX_ATTEMPTS"
	EnvAwsEndpointUrl  = "AWS_ENDPOINT_URL"
	EnvDnsMaxParallel  = "TAILPIPE_AWS_DNS_LOOKUP_MAX_PARALLEL"
	EnvDnsRefreshSecs  = "TAILPIPE_AWS_DNS_CACHE_REFRESH_INTERVAL_SECS"
	EnvMaxConnsPerHost = "TAILPIPE_AWS_HTTP_TRANSPORT_MAX_CONNS_PER_HOST"
)
