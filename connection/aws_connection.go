package connection

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
)

// AwsConnection holds the settings used to build AWS SDK configuration for the queue and object clients
// Credentials are always resolved by the SDK default chain (optionally using a named profile)
type AwsConnection struct {
	Profile               *string `hcl:"profile"`
	MaxErrorRetryAttempts *int    `hcl:"max_error_retry_attempts"`
	MinErrorRetryDelay    *int    `hcl:"min_error_retry_delay"`
	EndpointUrl           *string `hcl:"endpoint_url"`
	S3ForcePathStyle      *bool   `hcl:"s3_force_path_style"`
}

func (c *AwsConnection) Validate() error {
	if c.MinErrorRetryDelay != nil && *c.MinErrorRetryDelay < 1 {
		return fmt.Errorf("min_error_retry_delay must be greater than or equal to 1")
	}

	if c.MaxErrorRetryAttempts != nil && *c.MaxErrorRetryAttempts < 1 {
		return fmt.Errorf("max_error_retry_attempts must be greater than or equal to 1")
	}

	if c.EndpointUrl != nil && !strings.HasPrefix(*c.EndpointUrl, "http://") && !strings.HasPrefix(*c.EndpointUrl, "https://") {
		return fmt.Errorf("endpoint_url must be an http or https url")
	}

	return nil
}

// UsePathStyle returns whether S3 requests should use path style addressing
func (c *AwsConnection) UsePathStyle() bool {
	return c.S3ForcePathStyle != nil && *c.S3ForcePathStyle
}

// GetClientConfiguration loads the AWS configuration for the given region
// If region is nil, the region is taken from the default chain, falling back to us-east-1
func (c *AwsConnection) GetClientConfiguration(ctx context.Context, region *string) (*aws.Config, error) {
	var configOptions []func(*config.LoadOptions) error

	// profile
	if c.Profile != nil {
		profile := aws.ToString(c.Profile)
		configOptions = append(configOptions, config.WithSharedConfigProfile(profile))
	}

	// shared http client
	configOptions = append(configOptions, config.WithHTTPClient(sharedHTTPClient))

	if region != nil && *region != "" {
		configOptions = append(configOptions, config.WithRegion(*region))
	}

	// load base config
	cfg, err := config.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	if cfg.Region == "" {
		slog.Info("No region set, using default", "region", constants.DefaultRegion)
		cfg.Region = constants.DefaultRegion
	}

	// retry handling
	maxRetries := getConfigOrEnvInt(c.MaxErrorRetryAttempts, constants.EnvAwsMaxAttempts, constants.DefaultMaxErrorRetryAttempts)
	var minRetryDelay = constants.DefaultMinErrorRetryDelayMs * time.Millisecond
	if c.MinErrorRetryDelay != nil {
		minRetryDelay = time.Duration(*c.MinErrorRetryDelay) * time.Millisecond
	}

	retryer := retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = maxRetries
		o.MaxBackoff = maxBackoff
		o.RateLimiter = NoOpRateLimit{} // With no rate limiter
		o.Backoff = NewExponentialJitterBackoff(minRetryDelay, maxRetries)
	})
	cfg.Retryer = func() aws.Retryer {
		// UnknownError is the code returned for a 408 from the aws go sdk
		return retry.AddWithErrorCodes(retryer, "UnknownError")
	}

	// custom endpoint, e.g. localstack
	if endpointUrl := getConfigOrEnv(c.EndpointUrl, constants.EnvAwsEndpointUrl); endpointUrl != "" {
		cfg.BaseEndpoint = aws.String(endpointUrl)
	}

	return &cfg, nil
}

// Helper function to get value from Config or environment variable
func getConfigOrEnv(configValue *string, env string) string {
	if configValue != nil {
		return *configValue
	}

	return os.Getenv(env)
}

func getConfigOrEnvInt(configValue *int, env string, defaultValue int) int {
	if configValue != nil {
		return *configValue
	}

	return readEnvVarToInt(env, defaultValue)
}

// Helper function for integer based environment variables.
func readEnvVarToInt(name string, defaultVal int) int {
	val := defaultVal
	envValue := os.Getenv(name)
	if envValue != "" {
		i, err := strconv.Atoi(envValue)
		if err == nil {
			val = i
		}
	}
	return val
}
