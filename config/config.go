package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/mitchellh/go-homedir"
	typehelpers "github.com/turbot/go-kit/types"
	"github.com/turbot/pipe-fittings/utils"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/connection"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/decoder"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/lease"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/line_splitter"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/notification"
)

// Config is the connector configuration
type Config struct {
	Strategy     *string `hcl:"strategy"`
	Compression  *string `hcl:"compression"`
	Region       *string `hcl:"region"`
	BatchSize    *int    `hcl:"batch_size"`
	MaxLineBytes *int    `hcl:"max_line_bytes"`

	Sqs        *SqsConfig                `hcl:"sqs,block"`
	Multiline  *MultilineConfig          `hcl:"multiline,block"`
	Connection *connection.AwsConnection `hcl:"connection,block"`
	S3         *S3Config                 `hcl:"s3,block"`
}

type SqsConfig struct {
	QueueName                *string `hcl:"queue_name"`
	QueueOwner               *string `hcl:"queue_owner"`
	QueueUrl                 *string `hcl:"queue_url"`
	PollSecs                 *int    `hcl:"poll_secs"`
	VisibilityTimeoutSecs    *int    `hcl:"visibility_timeout_secs"`
	DeleteMessage            *bool   `hcl:"delete_message"`
	MaxNumberOfMessages      *int    `hcl:"max_number_of_messages"`
	ClientConcurrency        *int    `hcl:"client_concurrency"`
	ObjectConcurrency        *int    `hcl:"object_concurrency"`
	MaxLeaseSecs             *int    `hcl:"max_lease_secs"`
	ReleaseOnFailure         *bool   `hcl:"release_on_failure"`
	PoisonMessageMaxReceives *int    `hcl:"poison_message_max_receives"`
	Bucket                   *string `hcl:"bucket"`
	Prefix                   *string `hcl:"prefix"`
}

type MultilineConfig struct {
	StartPattern     string  `hcl:"start_pattern"`
	ConditionPattern string  `hcl:"condition_pattern"`
	Mode             *string `hcl:"mode"`
	TimeoutMs        *int    `hcl:"timeout_ms"`
	JoinWith         *string `hcl:"join_with"`
}

type S3Config struct {
	RequestsPerSecond   *float64 `hcl:"requests_per_second"`
	FetchMaxElapsedSecs *int     `hcl:"fetch_max_elapsed_secs"`
}

// Load reads, defaults and validates the config file at path (which may start with ~)
func Load(path string) (*Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path '%s': %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, expanded)
}

// Parse decodes, defaults and validates HCL config
func Parse(data []byte, filename string) (*Config, error) {
	c := &Config{}
	if err := ParseConfig(data, filename, hcl.InitialPos, c); err != nil {
		return nil, err
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) SetDefaults() {
	if c.Strategy == nil {
		c.Strategy = utils.ToStringPointer(constants.StrategySQS)
	}
	if c.Compression == nil {
		c.Compression = utils.ToStringPointer(constants.DefaultCompression)
	}
	setDefault(&c.BatchSize, constants.DefaultBatchSize)
	setDefault(&c.MaxLineBytes, line_splitter.DefaultMaxLineBytes)

	if c.Sqs == nil {
		c.Sqs = &SqsConfig{}
	}
	s := c.Sqs
	setDefault(&s.PollSecs, constants.DefaultPollSecs)
	setDefault(&s.VisibilityTimeoutSecs, constants.DefaultVisibilityTimeoutSecs)
	setDefault(&s.DeleteMessage, true)
	setDefault(&s.MaxNumberOfMessages, constants.DefaultMaxNumberOfMessages)
	setDefault(&s.ClientConcurrency, runtime.NumCPU())
	setDefault(&s.ObjectConcurrency, constants.DefaultObjectConcurrency)
	setDefault(&s.MaxLeaseSecs, constants.DefaultMaxLeaseSecs)
	setDefault(&s.ReleaseOnFailure, false)
	setDefault(&s.PoisonMessageMaxReceives, 0)

	if c.Multiline != nil {
		if c.Multiline.Mode == nil {
			c.Multiline.Mode = utils.ToStringPointer(constants.DefaultMultilineMode)
		}
		setDefault(&c.Multiline.TimeoutMs, 0)
	}

	if c.Connection == nil {
		c.Connection = &connection.AwsConnection{}
	}

	if c.S3 == nil {
		c.S3 = &S3Config{}
	}
	setDefault(&c.S3.RequestsPerSecond, 0)
	setDefault(&c.S3.FetchMaxElapsedSecs, constants.DefaultFetchMaxElapsedSecs)
}

func setDefault[T any](field **T, value T) {
	if *field == nil {
		*field = &value
	}
}

// Validate returns an error describing every invalid setting
// SetDefaults must have been called
func (c *Config) Validate() error {
	var validationErrors []string
	add := func(format string, args ...any) {
		validationErrors = append(validationErrors, fmt.Sprintf(format, args...))
	}

	if *c.Strategy != constants.StrategySQS {
		add("strategy must be '%s', got '%s'", constants.StrategySQS, *c.Strategy)
	}
	if _, err := decoder.ParseCompression(*c.Compression); err != nil {
		add("%s", err.Error())
	}
	if *c.BatchSize < 1 {
		add("batch_size must be at least 1")
	}
	if *c.MaxLineBytes < 1 {
		add("max_line_bytes must be at least 1")
	}

	s := c.Sqs
	if typehelpers.SafeString(s.QueueName) == "" && typehelpers.SafeString(s.QueueUrl) == "" {
		add("sqs.queue_name is required")
	}
	if *s.PollSecs < 0 || *s.PollSecs > constants.MaxPollSecs {
		add("sqs.poll_secs must be between 0 and %d", constants.MaxPollSecs)
	}
	if *s.VisibilityTimeoutSecs < 1 || *s.VisibilityTimeoutSecs > constants.MaxVisibilityTimeoutSecs {
		add("sqs.visibility_timeout_secs must be between 1 and %d", constants.MaxVisibilityTimeoutSecs)
	}
	if *s.MaxNumberOfMessages < 1 || *s.MaxNumberOfMessages > constants.MaxNumberOfMessages {
		add("sqs.max_number_of_messages must be between 1 and %d", constants.MaxNumberOfMessages)
	}
	if *s.ClientConcurrency < 1 {
		add("sqs.client_concurrency must be at least 1")
	}
	if *s.ObjectConcurrency < 1 {
		add("sqs.object_concurrency must be at least 1")
	}
	if *s.MaxLeaseSecs < *s.VisibilityTimeoutSecs {
		add("sqs.max_lease_secs must not be less than sqs.visibility_timeout_secs")
	}
	if *s.PoisonMessageMaxReceives < 0 {
		add("sqs.poison_message_max_receives must not be negative")
	}

	if c.Multiline != nil {
		if _, err := c.MultilineRule(); err != nil {
			add("%s", err.Error())
		}
	}

	if err := c.Connection.Validate(); err != nil {
		add("connection: %s", err.Error())
	}

	if *c.S3.RequestsPerSecond < 0 {
		add("s3.requests_per_second must not be negative")
	}
	if *c.S3.FetchMaxElapsedSecs < 1 {
		add("s3.fetch_max_elapsed_secs must be at least 1")
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("invalid config:\n  %s", strings.Join(validationErrors, "\n  "))
	}
	return nil
}

// CompressionOption returns the configured compression
func (c *Config) CompressionOption() decoder.Compression {
	compression, _ := decoder.ParseCompression(*c.Compression)
	return compression
}

// MultilineRule compiles the multiline block, returning nil if there is none
func (c *Config) MultilineRule() (*line_splitter.Rule, error) {
	m := c.Multiline
	if m == nil {
		return nil, nil
	}
	return line_splitter.NewRule(m.StartPattern, m.ConditionPattern, typehelpers.SafeString(m.Mode), time.Duration(*m.TimeoutMs)*time.Millisecond, m.JoinWith)
}

func (c *Config) LeaseOptions(queueUrl string) lease.Options {
	s := c.Sqs
	return lease.Options{
		QueueUrl:            queueUrl,
		WaitTime:            time.Duration(*s.PollSecs) * time.Second,
		VisibilityTimeout:   time.Duration(*s.VisibilityTimeoutSecs) * time.Second,
		MaxNumberOfMessages: int32(*s.MaxNumberOfMessages),
		MaxLease:            time.Duration(*s.MaxLeaseSecs) * time.Second,
		DeleteMessage:       *s.DeleteMessage,
		ReleaseOnFailure:    *s.ReleaseOnFailure,
	}
}

func (c *Config) NotificationDecoder() *notification.Decoder {
	var opts []notification.DecoderOption
	if bucket := typehelpers.SafeString(c.Sqs.Bucket); bucket != "" {
		opts = append(opts, notification.WithBucket(bucket))
	}
	if prefix := typehelpers.SafeString(c.Sqs.Prefix); prefix != "" {
		opts = append(opts, notification.WithPrefix(prefix))
	}
	return notification.NewDecoder(opts...)
}

func (c *Config) FetchMaxElapsed() time.Duration {
	return time.Duration(*c.S3.FetchMaxElapsedSecs) * time.Second
}

func (c *Config) PollRetryDelay() time.Duration {
	if *c.Sqs.PollSecs == 0 {
		return time.Second
	}
	return time.Duration(*c.Sqs.PollSecs) * time.Second
}
