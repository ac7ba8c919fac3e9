package constants

const (
	ConnectorName = "aws-s3-sqs"

	DefaultRegion = "us-east-1"

	StrategySQS = "sqs"

	DefaultCompression = "none"
	DefaultBatchSize   = 1000

	DefaultPollSecs = 15
	// the SQS maximum long poll wait time
	MaxPollSecs                  = 20
	DefaultVisibilityTimeoutSecs = 300
	DefaultMaxNumberOfMessages   = 10
	MaxNumberOfMessages          = 10
	DefaultObjectConcurrency     = 4
	DefaultMaxLeaseSecs          = 3600
	// the SQS maximum visibility timeout
	MaxVisibilityTimeoutSecs = 43200

	DefaultFetchMaxElapsedSecs = 60

	DefaultMaxErrorRetryAttempts = 9
	DefaultMinErrorRetryDelayMs  = 25

	DefaultMultilineMode = "continue_through"
)
