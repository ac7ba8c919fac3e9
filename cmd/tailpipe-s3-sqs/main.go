package main

import (
	"os"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/logging"
)

func main() {
	logging.Initialize(constants.ConnectorName)
	os.Exit(Execute())
}
