package lease

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// ResolveQueueUrl looks up the url of the named queue
// owner is the account id of the queue owner and may be empty for queues in the caller's account
func ResolveQueueUrl(ctx context.Context, client SQSClient, name, owner string) (string, error) {
	input := &sqs.GetQueueUrlInput{QueueName: aws.String(name)}
	if owner != "" {
		input.QueueOwnerAWSAccountId = aws.String(owner)
	}
	out, err := client.GetQueueUrl(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to get url for queue '%s': %w", name, err)
	}
	if aws.ToString(out.QueueUrl) == "" {
		return "", fmt.Errorf("no url returned for queue '%s'", name)
	}
	return aws.ToString(out.QueueUrl), nil
}
