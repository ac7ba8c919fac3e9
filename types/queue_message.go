package types

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// QueueMessage is a single message received from the notification queue
// It is owned by the lease manager until it is deleted or released
type QueueMessage struct {
	Id string
	// opaque token required to delete the message or change its visibility
	ReceiptHandle string
	Body          string
	// number of times the queue has handed out this message (including this one)
	ReceiveCount int
	ReceivedAt   time.Time
}

// QueueMessageFromSQS converts an SQS message into a QueueMessage
func QueueMessageFromSQS(m sqstypes.Message, receivedAt time.Time) *QueueMessage {
	res := &QueueMessage{
		Id:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          aws.ToString(m.Body),
		ReceiveCount:  1,
		ReceivedAt:    receivedAt,
	}
	if v, ok := m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if count, err := strconv.Atoi(v); err == nil {
			res.ReceiveCount = count
		}
	}
	return res
}
