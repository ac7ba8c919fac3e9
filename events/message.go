package events

import "github.com/turbot/tailpipe-source-aws-s3-sqs/types"

// MessageCompleted is raised once every object referenced by a message has been emitted,
// before the message is deleted
type MessageCompleted struct {
	Base
	MessageId string
	Objects   int
	Lines     int
	Timing    types.TimingMap
}

func NewMessageCompletedEvent(messageId string, objects, lines int, timing types.TimingMap) *MessageCompleted {
	return &MessageCompleted{
		MessageId: messageId,
		Objects:   objects,
		Lines:     lines,
		Timing:    timing,
	}
}

// MessageFailed is raised when a message is left on the queue for redelivery
// Lines from the message may already have been emitted, and will be emitted again on redelivery
type MessageFailed struct {
	Base
	MessageId string
	Err       error
}

func NewMessageFailedEvent(messageId string, err error) *MessageFailed {
	return &MessageFailed{
		MessageId: messageId,
		Err:       err,
	}
}
