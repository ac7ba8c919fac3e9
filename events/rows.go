package events

import "github.com/turbot/tailpipe-source-aws-s3-sqs/types"

// Rows is a batch of decoded lines, all read from the same object and in object order
type Rows struct {
	Base
	// the id of the queue message which referenced the object
	MessageId string
	Object    types.ObjectReference
	Lines     []types.DecodedLine
}

func NewRowsEvent(messageId string, object types.ObjectReference, lines []types.DecodedLine) *Rows {
	return &Rows{
		MessageId: messageId,
		Object:    object,
		Lines:     lines,
	}
}
