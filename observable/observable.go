package observable

import (
	"context"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/events"
)

type Observable interface {
	AddObserver(Observer) error
}

// Observer is the interface that all observers must implement
// Notify is called synchronously from the worker processing the message; an error fails the message
type Observer interface {
	Notify(context.Context, events.Event) error
}

// Flusher is implemented by observers which buffer output
// Flush is called before a message is deleted and must only return once everything received so far is durable
type Flusher interface {
	Flush(context.Context) error
}
