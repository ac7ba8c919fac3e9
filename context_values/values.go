package context_values

import (
	"context"
	"fmt"

	"github.com/turbot/pipe-fittings/contexthelpers"
)

var (
	contextKeyMessageId    = contexthelpers.ContextKey("message_id")
	contextKeyReceiveCount = contexthelpers.ContextKey("receive_count")
)

// WithMessageId adds the id of the queue message being processed to the context
func WithMessageId(ctx context.Context, messageId string) context.Context {
	return context.WithValue(ctx, contextKeyMessageId, messageId)
}

// WithReceiveCount adds the number of times the message being processed has been received
func WithReceiveCount(ctx context.Context, receiveCount int) context.Context {
	return context.WithValue(ctx, contextKeyReceiveCount, receiveCount)
}

// MessageIdFromContext returns the message id from the context
func MessageIdFromContext(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is nil")
	}
	val, ok := ctx.Value(contextKeyMessageId).(string)
	if !ok {
		return "", fmt.Errorf("no message id in context")
	}
	return val, nil
}

// ReceiveCountFromContext returns the receive count from the context, or 0 if not set
func ReceiveCountFromContext(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	val, _ := ctx.Value(contextKeyReceiveCount).(int)
	return val
}

// LogValues returns the message values in the context as slog key/value pairs
func LogValues(ctx context.Context) []any {
	var res []any
	if id, err := MessageIdFromContext(ctx); err == nil {
		res = append(res, "message_id", id)
	}
	if count := ReceiveCountFromContext(ctx); count > 0 {
		res = append(res, "receive_count", count)
	}
	return res
}
