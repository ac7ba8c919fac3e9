package internal_events

import (
	"errors"
	"log/slog"
	"time"

	"github.com/aws/smithy-go"
)

// errorCode returns the AWS error code of err, or "unknown"
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return "unknown"
}

type SqsMessagesReceived struct {
	Count    int
	QueueUrl string
}

func (e SqsMessagesReceived) Emit() {
	if e.Count == 0 {
		return
	}
	slog.Debug("Received SQS messages.", "count", e.Count, "queue_url", e.QueueUrl)
	sqsMessagesReceived.WithLabelValues().Add(float64(e.Count))
}

type SqsReceiveError struct {
	QueueUrl string
	Err      error
}

func (e SqsReceiveError) Emit() {
	slog.Error("Failed to fetch SQS events.", "queue_url", e.QueueUrl, "error", e.Err, "error_code", errorCode(e.Err))
	sqsReceiveErrors.WithLabelValues(errorCode(e.Err)).Inc()
}

type SqsMessageDeleted struct {
	MessageId string
}

func (e SqsMessageDeleted) Emit() {
	slog.Debug("Deleted SQS message.", "message_id", e.MessageId)
	sqsMessagesDeleted.WithLabelValues().Inc()
}

type SqsMessageDeleteError struct {
	MessageId string
	Err       error
}

func (e SqsMessageDeleteError) Emit() {
	slog.Error("Failed to delete SQS message.", "message_id", e.MessageId, "error", e.Err, "error_code", errorCode(e.Err))
	sqsDeleteErrors.WithLabelValues(errorCode(e.Err)).Inc()
}

type SqsMessageReleased struct {
	MessageId string
	Reason    string
	// whether the visibility timeout was reset so the message is redelivered immediately
	Immediate bool
}

func (e SqsMessageReleased) Emit() {
	slog.Info("Released SQS message for redelivery.", "message_id", e.MessageId, "reason", e.Reason, "immediate", e.Immediate)
	sqsMessagesReleased.WithLabelValues(e.Reason).Inc()
}

type SqsLeaseExtended struct {
	MessageId string
	Timeout   time.Duration
}

func (e SqsLeaseExtended) Emit() {
	slog.Debug("Extended SQS message visibility.", "message_id", e.MessageId, "timeout", e.Timeout.String())
	sqsLeasesExtended.WithLabelValues().Inc()
}

type SqsLeaseExtendError struct {
	MessageId string
	Err       error
}

func (e SqsLeaseExtendError) Emit() {
	slog.Warn("Failed to extend SQS message visibility.", "message_id", e.MessageId, "error", e.Err, "error_code", errorCode(e.Err))
	sqsLeaseExtendErrors.WithLabelValues(errorCode(e.Err)).Inc()
}

type SqsMessageSkipped struct {
	MessageId string
	Reason    string
}

func (e SqsMessageSkipped) Emit() {
	slog.Warn("Skipping SQS message.", "message_id", e.MessageId, "reason", e.Reason)
	sqsMessagesSkipped.WithLabelValues(e.Reason).Inc()
}
