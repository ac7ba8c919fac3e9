package internal_events

import "log/slog"

type NotificationIgnored struct {
	MessageId string
	Reason    string
	Skipped   int
}

func (e NotificationIgnored) Emit() {
	slog.Debug("Ignored S3 notification.", "message_id", e.MessageId, "reason", e.Reason, "skipped_records", e.Skipped)
	notificationsIgnored.WithLabelValues(e.Reason).Inc()
}

type NotificationUnparseable struct {
	MessageId    string
	ReceiveCount int
	Err          error
}

func (e NotificationUnparseable) Emit() {
	slog.Error("Failed to parse SQS message as an S3 notification.", "message_id", e.MessageId, "receive_count", e.ReceiveCount, "error", e.Err)
	notificationsUnparseable.WithLabelValues().Inc()
}

type PoisonMessageDropped struct {
	MessageId    string
	ReceiveCount int
}

func (e PoisonMessageDropped) Emit() {
	slog.Warn("Dropping unparseable SQS message after exhausting receive budget.", "message_id", e.MessageId, "receive_count", e.ReceiveCount)
	poisonMessagesDropped.WithLabelValues().Inc()
}
