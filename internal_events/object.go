package internal_events

import (
	"log/slog"
	"time"
)

type ObjectFetched struct {
	Bucket string
	Key    string
	Bytes  int64
}

func (e ObjectFetched) Emit() {
	slog.Debug("Fetched S3 object.", "bucket", e.Bucket, "key", e.Key, "bytes", e.Bytes)
	objectsFetched.WithLabelValues().Inc()
	if e.Bytes > 0 {
		objectBytesFetched.WithLabelValues().Add(float64(e.Bytes))
	}
}

const ErrorTypeLineTooLong = "line_too_long"

type ObjectError struct {
	Bucket string
	Key    string
	// fetch error kind, or "decode" / "emit" / "read"
	ErrorType string
	Err       error
}

func (e ObjectError) Emit() {
	slog.Error("Failed to process S3 object.", "bucket", e.Bucket, "key", e.Key, "error_type", e.ErrorType, "error", e.Err)
	objectErrors.WithLabelValues(e.ErrorType).Inc()
}

// LinesTooLong counts lines dropped from an object for exceeding max_line_bytes
type LinesTooLong struct {
	Bucket string
	Key    string
	Count  int
}

func (e LinesTooLong) Emit() {
	if e.Count == 0 {
		return
	}
	slog.Warn("Skipped lines exceeding max_line_bytes.", "bucket", e.Bucket, "key", e.Key, "count", e.Count)
	objectErrors.WithLabelValues(ErrorTypeLineTooLong).Add(float64(e.Count))
}

type LinesEmitted struct {
	Bucket string
	Key    string
	Count  int
}

func (e LinesEmitted) Emit() {
	if e.Count == 0 {
		return
	}
	linesEmitted.WithLabelValues().Add(float64(e.Count))
}

type MessageProcessed struct {
	MessageId string
	Outcome   string
	Objects   int
	Duration  time.Duration
}

func (e MessageProcessed) Emit() {
	slog.Info("Processed SQS message.", "message_id", e.MessageId, "outcome", e.Outcome, "objects", e.Objects, "duration", e.Duration.String())
	messagesProcessed.WithLabelValues(e.Outcome).Inc()
}
