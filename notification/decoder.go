package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
)

const (
	s3EventSource         = "aws:s3"
	objectCreatedPrefix   = "ObjectCreated:"
	supportedEventVersion = "2"
	snsNotificationType   = "Notification"
	s3TestEventName       = "s3:TestEvent"
)

// ErrUnsupportedEventVersion is returned for records whose major event version is not supported
var ErrUnsupportedEventVersion = errors.New("unsupported S3 event version")

// s3TestEvent is the body S3 sends when a notification configuration is first created
type s3TestEvent struct {
	Event  string `json:"Event"`
	Bucket string `json:"Bucket"`
}

// Decoder parses queue message bodies containing S3 event notifications
// It has no mutable state so is safe for concurrent use
type Decoder struct {
	bucket string
	prefix string
}

type DecoderOption func(*Decoder)

// WithBucket restricts references to objects in the given bucket
func WithBucket(bucket string) DecoderOption {
	return func(d *Decoder) {
		d.bucket = bucket
	}
}

// WithPrefix restricts references to keys with the given prefix
func WithPrefix(prefix string) DecoderOption {
	return func(d *Decoder) {
		d.prefix = prefix
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Parse parses a message body, which may be an S3 event notification or an SNS notification
// wrapping one, and returns the object creation references it contains, in record order
func (d *Decoder) Parse(body string) Result {
	var s3Event events.S3Event
	if err := json.Unmarshal([]byte(body), &s3Event); err != nil {
		return unparseable(fmt.Errorf("failed to parse notification: %w", err))
	}

	if len(s3Event.Records) == 0 {
		// not a direct S3 event - try to extract one from an SNS notification envelope
		var envelope events.SNSEntity
		if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Type == snsNotificationType {
			return d.parseSNSMessage(envelope.Message)
		}
		return d.ignoreEmpty(body)
	}

	return d.fromRecords(s3Event.Records)
}

func (d *Decoder) parseSNSMessage(message string) Result {
	var s3Event events.S3Event
	if err := json.Unmarshal([]byte(message), &s3Event); err != nil {
		return unparseable(fmt.Errorf("failed to parse S3 event from SNS message: %w", err))
	}
	if len(s3Event.Records) == 0 {
		return d.ignoreEmpty(message)
	}
	return d.fromRecords(s3Event.Records)
}

// ignoreEmpty classifies a valid body with no records
func (d *Decoder) ignoreEmpty(body string) Result {
	var testEvent s3TestEvent
	if err := json.Unmarshal([]byte(body), &testEvent); err == nil && testEvent.Event == s3TestEventName {
		return ignored("s3 test event", 0)
	}
	return ignored("no records", 0)
}

func (d *Decoder) fromRecords(records []events.S3EventRecord) Result {
	var refs []types.ObjectReference
	skipped := 0
	for _, record := range records {
		if major, _, _ := strings.Cut(record.EventVersion, "."); major != supportedEventVersion {
			return unparseable(fmt.Errorf("%w: '%s'", ErrUnsupportedEventVersion, record.EventVersion))
		}
		if record.EventSource != s3EventSource || !strings.HasPrefix(record.EventName, objectCreatedPrefix) {
			skipped++
			continue
		}

		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return unparseable(fmt.Errorf("invalid object key '%s': %w", record.S3.Object.Key, err))
		}
		bucket := record.S3.Bucket.Name
		if !d.inScope(bucket, key) {
			skipped++
			continue
		}

		ref := types.ObjectReference{
			Bucket:    bucket,
			Key:       key,
			Region:    record.AWSRegion,
			EventName: record.EventName,
		}
		if !record.EventTime.IsZero() {
			eventTime := record.EventTime
			ref.EventTime = &eventTime
		}
		refs = append(refs, ref)
	}

	if len(refs) == 0 {
		return ignored("no object creation records", skipped)
	}
	return creation(refs, skipped)
}

func (d *Decoder) inScope(bucket, key string) bool {
	if d.bucket != "" && bucket != d.bucket {
		return false
	}
	if d.prefix != "" && !strings.HasPrefix(key, d.prefix) {
		return false
	}
	return true
}
