package types

import (
	"fmt"
	"io"
	"time"
)

// ObjectReference identifies an object which a notification reports as created
type ObjectReference struct {
	Bucket string
	Key    string
	Region string
	// the event name from the notification record, e.g. ObjectCreated:Put
	EventName string
	EventTime *time.Time
}

func (r ObjectReference) String() string {
	return fmt.Sprintf("s3://%s/%s (%s)", r.Bucket, r.Key, r.Region)
}

// ObjectBody is the retrieved content of an object along with the headers needed to decode it
// The body must be closed once all lines have been emitted
type ObjectBody struct {
	Body            io.ReadCloser
	ContentEncoding *string
	ContentType     *string
	LastModified    time.Time
	Size            int64
}

func (b *ObjectBody) Close() error {
	if b == nil || b.Body == nil {
		return nil
	}
	return b.Body.Close()
}
