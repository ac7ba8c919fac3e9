package types

import "time"

// DecodedLine is the unit emitted downstream - one log line (or aggregated multiline event)
// along with the metadata of the object it was read from
type DecodedLine struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Bucket    string    `json:"bucket"`
	Object    string    `json:"object"`
	Region    string    `json:"region"`
}

// NewDecodedLine builds a DecodedLine for the given object
// the timestamp is the object last modified time, falling back to the notification event time
// and finally to the current time
func NewDecodedLine(message string, ref ObjectReference, lastModified time.Time) DecodedLine {
	ts := lastModified
	if ts.IsZero() && ref.EventTime != nil {
		ts = *ref.EventTime
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return DecodedLine{
		Message:   message,
		Timestamp: ts.UTC(),
		Bucket:    ref.Bucket,
		Object:    ref.Key,
		Region:    ref.Region,
	}
}
