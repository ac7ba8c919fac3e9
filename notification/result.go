package notification

import "github.com/turbot/tailpipe-source-aws-s3-sqs/types"

// Kind classifies a parsed notification body
type Kind int

const (
	// KindCreation - the body contains at least one object creation record
	KindCreation Kind = iota
	// KindIgnored - the body is valid but reports no objects to collect (test events, deletions, filtered records)
	KindIgnored
	// KindUnparseable - the body could not be parsed as a notification
	KindUnparseable
)

func (k Kind) String() string {
	switch k {
	case KindCreation:
		return "creation"
	case KindIgnored:
		return "ignored"
	case KindUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Result is the outcome of parsing a queue message body
// References is only populated for KindCreation and Err only for KindUnparseable
type Result struct {
	Kind       Kind
	References []types.ObjectReference
	// number of records which were skipped (non-creation events or outside the configured bucket/prefix)
	SkippedRecords int
	// why the body was ignored
	Reason string
	Err    error
}

func creation(refs []types.ObjectReference, skipped int) Result {
	return Result{Kind: KindCreation, References: refs, SkippedRecords: skipped}
}

func ignored(reason string, skipped int) Result {
	return Result{Kind: KindIgnored, Reason: reason, SkippedRecords: skipped}
}

func unparseable(err error) Result {
	return Result{Kind: KindUnparseable, Err: err}
}
