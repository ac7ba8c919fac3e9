package pipeline

// Outcome is the final state of a processed message
type Outcome string

const (
	// OutcomeDeleted - every referenced object was emitted (or there were none) and the message was acknowledged
	OutcomeDeleted Outcome = "deleted"
	// OutcomeReleased - processing failed and the message was left for redelivery
	OutcomeReleased Outcome = "released"
	// OutcomeDropped - the message could not be parsed and exhausted its receive budget, so was deleted
	OutcomeDropped Outcome = "dropped"
	// OutcomeAckFailed - processing completed but the delete call failed; the message will be redelivered
	OutcomeAckFailed Outcome = "ack_failed"
)

// release reasons
const (
	reasonUnparseable = "unparseable"
	reasonFailed      = "object_failed"
	reasonFlushFailed = "flush_failed"
	reasonPanic       = "panic"
	reasonShutdown    = "shutdown"
)
