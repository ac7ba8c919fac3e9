package types

import "time"

type LeaseStatus int

const (
	LeaseActive LeaseStatus = iota
	LeaseDeleted
	LeaseReleased
)

func (s LeaseStatus) String() string {
	switch s {
	case LeaseActive:
		return "active"
	case LeaseDeleted:
		return "deleted"
	case LeaseReleased:
		return "released"
	default:
		return "unknown"
	}
}

// LeaseState tracks the visibility deadline of an in-flight message
type LeaseState struct {
	MessageId     string
	ReceivedAt    time.Time
	Deadline      time.Time
	ExtendedCount int
	Status        LeaseStatus
}

// Remaining returns the time left before the message becomes visible again
func (l *LeaseState) Remaining(now time.Time) time.Duration {
	return l.Deadline.Sub(now)
}
