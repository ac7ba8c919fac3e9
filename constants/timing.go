package constants

// phases of message processing recorded in the timing map
const (
	TimingParse   = "parse"
	TimingObjects = "objects"
	TimingFlush   = "flush"
	TimingAck     = "ack"
)
