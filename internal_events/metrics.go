package internal_events

import (
	"github.com/iancoleman/strcase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tailpipe_s3_sqs"

// Registry holds every counter incremented by an internal event
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// counter names are derived from the CamelCase event name, e.g. SqsMessagesReceived -> sqs_messages_received_total
func newCounter(name, help string, labels ...string) *prometheus.CounterVec {
	return factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      strcase.ToSnake(name) + "_total",
		Help:      help,
	}, labels)
}

var (
	sqsMessagesReceived      = newCounter("SqsMessagesReceived", "Messages received from the queue.")
	sqsReceiveErrors         = newCounter("SqsReceiveErrors", "Failed queue receive calls.", "error_code")
	sqsMessagesDeleted       = newCounter("SqsMessagesDeleted", "Messages deleted from the queue after processing.")
	sqsDeleteErrors          = newCounter("SqsDeleteErrors", "Failed queue delete calls.", "error_code")
	sqsMessagesReleased      = newCounter("SqsMessagesReleased", "Messages left on the queue for redelivery.", "reason")
	sqsMessagesSkipped       = newCounter("SqsMessagesSkipped", "Received messages which could not be leased.", "reason")
	sqsLeasesExtended        = newCounter("SqsLeasesExtended", "Visibility timeout extensions.")
	sqsLeaseExtendErrors     = newCounter("SqsLeaseExtendErrors", "Failed visibility timeout extensions.", "error_code")
	notificationsIgnored     = newCounter("NotificationsIgnored", "Notifications containing no object creation records.", "reason")
	notificationsUnparseable = newCounter("NotificationsUnparseable", "Notifications which could not be parsed.")
	poisonMessagesDropped    = newCounter("PoisonMessagesDropped", "Unparseable messages deleted after exhausting their receive budget.")
	objectsFetched           = newCounter("ObjectsFetched", "Objects retrieved from S3.")
	objectBytesFetched       = newCounter("ObjectBytesFetched", "Compressed bytes retrieved from S3.")
	objectErrors             = newCounter("ObjectErrors", "Objects which could not be fetched or decoded.", "error_type")
	linesEmitted             = newCounter("LinesEmitted", "Lines emitted downstream.")
	messagesProcessed        = newCounter("MessagesProcessed", "Messages fully processed.", "outcome")
)
