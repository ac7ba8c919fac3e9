package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/internal_events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
	"golang.org/x/exp/maps"
)

// reason recorded for received messages which cannot be deleted or extended
const skipReasonNoReceiptHandle = "missing_receipt_handle"

// Manager receives messages from the queue and owns their visibility leases until they are
// deleted or released. A lease ends exactly once; any operation on an ended lease returns ErrLeaseNotActive.
type Manager struct {
	client SQSClient
	opts   Options

	// active leases keyed by receipt handle
	leases map[string]*types.LeaseState
	mut    sync.Mutex

	now func() time.Time
}

func NewManager(client SQSClient, opts Options) *Manager {
	return &Manager{
		client: client,
		opts:   opts,
		leases: make(map[string]*types.LeaseState),
		now:    time.Now,
	}
}

func (m *Manager) QueueUrl() string {
	return m.opts.QueueUrl
}

// Poll long polls the queue and returns the received messages, each with an active lease
func (m *Manager) Poll(ctx context.Context) ([]*types.QueueMessage, error) {
	// the visibility timeout may start as soon as the request is sent, so the lease is stamped before it
	receivedAt := m.now()
	out, err := m.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(m.opts.QueueUrl),
		MaxNumberOfMessages: m.opts.MaxNumberOfMessages,
		WaitTimeSeconds:     int32(m.opts.WaitTime / time.Second),
		VisibilityTimeout:   int32(m.opts.VisibilityTimeout / time.Second),
		AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)},
	})
	if err != nil {
		return nil, err
	}

	messages := make([]*types.QueueMessage, 0, len(out.Messages))

	m.mut.Lock()
	defer m.mut.Unlock()
	for _, sqsMessage := range out.Messages {
		msg := types.QueueMessageFromSQS(sqsMessage, receivedAt)
		if msg.ReceiptHandle == "" {
			internal_events.SqsMessageSkipped{MessageId: msg.Id, Reason: skipReasonNoReceiptHandle}.Emit()
			continue
		}
		m.leases[msg.ReceiptHandle] = &types.LeaseState{
			MessageId:  msg.Id,
			ReceivedAt: receivedAt,
			Deadline:   receivedAt.Add(m.opts.VisibilityTimeout),
			Status:     types.LeaseActive,
		}
		messages = append(messages, msg)
	}
	internal_events.SqsMessagesReceived{Count: len(messages), QueueUrl: m.opts.QueueUrl}.Emit()
	return messages, nil
}

// Extend requests the message stay invisible for timeout from now
// The timeout is clamped so the deadline never passes ReceivedAt + MaxLease
func (m *Manager) Extend(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	m.mut.Lock()
	lease, ok := m.leases[receiptHandle]
	if !ok {
		m.mut.Unlock()
		return ErrLeaseNotActive
	}
	now := m.now()
	allowed := lease.ReceivedAt.Add(m.opts.MaxLease).Sub(now)
	messageId := lease.MessageId
	m.mut.Unlock()

	if timeout > allowed {
		timeout = allowed
	}
	seconds := int32(timeout / time.Second)
	if seconds < 1 {
		return ErrLeaseCeiling
	}

	_, err := m.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(m.opts.QueueUrl),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: seconds,
	})
	if err != nil {
		return fmt.Errorf("failed to extend visibility of message %s: %w", messageId, err)
	}

	m.mut.Lock()
	defer m.mut.Unlock()
	// the lease may have ended while the request was in flight
	lease, ok = m.leases[receiptHandle]
	if !ok {
		return ErrLeaseNotActive
	}
	lease.Deadline = now.Add(time.Duration(seconds) * time.Second)
	lease.ExtendedCount++
	internal_events.SqsLeaseExtended{MessageId: messageId, Timeout: time.Duration(seconds) * time.Second}.Emit()
	return nil
}

// Delete ends the lease and deletes the message from the queue
// If deletion is disabled, the lease is only ended locally and the message will be redelivered
func (m *Manager) Delete(ctx context.Context, receiptHandle string) error {
	lease, err := m.end(receiptHandle, types.LeaseDeleted)
	if err != nil {
		return err
	}

	if !m.opts.DeleteMessage {
		slog.Debug("delete_message is disabled, leaving message on queue", "message_id", lease.MessageId)
		return nil
	}

	_, err = m.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(m.opts.QueueUrl),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		// the lease has ended either way - the message will become visible again when its timeout expires
		lease.Status = types.LeaseReleased
		internal_events.SqsMessageDeleteError{MessageId: lease.MessageId, Err: err}.Emit()
		return fmt.Errorf("failed to delete message %s: %w", lease.MessageId, err)
	}
	internal_events.SqsMessageDeleted{MessageId: lease.MessageId}.Emit()
	return nil
}

// Release ends the lease without deleting the message, leaving it for redelivery
func (m *Manager) Release(ctx context.Context, receiptHandle string, reason string) error {
	lease, err := m.end(receiptHandle, types.LeaseReleased)
	if err != nil {
		return err
	}

	internal_events.SqsMessageReleased{MessageId: lease.MessageId, Reason: reason, Immediate: m.opts.ReleaseOnFailure}.Emit()
	if !m.opts.ReleaseOnFailure {
		return nil
	}

	_, err = m.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(m.opts.QueueUrl),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("failed to reset visibility of message %s: %w", lease.MessageId, err)
	}
	return nil
}

// Active returns a snapshot of the active leases keyed by receipt handle
func (m *Manager) Active() map[string]types.LeaseState {
	m.mut.Lock()
	defer m.mut.Unlock()
	res := make(map[string]types.LeaseState, len(m.leases))
	for handle, lease := range m.leases {
		res[handle] = *lease
	}
	return res
}

// end removes the lease from the table, returning it with the given final status
func (m *Manager) end(receiptHandle string, status types.LeaseStatus) (*types.LeaseState, error) {
	m.mut.Lock()
	defer m.mut.Unlock()
	lease, ok := m.leases[receiptHandle]
	if !ok {
		return nil, ErrLeaseNotActive
	}
	delete(m.leases, receiptHandle)
	lease.Status = status
	return lease, nil
}

// RunKeepalive periodically extends leases which are close to expiry until ctx is cancelled
func (m *Manager) RunKeepalive(ctx context.Context) {
	interval := m.opts.keepaliveInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Debug("starting lease keepalive", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.extendExpiring(ctx)
		}
	}
}

// extendExpiring extends every active lease with less than half of the visibility timeout remaining
func (m *Manager) extendExpiring(ctx context.Context) {
	m.mut.Lock()
	now := m.now()
	// receipt handle -> message id
	expiring := make(map[string]string)
	for _, handle := range maps.Keys(m.leases) {
		lease := m.leases[handle]
		if lease.Remaining(now) < m.opts.extendThreshold() {
			expiring[handle] = lease.MessageId
		}
	}
	m.mut.Unlock()

	for handle, messageId := range expiring {
		err := m.Extend(ctx, handle, m.opts.VisibilityTimeout)
		switch {
		case err == nil, errors.Is(err, ErrLeaseNotActive):
		case errors.Is(err, ErrLeaseCeiling):
			slog.Warn("Lease reached max_lease_secs and will not be extended.", "message_id", messageId, "max_lease", m.opts.MaxLease.String())
		case ctx.Err() != nil:
			return
		default:
			internal_events.SqsLeaseExtendError{MessageId: messageId, Err: err}.Emit()
		}
	}
}
