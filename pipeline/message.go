package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/turbot/go-kit/helpers"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/context_values"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/internal_events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/notification"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
	"golang.org/x/sync/errgroup"
)

// ProcessMessage takes a received message through to deletion or release
func (c *Coordinator) ProcessMessage(ctx context.Context, msg *types.QueueMessage) (outcome Outcome) {
	ctx = context_values.WithReceiveCount(context_values.WithMessageId(ctx, msg.Id), msg.ReceiveCount)
	start := time.Now()
	timing := types.TimingMap{}
	objects := 0

	defer func() {
		if r := recover(); r != nil {
			err := helpers.ToError(r)
			slog.Error("Panic processing message", append(context_values.LogValues(ctx), "error", err)...)
			outcome = c.fail(ctx, msg, err, reasonPanic)
		}
		internal_events.MessageProcessed{MessageId: msg.Id, Outcome: string(outcome), Objects: objects, Duration: time.Since(start)}.Emit()
		slog.Debug("message timing", append(context_values.LogValues(ctx), timing.LogValues()...)...)
	}()

	parseStart := time.Now()
	result := c.notifications.Parse(msg.Body)
	timing.Record(constants.TimingParse, parseStart)

	switch result.Kind {
	case notification.KindIgnored:
		internal_events.NotificationIgnored{MessageId: msg.Id, Reason: result.Reason, Skipped: result.SkippedRecords}.Emit()
		return c.complete(ctx, msg, 0, 0, timing)

	case notification.KindUnparseable:
		internal_events.NotificationUnparseable{MessageId: msg.Id, ReceiveCount: msg.ReceiveCount, Err: result.Err}.Emit()
		if c.poisonMessageMaxReceives > 0 && msg.ReceiveCount >= c.poisonMessageMaxReceives {
			internal_events.PoisonMessageDropped{MessageId: msg.Id, ReceiveCount: msg.ReceiveCount}.Emit()
			if err := c.delete(ctx, msg); err != nil {
				return OutcomeAckFailed
			}
			return OutcomeDropped
		}
		return c.fail(ctx, msg, result.Err, reasonUnparseable)

	case notification.KindCreation:
		objects = len(result.References)
		objectsStart := time.Now()
		lines, err := c.processObjects(ctx, msg, result.References)
		timing.Record(constants.TimingObjects, objectsStart)
		if err != nil {
			return c.fail(ctx, msg, err, reasonFailed)
		}
		return c.complete(ctx, msg, objects, lines, timing)

	default:
		return c.fail(ctx, msg, fmt.Errorf("unknown notification kind %s", result.Kind), reasonUnparseable)
	}
}

// processObjects processes every reference, returning the total number of lines emitted
// The first failure cancels the remaining references
func (c *Coordinator) processObjects(ctx context.Context, msg *types.QueueMessage, refs []types.ObjectReference) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.objectConcurrency)

	var lines atomic.Int64
	for _, ref := range refs {
		g.Go(func() (err error) {
			// objects are processed on their own goroutines so panics must be recovered here
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic processing %s: %w", ref, helpers.ToError(r))
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := c.processObject(gctx, msg, ref)
			lines.Add(int64(n))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return int(lines.Load()), err
	}
	// a cancellation which arrived after the last object finished still counts as complete
	return int(lines.Load()), nil
}

// complete flushes the observers and deletes the message
func (c *Coordinator) complete(ctx context.Context, msg *types.QueueMessage, objects, lines int, timing types.TimingMap) Outcome {
	flushStart := time.Now()
	if err := c.FlushObservers(ctx); err != nil {
		return c.fail(ctx, msg, fmt.Errorf("failed to flush observers: %w", err), reasonFlushFailed)
	}
	timing.Record(constants.TimingFlush, flushStart)

	if err := c.NotifyObservers(ctx, events.NewMessageCompletedEvent(msg.Id, objects, lines, timing)); err != nil {
		slog.Warn("Error notifying observers of completed message", append(context_values.LogValues(ctx), "error", err)...)
	}

	ackStart := time.Now()
	defer timing.Record(constants.TimingAck, ackStart)
	if err := c.delete(ctx, msg); err != nil {
		return OutcomeAckFailed
	}
	return OutcomeDeleted
}

// fail notifies the observers and releases the message for redelivery
func (c *Coordinator) fail(ctx context.Context, msg *types.QueueMessage, err error, reason string) Outcome {
	if !errors.Is(err, context.Canceled) {
		slog.Error("Failed to process message", append(context_values.LogValues(ctx), "reason", reason, "error", err)...)
	}
	if notifyErr := c.NotifyObservers(ctx, events.NewMessageFailedEvent(msg.Id, err)); notifyErr != nil {
		slog.Warn("Error notifying observers of failed message", append(context_values.LogValues(ctx), "error", notifyErr)...)
	}
	c.release(ctx, msg, reason)
	return OutcomeReleased
}

// delete and release outlive cancellation of ctx, so completed work is still acknowledged on shutdown
func (c *Coordinator) delete(ctx context.Context, msg *types.QueueMessage) error {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := c.queue.Delete(ackCtx, msg.ReceiptHandle); err != nil {
		slog.Error("Failed to delete message", append(context_values.LogValues(ctx), "error", err)...)
		return err
	}
	return nil
}

func (c *Coordinator) release(ctx context.Context, msg *types.QueueMessage, reason string) {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := c.queue.Release(ackCtx, msg.ReceiptHandle, reason); err != nil {
		slog.Warn("Failed to release message", "message_id", msg.Id, "error", err)
	}
}
