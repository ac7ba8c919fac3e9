package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/decoder"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/lease"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/line_splitter"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/object_fetcher"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
)

var lastModified = time.Date(2024, 5, 1, 9, 59, 0, 0, time.UTC)

type harness struct {
	sqs         *fakeSQS
	s3          *fakeS3
	sink        *collectingSink
	leases      *lease.Manager
	coordinator *Coordinator
}

func newHarness(t *testing.T, q *fakeSQS, leaseOpts func(*lease.Options), opts ...CoordinatorOption) *harness {
	t.Helper()
	s3 := newFakeS3()
	lo := lease.DefaultOptions(testQueueUrl)
	lo.WaitTime = 0
	if leaseOpts != nil {
		leaseOpts(&lo)
	}
	leases := lease.NewManager(q, lo)
	fetcher := object_fetcher.NewFetcher(s3, object_fetcher.WithBackoff(time.Millisecond, 2*time.Millisecond, 10*time.Millisecond))

	opts = append([]CoordinatorOption{WithCompression(decoder.CompressionAuto), WithPollRetryDelay(time.Millisecond)}, opts...)
	c := NewCoordinator(leases, fetcher, opts...)
	sink := &collectingSink{}
	require.NoError(t, c.AddObserver(sink))
	return &harness{sqs: q, s3: s3, sink: sink, leases: leases, coordinator: c}
}

// receive polls a single message
func (h *harness) receive(t *testing.T) *types.QueueMessage {
	t.Helper()
	msgs, err := h.leases.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return msgs[0]
}

func TestCoordinator_ProcessMessage_EndToEnd(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.gz")), nil)
	h.s3.put("my-bucket", "logs/a.gz", fakeObject{data: gzipBytes("line one\nline two\n"), lastModified: lastModified})

	msg := h.receive(t)
	outcome := h.coordinator.ProcessMessage(context.Background(), msg)

	assert.Equal(t, OutcomeDeleted, outcome)
	assert.Equal(t, []types.DecodedLine{
		{Message: "line one", Timestamp: lastModified, Bucket: "my-bucket", Object: "logs/a.gz", Region: "us-east-1"},
		{Message: "line two", Timestamp: lastModified, Bucket: "my-bucket", Object: "logs/a.gz", Region: "us-east-1"},
	}, h.sink.lines)
	assert.Equal(t, []string{"msg-1"}, h.sqs.deleted())
	assert.Equal(t, []string{"msg-1"}, h.sink.completed)
	// sinks are flushed before the message is deleted
	assert.Equal(t, 1, h.sink.flushes)
	assert.Empty(t, h.leases.Active())
	assert.Equal(t, 0, h.sqs.pending())
}

func TestCoordinator_ProcessMessage_DecodeFailure(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log", "logs/b.zst", "logs/c.gz")), nil, WithObjectConcurrency(1))
	h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("a1\na2\n")})
	h.s3.put("my-bucket", "logs/b.zst", fakeObject{data: []byte("this is plain text, not zstd\n")})
	h.s3.put("my-bucket", "logs/c.gz", fakeObject{data: gzipBytes("c1"), contentEncoding: aws.String("gzip")})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))

	// b.zst is plain text, so fails zstd decoding
	assert.Equal(t, OutcomeReleased, outcome)
	assert.Empty(t, h.sqs.deleted())
}

func TestCoordinator_ProcessMessage_ObjectOrder(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log", "logs/b.log", "logs/c.gz")), nil, WithObjectConcurrency(1))
	h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("a1\na2\n")})
	h.s3.put("my-bucket", "logs/b.log", fakeObject{data: []byte("b1\n")})
	h.s3.put("my-bucket", "logs/c.gz", fakeObject{data: gzipBytes("c1"), contentEncoding: aws.String("gzip")})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))

	assert.Equal(t, OutcomeDeleted, outcome)
	assert.Equal(t, []string{"a1", "a2", "b1", "c1"}, h.sink.messages())
	assert.Equal(t, []string{"msg-1"}, h.sqs.deleted())
}

func TestCoordinator_ProcessMessage_PartialFailureNotDeleted(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log", "logs/missing.log", "logs/c.log")), nil, WithObjectConcurrency(1))
	h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("a1\n")})
	h.s3.put("my-bucket", "logs/c.log", fakeObject{data: []byte("c1\n")})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))

	assert.Equal(t, OutcomeReleased, outcome)
	assert.Empty(t, h.sqs.deleted())
	assert.Equal(t, []string{"msg-1"}, h.sink.failed)
	assert.Empty(t, h.leases.Active())
	// the failure cancelled the remaining reference
	assert.Equal(t, 0, h.s3.gets["my-bucket/logs/c.log"])
	// the message is still on the queue
	assert.Equal(t, 1, h.sqs.pending())
}

func TestCoordinator_ProcessMessage_TransientFailure(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log")), nil)
	h.s3.put("my-bucket", "logs/a.log", fakeObject{err: errors.New("connection reset")})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))

	assert.Equal(t, OutcomeReleased, outcome)
	assert.Empty(t, h.sqs.deleted())
	assert.Greater(t, h.s3.gets["my-bucket/logs/a.log"], 1)
}

func TestCoordinator_ProcessMessage_Notifications(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		receiveCount int
		poisonBudget int
		wantOutcome  Outcome
		wantDeleted  bool
	}{
		{
			name:        "test event is deleted",
			body:        `{"Service":"Amazon S3","Event":"s3:TestEvent","Bucket":"my-bucket"}`,
			wantOutcome: OutcomeDeleted,
			wantDeleted: true,
		},
		{
			name:        "deletion event is deleted",
			body:        `{"Records":[{"eventVersion":"2.1","eventSource":"aws:s3","eventName":"ObjectRemoved:Delete","s3":{"bucket":{"name":"b"},"object":{"key":"k"}}}]}`,
			wantOutcome: OutcomeDeleted,
			wantDeleted: true,
		},
		{
			name:        "malformed is released",
			body:        `{"Records":`,
			wantOutcome: OutcomeReleased,
		},
		{
			name:         "malformed within poison budget is released",
			body:         `{"Records":`,
			receiveCount: 2,
			poisonBudget: 3,
			wantOutcome:  OutcomeReleased,
		},
		{
			name:         "malformed over poison budget is dropped",
			body:         `{"Records":`,
			receiveCount: 3,
			poisonBudget: 3,
			wantOutcome:  OutcomeDropped,
			wantDeleted:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeSQS(tt.body)
			h := newHarness(t, q, nil, WithPoisonMessageMaxReceives(tt.poisonBudget))

			var msg *types.QueueMessage
			for i := 0; i < max(tt.receiveCount, 1); i++ {
				msg = h.receive(t)
				if i < tt.receiveCount-1 {
					// let it time out and be redelivered
					require.NoError(t, h.leases.Release(context.Background(), msg.ReceiptHandle, "test"))
					q.expireAll()
				}
			}
			if tt.receiveCount > 0 {
				require.Equal(t, tt.receiveCount, msg.ReceiveCount)
			}

			outcome := h.coordinator.ProcessMessage(context.Background(), msg)
			assert.Equal(t, tt.wantOutcome, outcome)
			if tt.wantDeleted {
				assert.Equal(t, []string{"msg-1"}, q.deleted())
			} else {
				assert.Empty(t, q.deleted())
			}
			assert.Empty(t, h.sink.lines)
		})
	}
}

func TestCoordinator_ProcessMessage_SinkErrors(t *testing.T) {
	tests := []struct {
		name      string
		notifyErr error
		flushErr  error
	}{
		{name: "notify fails", notifyErr: errors.New("downstream unavailable")},
		{name: "flush fails", flushErr: errors.New("disk full")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log")), nil)
			h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("a1\n")})
			h.sink.notifyErr = tt.notifyErr
			h.sink.flushErr = tt.flushErr

			outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))
			assert.Equal(t, OutcomeReleased, outcome)
			assert.Empty(t, h.sqs.deleted())
		})
	}
}

func TestCoordinator_ProcessMessage_Panic(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log")), nil)
	h.s3.put("my-bucket", "logs/a.log", fakeObject{panic: true})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))
	assert.Equal(t, OutcomeReleased, outcome)
	assert.Empty(t, h.sqs.deleted())
}

func TestCoordinator_ProcessMessage_Batches(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log")), nil, WithBatchSize(2))
	h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("1\n2\n3\n4\n5\n")})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))
	require.Equal(t, OutcomeDeleted, outcome)

	require.Len(t, h.sink.rows, 3)
	assert.Len(t, h.sink.rows[0].Lines, 2)
	assert.Len(t, h.sink.rows[2].Lines, 1)
	assert.Equal(t, "msg-1", h.sink.rows[0].MessageId)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, h.sink.messages())
}

func TestCoordinator_ProcessMessage_Multiline(t *testing.T) {
	rule, err := line_splitter.NewRule(`^[^\s]`, `^[\s]+`, "continue_through", 0, nil)
	require.NoError(t, err)
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/app.log")), nil,
		WithSplitter(line_splitter.NewSplitter(line_splitter.WithMultiline(rule))))
	h.s3.put("my-bucket", "logs/app.log", fakeObject{data: []byte("ERROR start\n  at foo()\n  at bar()\nINFO next\n")})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))
	require.Equal(t, OutcomeDeleted, outcome)
	assert.Equal(t, []string{"ERROR start\n  at foo()\n  at bar()", "INFO next"}, h.sink.messages())
}

func TestCoordinator_ProcessMessage_LineTooLongSkipped(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.gz")), nil,
		WithSplitter(line_splitter.NewSplitter(line_splitter.WithMaxLineBytes(32))))
	data := "before\n" + strings.Repeat("x", 100) + "\nafter\n"
	h.s3.put("my-bucket", "logs/a.gz", fakeObject{data: gzipBytes(data), lastModified: lastModified})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))

	// the oversize line is dropped, the rest of the object is emitted and acknowledged
	assert.Equal(t, OutcomeDeleted, outcome)
	assert.Equal(t, []string{"before", "after"}, h.sink.messages())
	assert.Equal(t, []string{"msg-1"}, h.sqs.deleted())
}

func TestCoordinator_ProcessMessage_DeleteDisabled(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log")), func(o *lease.Options) {
		o.DeleteMessage = false
	})
	h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("a1\n")})

	outcome := h.coordinator.ProcessMessage(context.Background(), h.receive(t))
	assert.Equal(t, OutcomeDeleted, outcome)
	assert.Equal(t, []string{"a1"}, h.sink.messages())
	assert.Empty(t, h.sqs.deleted())
}

func TestCoordinator_ProcessMessage_CancelledNotDeleted(t *testing.T) {
	h := newHarness(t, newFakeSQS(s3Notification("my-bucket", "logs/a.log")), nil)
	h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("a1\n")})
	msg := h.receive(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := h.coordinator.ProcessMessage(ctx, msg)
	assert.Equal(t, OutcomeReleased, outcome)
	assert.Empty(t, h.sqs.deleted())
}

func TestCoordinator_RedeliveryAfterCrash(t *testing.T) {
	q := newFakeSQS(s3Notification("my-bucket", "logs/a.log"))

	// the first instance receives the message and crashes before processing it
	crashed := newHarness(t, q, nil)
	first := crashed.receive(t)
	q.expireAll()

	// a new instance receives the redelivered message and processes it
	h := newHarness(t, q, nil)
	h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("a1\n")})
	second := h.receive(t)
	assert.Equal(t, 2, second.ReceiveCount)
	assert.NotEqual(t, first.ReceiptHandle, second.ReceiptHandle)

	assert.Equal(t, OutcomeDeleted, h.coordinator.ProcessMessage(context.Background(), second))

	// processing the same receipt again does not delete it again
	assert.Equal(t, OutcomeAckFailed, h.coordinator.ProcessMessage(context.Background(), second))

	assert.Equal(t, []string{"msg-1"}, q.deleted())
	for handle, count := range q.deletes {
		assert.Equal(t, 1, count, handle)
	}
}

func TestCoordinator_Run(t *testing.T) {
	q := newFakeSQS(
		s3Notification("my-bucket", "logs/a.log"),
		`{"Service":"Amazon S3","Event":"s3:TestEvent"}`,
		s3Notification("my-bucket", "logs/b.log"),
	)
	// the first poll fails, and is retried
	q.receiveErrs = []error{errors.New("throttled")}

	h := newHarness(t, q, nil, WithClientConcurrency(2))
	h.s3.put("my-bucket", "logs/a.log", fakeObject{data: []byte("a1\n")})
	h.s3.put("my-bucket", "logs/b.log", fakeObject{data: []byte("b1\nb2\n")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- h.coordinator.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(q.deleted()) == 3
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.ElementsMatch(t, []string{"msg-1", "msg-2", "msg-3"}, q.deleted())
	assert.ElementsMatch(t, []string{"a1", "b1", "b2"}, h.sink.messages())
	assert.Empty(t, h.leases.Active())
}
