package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/klauspost/compress/gzip"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/object_fetcher"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
)

const testQueueUrl = "https://sqs.us-east-1.amazonaws.com/123456789012/my-queue"

// fakeSQS is an in-memory queue with receipt handles and redelivery
type fakeSQS struct {
	mut      sync.Mutex
	visible  []sqstypes.Message
	inflight map[string]sqstypes.Message
	receives map[string]int
	// receipt handle -> number of successful deletes
	deletes     map[string]int
	deletedIds  []string
	seq         int
	receiveErrs []error
}

func newFakeSQS(bodies ...string) *fakeSQS {
	q := &fakeSQS{
		inflight: make(map[string]sqstypes.Message),
		receives: make(map[string]int),
		deletes:  make(map[string]int),
	}
	for i, body := range bodies {
		q.send(fmt.Sprintf("msg-%d", i+1), body)
	}
	return q
}

func (q *fakeSQS) send(id, body string) {
	q.mut.Lock()
	defer q.mut.Unlock()
	q.visible = append(q.visible, sqstypes.Message{MessageId: aws.String(id), Body: aws.String(body)})
}

func (q *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	q.mut.Lock()
	if len(q.receiveErrs) > 0 {
		err := q.receiveErrs[0]
		q.receiveErrs = q.receiveErrs[1:]
		q.mut.Unlock()
		return nil, err
	}
	var out []sqstypes.Message
	for len(q.visible) > 0 && len(out) < int(params.MaxNumberOfMessages) {
		m := q.visible[0]
		q.visible = q.visible[1:]
		id := aws.ToString(m.MessageId)
		q.receives[id]++
		q.seq++
		handle := fmt.Sprintf("%s-rh-%d", id, q.seq)
		m.ReceiptHandle = aws.String(handle)
		m.Attributes = map[string]string{"ApproximateReceiveCount": strconv.Itoa(q.receives[id])}
		q.inflight[handle] = m
		out = append(out, m)
	}
	q.mut.Unlock()

	if len(out) == 0 {
		// a short long-poll
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return &sqs.ReceiveMessageOutput{Messages: out}, nil
}

func (q *fakeSQS) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mut.Lock()
	defer q.mut.Unlock()
	handle := aws.ToString(params.ReceiptHandle)
	m, ok := q.inflight[handle]
	if !ok {
		return nil, errors.New("ReceiptHandleIsInvalid")
	}
	delete(q.inflight, handle)
	q.deletes[handle]++
	q.deletedIds = append(q.deletedIds, aws.ToString(m.MessageId))
	return &sqs.DeleteMessageOutput{}, nil
}

func (q *fakeSQS) ChangeMessageVisibility(_ context.Context, params *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	q.mut.Lock()
	defer q.mut.Unlock()
	handle := aws.ToString(params.ReceiptHandle)
	m, ok := q.inflight[handle]
	if !ok {
		return nil, errors.New("ReceiptHandleIsInvalid")
	}
	if params.VisibilityTimeout == 0 {
		delete(q.inflight, handle)
		q.visible = append(q.visible, m)
	}
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func (q *fakeSQS) GetQueueUrl(context.Context, *sqs.GetQueueUrlInput, ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(testQueueUrl)}, nil
}

// expireAll makes every in-flight message visible again, as if their visibility timeouts had passed
func (q *fakeSQS) expireAll() {
	q.mut.Lock()
	defer q.mut.Unlock()
	for handle, m := range q.inflight {
		delete(q.inflight, handle)
		q.visible = append(q.visible, m)
	}
}

func (q *fakeSQS) deleted() []string {
	q.mut.Lock()
	defer q.mut.Unlock()
	return append([]string(nil), q.deletedIds...)
}

func (q *fakeSQS) pending() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return len(q.visible) + len(q.inflight)
}

type fakeObject struct {
	data            []byte
	contentEncoding *string
	lastModified    time.Time
	err             error
	panic           bool
}

// fakeS3 serves objects from memory, keyed by bucket/key
type fakeS3 struct {
	mut     sync.Mutex
	objects map[string]fakeObject
	gets    map[string]int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject), gets: make(map[string]int)}
}

func (s *fakeS3) put(bucket, key string, obj fakeObject) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.objects[bucket+"/"+key] = obj
}

func (s *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.mut.Lock()
	path := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	s.gets[path]++
	obj, ok := s.objects[path]
	s.mut.Unlock()

	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String(path)}
	}
	if obj.panic {
		panic("corrupt client state")
	}
	if obj.err != nil {
		return nil, obj.err
	}
	return &s3.GetObjectOutput{
		Body:            io.NopCloser(bytes.NewReader(obj.data)),
		ContentEncoding: obj.contentEncoding,
		LastModified:    aws.Time(obj.lastModified),
		ContentLength:   aws.Int64(int64(len(obj.data))),
	}, nil
}

func (s *fakeS3) Client(context.Context, string) (object_fetcher.GetObjectAPI, error) {
	return s, nil
}

// collectingSink records every line it is sent
type collectingSink struct {
	mut       sync.Mutex
	rows      []*events.Rows
	lines     []types.DecodedLine
	completed []string
	failed    []string
	flushes   int
	notifyErr error
	flushErr  error
}

func (s *collectingSink) Notify(_ context.Context, e events.Event) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	switch ev := e.(type) {
	case *events.Rows:
		if s.notifyErr != nil {
			return s.notifyErr
		}
		s.rows = append(s.rows, ev)
		s.lines = append(s.lines, ev.Lines...)
	case *events.MessageCompleted:
		s.completed = append(s.completed, ev.MessageId)
	case *events.MessageFailed:
		s.failed = append(s.failed, ev.MessageId)
	}
	return nil
}

func (s *collectingSink) Flush(context.Context) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.flushes++
	return s.flushErr
}

func (s *collectingSink) messages() []string {
	s.mut.Lock()
	defer s.mut.Unlock()
	var res []string
	for _, l := range s.lines {
		res = append(res, l.Message)
	}
	return res
}

func gzipBytes(s string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write([]byte(s))
	_ = w.Close()
	return buf.Bytes()
}

func s3Notification(bucket string, keys ...string) string {
	body := `{"Records":[`
	for i, key := range keys {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"eventVersion":"2.1","eventSource":"aws:s3","awsRegion":"us-east-1","eventTime":"2024-05-01T10:00:00.000Z","eventName":"ObjectCreated:Put","s3":{"bucket":{"name":%q},"object":{"key":%q,"size":10}}}`, bucket, key)
	}
	return body + `]}`
}
