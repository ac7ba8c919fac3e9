package observable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/events"
)

type recordingObserver struct {
	received []events.Event
	err      error
}

func (r *recordingObserver) Notify(_ context.Context, e events.Event) error {
	r.received = append(r.received, e)
	return r.err
}

type flushingObserver struct {
	recordingObserver
	flushes  int
	flushErr error
}

func (f *flushingObserver) Flush(context.Context) error {
	f.flushes++
	return f.flushErr
}

func TestObservableImpl_NotifyObservers(t *testing.T) {
	var o ObservableImpl
	ok := &recordingObserver{}
	failing := &recordingObserver{err: errors.New("sink full")}
	require.NoError(t, o.AddObserver(ok))
	require.NoError(t, o.AddObserver(failing))

	e := events.NewMessageFailedEvent("m1", errors.New("boom"))
	err := o.NotifyObservers(context.Background(), e)

	// every observer is notified even if one fails
	assert.ErrorContains(t, err, "sink full")
	assert.Equal(t, []events.Event{e}, ok.received)
	assert.Equal(t, []events.Event{e}, failing.received)
}

func TestObservableImpl_FlushObservers(t *testing.T) {
	var o ObservableImpl
	plain := &recordingObserver{}
	flusher := &flushingObserver{}
	require.NoError(t, o.AddObserver(plain))
	require.NoError(t, o.AddObserver(flusher))

	require.NoError(t, o.FlushObservers(context.Background()))
	assert.Equal(t, 1, flusher.flushes)

	flusher.flushErr = errors.New("disk full")
	assert.ErrorContains(t, o.FlushObservers(context.Background()), "disk full")
}
