package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/decoder"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/internal_events"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/object_fetcher"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/types"
)

// errEmit marks errors returned by the observers
var errEmit = errors.New("failed to emit lines")

// processObject fetches, decodes and splits a single object, emitting its lines in batches
// it returns the number of lines emitted, which is non zero on failure if some batches were already emitted
func (c *Coordinator) processObject(ctx context.Context, msg *types.QueueMessage, ref types.ObjectReference) (int, error) {
	slog.Debug("processing object", "message_id", msg.Id, "object", ref.String())

	body, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		c.objectError(ref, err)
		return 0, err
	}
	defer body.Close()
	internal_events.ObjectFetched{Bucket: ref.Bucket, Key: ref.Key, Bytes: body.Size}.Emit()

	reader, compression, err := decoder.Decode(body.Body, c.compression, decoder.ObjectHints{
		ContentEncoding: body.ContentEncoding,
		ContentType:     body.ContentType,
		Key:             ref.Key,
	})
	if err != nil {
		c.objectError(ref, err)
		return 0, fmt.Errorf("failed to decode %s: %w", ref, err)
	}
	defer reader.Close()

	emitted := 0
	batch := make([]types.DecodedLine, 0, c.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.NotifyObservers(ctx, events.NewRowsEvent(msg.Id, ref, batch)); err != nil {
			return fmt.Errorf("%w: %w", errEmit, err)
		}
		emitted += len(batch)
		batch = make([]types.DecodedLine, 0, c.batchSize)
		return nil
	}

	// closing the object body unblocks a read in progress; the decoder itself is closed once Split has returned
	skipped, err := c.splitter.Split(ctx, splitSource{Reader: reader, body: body}, func(line string) error {
		batch = append(batch, types.NewDecodedLine(line, ref, body.LastModified))
		if len(batch) >= c.batchSize {
			return flush()
		}
		return nil
	})
	internal_events.LinesTooLong{Bucket: ref.Bucket, Key: ref.Key, Count: skipped}.Emit()
	if err == nil {
		err = flush()
	}
	if err != nil {
		c.objectError(ref, err)
		return emitted, fmt.Errorf("failed to process %s: %w", ref, err)
	}

	internal_events.LinesEmitted{Bucket: ref.Bucket, Key: ref.Key, Count: emitted}.Emit()
	slog.Debug("processed object", "message_id", msg.Id, "object", ref.String(), "compression", compression, "lines", emitted)
	return emitted, nil
}

// splitSource reads decoded content but closes the underlying object body
type splitSource struct {
	io.Reader
	body *types.ObjectBody
}

func (s splitSource) Close() error {
	return s.body.Close()
}

func (c *Coordinator) objectError(ref types.ObjectReference, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	var fetchErr *object_fetcher.FetchError
	errorType := "read"
	switch {
	case errors.As(err, &fetchErr):
		errorType = fetchErr.Kind.String()
	case errors.Is(err, decoder.ErrDecode), errors.Is(err, decoder.ErrUnsupportedFormat):
		errorType = "decode"
	case errors.Is(err, errEmit):
		errorType = "emit"
	}
	internal_events.ObjectError{Bucket: ref.Bucket, Key: ref.Key, ErrorType: errorType, Err: err}.Emit()
}
