package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/events"
)

// WriterSink writes each decoded line as a JSON object on its own line
// Output is buffered until Flush, which the coordinator calls before deleting a message
type WriterSink struct {
	w   *bufio.Writer
	enc *json.Encoder
	// the underlying file, if the sink owns one
	file *os.File
	mut  sync.Mutex
}

func NewWriterSink(w io.Writer) *WriterSink {
	bw := bufio.NewWriter(w)
	return &WriterSink{
		w:   bw,
		enc: json.NewEncoder(bw),
	}
}

// NewFileSink appends to the file at path, creating it if needed
func NewFileSink(path string) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	s := NewWriterSink(f)
	s.file = f
	return s, nil
}

func (s *WriterSink) Notify(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case *events.Rows:
		s.mut.Lock()
		defer s.mut.Unlock()
		for _, line := range ev.Lines {
			if err := s.enc.Encode(line); err != nil {
				return fmt.Errorf("failed to write line from %s: %w", ev.Object, err)
			}
		}
	case *events.MessageCompleted:
		slog.Debug("WriterSink: message completed", "message_id", ev.MessageId, "lines", ev.Lines)
	case *events.MessageFailed:
		slog.Debug("WriterSink: message failed", "message_id", ev.MessageId, "error", ev.Err)
	}
	return nil
}

func (s *WriterSink) Flush(context.Context) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if s.file != nil {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync output file: %w", err)
		}
	}
	return nil
}

func (s *WriterSink) Close() error {
	if err := s.Flush(context.Background()); err != nil {
		return err
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
