package line_splitter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	DefaultMaxLineBytes = 16 * 1024 * 1024
	initialBufferSize   = 64 * 1024
)

// EmitFunc receives each line (or aggregated event) in stream order
type EmitFunc func(string) error

// Splitter splits a decoded byte stream into lines, optionally aggregating multiline events
// A Splitter holds no per-stream state so may be shared between goroutines
type Splitter struct {
	rule         *Rule
	maxLineBytes int
}

type SplitterOption func(*Splitter)

// WithMultiline enables multiline aggregation using the given rule (a nil rule is ignored)
func WithMultiline(rule *Rule) SplitterOption {
	return func(s *Splitter) {
		s.rule = rule
	}
}

func WithMaxLineBytes(maxLineBytes int) SplitterOption {
	return func(s *Splitter) {
		if maxLineBytes > 0 {
			s.maxLineBytes = maxLineBytes
		}
	}
}

func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{maxLineBytes: DefaultMaxLineBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split reads r to the end, calling emit for every line in order, and returns the number of
// lines dropped for exceeding the max line size. Any pending aggregated event is flushed at end of stream.
// r is closed before Split returns, and nothing reads from it after that.
func (s *Splitter) Split(ctx context.Context, r io.ReadCloser, emit EmitFunc) (int, error) {
	scanner := newLineScanner(r, s.maxLineBytes)

	if s.rule != nil && s.rule.Timeout > 0 {
		err := s.splitWithTimeout(ctx, r, scanner, emit)
		return scanner.skipped, err
	}
	defer r.Close()

	var aggregator *Aggregator
	if s.rule != nil {
		aggregator = NewAggregator(s.rule)
	}

	for scanner.Scan() {
		// check context cancellation
		if err := ctx.Err(); err != nil {
			return scanner.skipped, err
		}
		line := scanner.Text()
		if aggregator == nil {
			if err := emit(line); err != nil {
				return scanner.skipped, err
			}
			continue
		}
		if err := emitAll(aggregator.Push(line), emit); err != nil {
			return scanner.skipped, err
		}
	}
	if err := scanError(scanner.Scanner); err != nil {
		return scanner.skipped, err
	}
	if aggregator != nil {
		if event, ok := aggregator.Flush(); ok {
			return scanner.skipped, emit(event)
		}
	}
	return scanner.skipped, nil
}

// splitWithTimeout reads lines on a separate goroutine so a pending aggregated event can be
// flushed if the stream stalls for longer than the rule timeout
// The reading goroutine has exited by the time it returns
func (s *Splitter) splitWithTimeout(ctx context.Context, r io.Closer, scanner *lineScanner, emit EmitFunc) error {
	aggregator := NewAggregator(s.rule)

	lines := make(chan string)
	done := make(chan struct{})

	var readErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		// readErr is only read after lines is closed
		readErr = scanError(scanner.Scanner)
	}()

	// closing the source unblocks a read in progress
	defer func() {
		close(done)
		_ = r.Close()
		wg.Wait()
	}()

	timer := time.NewTimer(s.rule.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if readErr != nil {
					return readErr
				}
				if event, ok := aggregator.Flush(); ok {
					return emit(event)
				}
				return nil
			}
			if err := emitAll(aggregator.Push(line), emit); err != nil {
				return err
			}
			resetTimer(timer, s.rule.Timeout)
		case <-timer.C:
			if event, ok := aggregator.Flush(); ok {
				if err := emit(event); err != nil {
					return err
				}
			}
			timer.Reset(s.rule.Timeout)
		}
	}
}

// lineScanner splits on newlines, dropping (and counting) any line which does not fit in maxLineBytes
type lineScanner struct {
	*bufio.Scanner
	maxLineBytes int
	// true while discarding the remainder of an oversize line
	skipping bool
	skipped  int
}

func newLineScanner(r io.Reader, maxLineBytes int) *lineScanner {
	l := &lineScanner{
		Scanner:      bufio.NewScanner(r),
		maxLineBytes: maxLineBytes,
	}
	l.Buffer(make([]byte, 0, min(initialBufferSize, maxLineBytes)), maxLineBytes)
	l.Scanner.Split(l.scanLines)
	return l
}

func (l *lineScanner) scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if l.skipping {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			l.skipping = false
			return i + 1, nil, nil
		}
		return len(data), nil, nil
	}
	// the buffer is full and holds no line end
	if len(data) >= l.maxLineBytes && bytes.IndexByte(data[:l.maxLineBytes], '\n') < 0 {
		l.skipping = true
		l.skipped++
		return len(data), nil, nil
	}
	return bufio.ScanLines(data, atEOF)
}

func scanError(scanner *bufio.Scanner) error {
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading lines: %w", err)
	}
	return nil
}

func emitAll(events []string, emit EmitFunc) error {
	for _, e := range events {
		if err := emit(e); err != nil {
			return err
		}
	}
	return nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
