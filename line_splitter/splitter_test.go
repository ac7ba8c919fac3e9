package line_splitter

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *Splitter, r io.Reader) []string {
	t.Helper()
	var got []string
	skipped, err := s.Split(context.Background(), io.NopCloser(r), func(line string) error {
		got = append(got, line)
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, skipped)
	return got
}

func mustRule(t *testing.T, start, condition string, mode Mode) *Rule {
	t.Helper()
	rule, err := NewRule(start, condition, string(mode), 0, nil)
	require.NoError(t, err)
	return rule
}

func TestSplitter_Lines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "newline terminated",
			input: "a\nb\nc\n",
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "no trailing newline",
			input: "a\nb",
			want:  []string{"a", "b"},
		},
		{
			name:  "crlf",
			input: "a\r\nb\r\n",
			want:  []string{"a", "b"},
		},
		{
			name:  "blank lines are preserved",
			input: "a\n\nb\n",
			want:  []string{"a", "", "b"},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, NewSplitter(), strings.NewReader(tt.input))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitter_Multiline(t *testing.T) {
	tests := []struct {
		name  string
		rule  *Rule
		input []string
		want  []string
	}{
		{
			name:  "continue through - stack trace",
			rule:  mustRule(t, `^[^\s]`, `^[\s]+`, ModeContinueThrough),
			input: []string{"ERROR start", "  at foo()", "  at bar()", "INFO next"},
			want:  []string{"ERROR start\n  at foo()\n  at bar()", "INFO next"},
		},
		{
			name:  "continue through - lines before first start pass through",
			rule:  mustRule(t, `^ERROR`, `^[\s]+`, ModeContinueThrough),
			input: []string{"  orphan", "ERROR start", "  at foo()"},
			want:  []string{"  orphan", "ERROR start\n  at foo()"},
		},
		{
			name:  "continue past - trailing backslash",
			rule:  mustRule(t, `\\$`, `\\$`, ModeContinuePast),
			input: []string{`first \`, `second \`, `third`, `fourth`},
			want:  []string{"first \\\nsecond \\\nthird", "fourth"},
		},
		{
			name:  "halt before - new event starts with a date",
			rule:  mustRule(t, `^\d{4}-`, `^\d{4}-`, ModeHaltBefore),
			input: []string{"2024-01-01 one", "detail", "2024-01-02 two", "more", "detail"},
			want:  []string{"2024-01-01 one\ndetail", "2024-01-02 two\nmore\ndetail"},
		},
		{
			name:  "halt with - statement terminated by semicolon",
			rule:  mustRule(t, `^SELECT`, `;$`, ModeHaltWith),
			input: []string{"SELECT *", "FROM t", "WHERE x;", "other"},
			want:  []string{"SELECT *\nFROM t\nWHERE x;", "other"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSplitter(WithMultiline(tt.rule))
			got := collect(t, s, strings.NewReader(strings.Join(tt.input, "\n")+"\n"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitter_JoinWith(t *testing.T) {
	sep := " | "
	rule, err := NewRule(`^[^\s]`, `^[\s]+`, string(ModeContinueThrough), 0, &sep)
	require.NoError(t, err)

	got := collect(t, NewSplitter(WithMultiline(rule)), strings.NewReader("a\n b\nc\n"))
	assert.Equal(t, []string{"a |  b", "c"}, got)
}

func TestSplitter_MultilineTimeout(t *testing.T) {
	rule, err := NewRule(`^[^\s]`, `^[\s]+`, string(ModeContinueThrough), 20*time.Millisecond, nil)
	require.NoError(t, err)
	s := NewSplitter(WithMultiline(rule))

	pr, pw := io.Pipe()
	flushed := make(chan string, 10)
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Split(context.Background(), pr, func(line string) error {
			flushed <- line
			return nil
		})
		errCh <- err
	}()

	_, err = pw.Write([]byte("ERROR start\n  at foo()\n"))
	require.NoError(t, err)

	// the stream stalls - the pending event is flushed by the timeout
	select {
	case got := <-flushed:
		assert.Equal(t, "ERROR start\n  at foo()", got)
	case <-time.After(2 * time.Second):
		t.Fatal("pending event was not flushed after timeout")
	}

	_, err = pw.Write([]byte("INFO next\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	require.NoError(t, <-errCh)
	assert.Equal(t, "INFO next", <-flushed)
}

func TestSplitter_LineTooLong(t *testing.T) {
	long := strings.Repeat("x", 64)
	tests := []struct {
		name        string
		input       string
		want        []string
		wantSkipped int
	}{
		{
			name:        "oversize line between others",
			input:       "short\n" + long + "\nafter\n",
			want:        []string{"short", "after"},
			wantSkipped: 1,
		},
		{
			name:        "oversize last line without newline",
			input:       "short\n" + long,
			want:        []string{"short"},
			wantSkipped: 1,
		},
		{
			name:        "consecutive oversize lines",
			input:       long + "\n" + long + "\nend\n",
			want:        []string{"end"},
			wantSkipped: 2,
		},
		{
			name:  "line just under the limit",
			input: strings.Repeat("y", 15) + "\n",
			want:  []string{strings.Repeat("y", 15)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			skipped, err := NewSplitter(WithMaxLineBytes(16)).Split(context.Background(), io.NopCloser(strings.NewReader(tt.input)), func(line string) error {
				got = append(got, line)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSkipped, skipped)
		})
	}
}

// an early return must close the source and leave no read in progress
func TestSplitter_MultilineTimeout_ReleasesReader(t *testing.T) {
	rule, err := NewRule(`^[^\s]`, `^[\s]+`, string(ModeContinueThrough), 10*time.Millisecond, nil)
	require.NoError(t, err)
	s := NewSplitter(WithMultiline(rule))

	t.Run("emit error", func(t *testing.T) {
		emitErr := errors.New("sink failed")
		r := newStallReader("ERROR start\n")
		_, err := s.Split(context.Background(), r, func(string) error { return emitErr })
		assert.ErrorIs(t, err, emitErr)
		assert.True(t, r.isClosed())
		assert.Zero(t, r.reading.Load())
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		r := newStallReader("ERROR start\n")
		_, err := s.Split(ctx, r, func(string) error {
			cancel()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, r.isClosed())
		assert.Zero(t, r.reading.Load())
	})
}

func TestSplitter_EmitError(t *testing.T) {
	emitErr := errors.New("sink full")
	count := 0
	_, err := NewSplitter().Split(context.Background(), io.NopCloser(strings.NewReader("a\nb\nc\n")), func(string) error {
		count++
		if count == 2 {
			return emitErr
		}
		return nil
	})
	assert.ErrorIs(t, err, emitErr)
	assert.Equal(t, 2, count)
}

func TestSplitter_ReadErrorPropagates(t *testing.T) {
	readErr := errors.New("corrupt")
	r := io.MultiReader(strings.NewReader("a\n"), &errReader{err: readErr})
	_, err := NewSplitter().Split(context.Background(), io.NopCloser(r), func(string) error { return nil })
	assert.ErrorIs(t, err, readErr)
}

func TestSplitter_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSplitter().Split(ctx, io.NopCloser(strings.NewReader("a\nb\n")), func(string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRule_Invalid(t *testing.T) {
	_, err := NewRule(`(`, `x`, string(ModeHaltWith), 0, nil)
	assert.Error(t, err)
	_, err = NewRule(`x`, `x`, "sometimes", 0, nil)
	assert.Error(t, err)
}

type errReader struct {
	err error
}

func (e *errReader) Read([]byte) (int, error) {
	return 0, e.err
}

// stallReader returns its data and then blocks until closed
type stallReader struct {
	data      []byte
	closed    chan struct{}
	closeOnce sync.Once
	// number of Read calls in progress
	reading atomic.Int32
}

func newStallReader(data string) *stallReader {
	return &stallReader{data: []byte(data), closed: make(chan struct{})}
}

func (r *stallReader) Read(p []byte) (int, error) {
	r.reading.Add(1)
	defer r.reading.Add(-1)
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	<-r.closed
	return 0, io.ErrClosedPipe
}

func (r *stallReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

func (r *stallReader) isClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}
