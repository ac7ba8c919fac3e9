package decoder

import (
	"errors"
	"fmt"
	"io"
)

// decodeErrorReader wraps a decompressing reader so that a corrupt stream surfaces as ErrDecode
type decodeErrorReader struct {
	r      io.Reader
	closer io.Closer
}

func (d *decodeErrorReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, ErrDecode) {
		err = fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return n, err
}

func (d *decodeErrorReader) Close() error {
	return d.closer.Close()
}
