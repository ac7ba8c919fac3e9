package decoder

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZstdLoader is a Loader which decompresses a zstd stream
type ZstdLoader struct {
}

func NewZstdLoader() Loader {
	return &ZstdLoader{}
}

func (z ZstdLoader) Identifier() Compression {
	return CompressionZstd
}

// Load implements Loader
func (z ZstdLoader) Load(r io.Reader) (io.ReadCloser, error) {
	// decode on the calling goroutine - the pipeline already runs each object on a worker
	zReader, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("%w: error creating zstd reader: %w", ErrDecode, err)
	}
	rc := zReader.IOReadCloser()
	return &decodeErrorReader{r: rc, closer: rc}, nil
}
