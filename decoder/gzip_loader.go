package decoder

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipLoader is a Loader which decompresses a gzip stream
// concatenated gzip members are read as a single stream
type GzipLoader struct {
}

func NewGzipLoader() Loader {
	return &GzipLoader{}
}

func (g GzipLoader) Identifier() Compression {
	return CompressionGzip
}

// Load implements Loader
func (g GzipLoader) Load(r io.Reader) (io.ReadCloser, error) {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating gzip reader: %w", ErrDecode, err)
	}
	return &decodeErrorReader{r: gzReader, closer: gzReader}, nil
}
