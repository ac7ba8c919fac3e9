package decoder

import "io"

// Loader wraps a raw object stream and performs any necessary decompression
// Loaders provided: [GzipLoader], [ZstdLoader], [NoneLoader]
type Loader interface {
	Identifier() Compression
	// Load returns a reader which lazily yields the decoded bytes of r
	Load(r io.Reader) (io.ReadCloser, error)
}
