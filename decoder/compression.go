package decoder

import (
	"fmt"
	"strings"
)

// Compression is the compression applied to an object body
type Compression string

const (
	CompressionAuto Compression = "auto"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionNone Compression = "none"
	// CompressionText is accepted as an alias of CompressionNone
	CompressionText Compression = "text"
)

// ParseCompression converts a configured compression option into a Compression
// an empty option means no compression
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CompressionNone, CompressionText:
		return CompressionNone, nil
	case CompressionAuto, CompressionGzip, CompressionZstd:
		return c, nil
	default:
		return "", fmt.Errorf("%w: compression '%s' (must be one of auto, gzip, zstd, none)", ErrUnsupportedFormat, s)
	}
}
