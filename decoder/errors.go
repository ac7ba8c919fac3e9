package decoder

import "errors"

var (
	// ErrUnsupportedFormat is returned when no loader exists for a compression
	ErrUnsupportedFormat = errors.New("unsupported compression format")
	// ErrDecode is returned (wrapped) when a compressed stream is corrupt
	ErrDecode = errors.New("failed to decode object")
)
