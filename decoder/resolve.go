package decoder

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ObjectHints are the properties of an object used to resolve the compression when the
// configured option is [CompressionAuto]
type ObjectHints struct {
	ContentEncoding *string
	ContentType     *string
	Key             string
}

// Resolve determines the compression of an object
// If the option is anything other than auto, it is returned unchanged.
// For auto, the resolution order is:
//  1. the content-encoding header
//  2. the content-type header
//  3. the key suffix
//  4. the magic bytes at the start of the stream (if any were provided)
//  5. none
func Resolve(option Compression, hints ObjectHints, head []byte) Compression {
	if option == CompressionText {
		return CompressionNone
	}
	if option != CompressionAuto {
		return option
	}
	if c, ok := fromContentEncoding(hints.ContentEncoding); ok {
		return c
	}
	if c, ok := fromContentType(hints.ContentType); ok {
		return c
	}
	if c, ok := fromKey(hints.Key); ok {
		return c
	}
	if c, ok := fromMagic(head); ok {
		return c
	}
	return CompressionNone
}

// Decode resolves the compression of the object body and returns a reader of the decoded bytes
// along with the compression which was used
func Decode(body io.Reader, option Compression, hints ObjectHints) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(body)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", fmt.Errorf("error reading object: %w", err)
	}
	// an empty object has nothing to decompress, whatever it claims to be
	if len(head) == 0 {
		return io.NopCloser(br), CompressionNone, nil
	}

	compression := Resolve(option, hints, head)
	slog.Debug("resolved object compression", "key", hints.Key, "option", option, "compression", compression)

	loader, err := Factory.GetLoader(compression)
	if err != nil {
		return nil, "", err
	}
	rc, err := loader.Load(br)
	if err != nil {
		return nil, "", err
	}
	return rc, compression, nil
}

func fromContentEncoding(encoding *string) (Compression, bool) {
	if encoding == nil {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(*encoding)) {
	case "gzip", "x-gzip":
		return CompressionGzip, true
	case "zstd":
		return CompressionZstd, true
	default:
		return "", false
	}
}

func fromContentType(contentType *string) (Compression, bool) {
	if contentType == nil {
		return "", false
	}
	// strip any parameters, e.g. "; charset=binary"
	mediaType, _, _ := strings.Cut(*contentType, ";")
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/gzip", "application/x-gzip":
		return CompressionGzip, true
	case "application/zstd":
		return CompressionZstd, true
	default:
		return "", false
	}
}

func fromKey(key string) (Compression, bool) {
	switch strings.ToLower(path.Ext(key)) {
	case ".gz", ".gzip":
		return CompressionGzip, true
	case ".zst", ".zstd":
		return CompressionZstd, true
	default:
		return "", false
	}
}

func fromMagic(head []byte) (Compression, bool) {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip, true
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd, true
	default:
		return "", false
	}
}
