package decoder

import "io"

// NoneLoader is a Loader which passes the object body through unchanged
type NoneLoader struct {
}

func NewNoneLoader() Loader {
	return &NoneLoader{}
}

func (n NoneLoader) Identifier() Compression {
	return CompressionNone
}

// Load implements Loader
func (n NoneLoader) Load(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}
