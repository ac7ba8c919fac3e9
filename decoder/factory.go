package decoder

import (
	"fmt"
	"sync"
)

// Factory is a global LoaderFactory instance
var Factory = newLoaderFactory()

type LoaderFactory struct {
	loaders map[Compression]func() Loader
	lock    sync.RWMutex
}

func newLoaderFactory() *LoaderFactory {
	f := &LoaderFactory{
		loaders: make(map[Compression]func() Loader),
	}
	f.RegisterLoaders(NewGzipLoader, NewZstdLoader, NewNoneLoader)
	return f
}

func (f *LoaderFactory) RegisterLoaders(loaderFuncs ...func() Loader) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, ctor := range loaderFuncs {
		// create an instance of the loader to get the identifier
		l := ctor()
		f.loaders[l.Identifier()] = ctor
	}
}

// GetLoader returns a new loader for the given (resolved) compression
func (f *LoaderFactory) GetLoader(c Compression) (Loader, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	if c == CompressionText {
		c = CompressionNone
	}
	ctor, ok := f.loaders[c]
	if !ok {
		return nil, fmt.Errorf("%w: no loader registered for '%s'", ErrUnsupportedFormat, c)
	}
	return ctor(), nil
}
