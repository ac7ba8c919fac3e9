package observable

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/turbot/tailpipe-source-aws-s3-sqs/events"
)

// ObservableImpl provides a base implementation of the Observable interface
// it is embedded in the pipeline coordinator
type ObservableImpl struct {
	observerLock sync.RWMutex
	Observers    []Observer
}

func (p *ObservableImpl) AddObserver(o Observer) error {
	slog.Info("AddObserver")
	p.observerLock.Lock()
	p.Observers = append(p.Observers, o)
	p.observerLock.Unlock()

	return nil
}

func (p *ObservableImpl) NotifyObservers(ctx context.Context, e events.Event) error {
	p.observerLock.RLock()
	defer p.observerLock.RUnlock()
	var notifyErrors []error
	for _, observer := range p.Observers {
		err := observer.Notify(ctx, e)
		if err != nil {
			notifyErrors = append(notifyErrors, err)
		}
	}

	return errors.Join(notifyErrors...)
}

// FlushObservers flushes every observer which implements Flusher
func (p *ObservableImpl) FlushObservers(ctx context.Context) error {
	p.observerLock.RLock()
	defer p.observerLock.RUnlock()
	var flushErrors []error
	for _, observer := range p.Observers {
		if f, ok := observer.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				flushErrors = append(flushErrors, err)
			}
		}
	}

	return errors.Join(flushErrors...)
}
