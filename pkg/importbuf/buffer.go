package importbuf

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/qualys-api-client/pkg/objects"
)

// ErrFinished is returned by Add once the buffer has been finished.
var ErrFinished = errors.New("importbuf: add after finish")

// Options configures a Buffer.
type Options struct {
	// Dispatcher receives every added object. Nil means pure accumulation.
	Dispatcher *Dispatcher

	// Retain keeps data objects in the buffer even when they are dispatched.
	// Warning and status objects are always retained.
	Retain bool
}

// Buffer accumulates the objects of one parse pass in document order.
type Buffer struct {
	opts Options

	mu       sync.Mutex
	items    []objects.Object
	finished bool
}

// New creates a Buffer.
func New(opts Options) *Buffer {
	return &Buffer{opts: opts}
}

// Add appends obj and forwards it to the dispatcher, if any.
func (b *Buffer) Add(ctx context.Context, obj objects.Object) error {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		return ErrFinished
	}
	keep := b.opts.Dispatcher == nil || b.opts.Retain || obj.Kind() != objects.KindData
	if keep {
		b.items = append(b.items, obj)
	}
	b.mu.Unlock()

	ObjectsTotal.WithLabelValues(obj.Kind().String()).Inc()

	if b.opts.Dispatcher == nil || obj.Kind() != objects.KindData {
		return nil
	}
	return b.opts.Dispatcher.Dispatch(ctx, obj)
}

// Len returns the number of retained objects.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Finish marks the buffer finished and returns the retained objects. With
// block set it first waits for all dispatched work and reports the first
// consumer error alongside the objects. The returned slice is never nil.
func (b *Buffer) Finish(block bool) ([]objects.Object, error) {
	b.mu.Lock()
	b.finished = true
	out := make([]objects.Object, len(b.items))
	copy(out, b.items)
	b.mu.Unlock()

	if block && b.opts.Dispatcher != nil {
		if err := b.opts.Dispatcher.Wait(); err != nil {
			return out, err
		}
	}
	return out, nil
}
