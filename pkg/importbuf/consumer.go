// Package importbuf holds the hand-off stage between the response parser
// and whoever consumes the parsed objects.
//
// A Buffer accumulates objects in document order. When a Dispatcher is
// attached, every object is also forwarded to a Consumer, either inline
// (synchronous) or on a bounded set of goroutines (overlapped), so that
// download, parsing and consumption of large responses overlap in time.
package importbuf

import (
	"context"

	"github.com/Sternrassler/qualys-api-client/pkg/objects"
)

// Consumer processes parsed objects outside the buffer.
type Consumer interface {
	// Consume handles one object. It may be called concurrently when the
	// dispatcher runs with workers.
	Consume(ctx context.Context, obj objects.Object) error

	// Finish drains the consumer once no more objects will arrive.
	Finish(ctx context.Context) error
}

// ConsumerFunc adapts a function to a Consumer with a no-op Finish.
type ConsumerFunc func(ctx context.Context, obj objects.Object) error

// Consume implements Consumer.
func (f ConsumerFunc) Consume(ctx context.Context, obj objects.Object) error {
	return f(ctx, obj)
}

// Finish implements Consumer.
func (f ConsumerFunc) Finish(context.Context) error { return nil }
