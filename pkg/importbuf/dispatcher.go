package importbuf

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("importbuf: dispatcher closed")

// Dispatcher forwards objects to a Consumer and tracks outstanding work.
// It can be shared by several buffers, e.g. every page of a paginated query.
type Dispatcher struct {
	consumer Consumer
	sem      *semaphore.Weighted

	mu          sync.Mutex
	idle        *sync.Cond
	outstanding int
	dispatched  int
	firstErr    error
	closed      bool
}

// NewDispatcher creates a dispatcher for c. With workers > 0 up to workers
// objects are consumed concurrently; with workers == 0 Dispatch calls the
// consumer inline.
func NewDispatcher(c Consumer, workers int) *Dispatcher {
	if workers < 0 {
		workers = 0
	}
	d := &Dispatcher{consumer: c}
	if workers > 0 {
		d.sem = semaphore.NewWeighted(int64(workers))
	}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Dispatch hands obj to the consumer. Inline consumption returns the
// consumer's error so the caller stops feeding objects. In overlapped mode
// it blocks only until a worker slot is free and errors surface from Wait. Cancellation of ctx stops scheduling but
// never aborts work already handed out.
func (d *Dispatcher) Dispatch(ctx context.Context, obj objects.Object) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.outstanding++
	d.dispatched++
	d.mu.Unlock()
	Outstanding.Inc()

	if d.sem == nil {
		err := d.consumer.Consume(ctx, obj)
		d.done(err)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.mu.Lock()
		d.dispatched--
		d.mu.Unlock()
		d.done(nil)
		return fmt.Errorf("dispatch: %w", err)
	}

	workCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.sem.Release(1)
		d.done(d.consumer.Consume(workCtx, obj))
	}()
	return nil
}

func (d *Dispatcher) done(err error) {
	Outstanding.Dec()
	if err != nil {
		ConsumerErrors.Inc()
		log.Warn().Err(err).Msg("Consumer failed")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil && d.firstErr == nil {
		d.firstErr = err
	}
	d.outstanding--
	if d.outstanding == 0 {
		d.idle.Broadcast()
	}
}

// Wait blocks until every dispatched object has been consumed and returns
// the first consumer error, if any.
func (d *Dispatcher) Wait() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.outstanding > 0 {
		d.idle.Wait()
	}
	return d.firstErr
}

// Pending returns the number of objects dispatched but not yet consumed.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outstanding
}

// Dispatched returns the total number of objects handed to the consumer.
func (d *Dispatcher) Dispatched() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatched
}

// Close waits for outstanding work and finishes the consumer. Further
// Dispatch calls fail with ErrClosed. Close is safe to call more than once;
// only the first call finishes the consumer.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	already := d.closed
	d.closed = true
	d.mu.Unlock()

	waitErr := d.Wait()
	if already {
		return waitErr
	}
	return errors.Join(waitErr, d.consumer.Finish(context.WithoutCancel(ctx)))
}
