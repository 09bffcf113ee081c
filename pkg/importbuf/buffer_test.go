package importbuf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowCounter struct {
	delay    time.Duration
	count    atomic.Int64
	finished atomic.Bool
}

func (c *slowCounter) Consume(ctx context.Context, obj objects.Object) error {
	time.Sleep(c.delay)
	c.count.Add(1)
	return nil
}

func (c *slowCounter) Finish(ctx context.Context) error {
	c.finished.Store(true)
	return nil
}

func host(id int64) objects.Object { return &objects.Host{ID: id} }

func TestBuffer_Accumulates(t *testing.T) {
	b := New(Options{})
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, b.Add(ctx, host(i)))
	}

	out, err := b.Finish(true)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, obj := range out {
		assert.Equal(t, int64(i+1), obj.(*objects.Host).ID)
	}
}

func TestBuffer_FinishEmptyIsNotNil(t *testing.T) {
	out, err := New(Options{}).Finish(false)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestBuffer_AddAfterFinish(t *testing.T) {
	b := New(Options{})
	_, err := b.Finish(false)
	require.NoError(t, err)

	err = b.Add(context.Background(), host(1))
	assert.ErrorIs(t, err, ErrFinished)
}

func TestBuffer_FinishBlocksForOutstandingWork(t *testing.T) {
	tests := []struct {
		name    string
		workers int
	}{
		{"synchronous", 0},
		{"overlapped", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &slowCounter{delay: 10 * time.Millisecond}
			d := NewDispatcher(c, tt.workers)
			b := New(Options{Dispatcher: d})

			const n = 20
			for i := int64(0); i < n; i++ {
				require.NoError(t, b.Add(context.Background(), host(i)))
			}

			_, err := b.Finish(true)
			require.NoError(t, err)
			assert.Equal(t, int64(n), c.count.Load())
			assert.Equal(t, n, d.Dispatched())
			assert.Zero(t, d.Pending())
		})
	}
}

func TestBuffer_RetainsStatusObjectsWithConsumer(t *testing.T) {
	c := &slowCounter{}
	b := New(Options{Dispatcher: NewDispatcher(c, 0)})
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, host(1)))
	require.NoError(t, b.Add(ctx, &objects.Warning{Code: "1980"}))
	require.NoError(t, b.Add(ctx, host(2)))

	out, err := b.Finish(true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, objects.KindWarning, out[0].Kind())
	assert.Equal(t, int64(2), c.count.Load())
}

func TestBuffer_Retain(t *testing.T) {
	c := &slowCounter{}
	b := New(Options{Dispatcher: NewDispatcher(c, 2), Retain: true})

	require.NoError(t, b.Add(context.Background(), host(1)))
	require.NoError(t, b.Add(context.Background(), host(2)))

	out, err := b.Finish(true)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, int64(2), c.count.Load())
}

func TestBuffer_ConcurrentAdd(t *testing.T) {
	b := New(Options{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = b.Add(context.Background(), host(int64(g*100+i)))
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 800, b.Len())
}

func TestDispatcher_ReportsFirstConsumerError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64
	d := NewDispatcher(ConsumerFunc(func(ctx context.Context, obj objects.Object) error {
		if calls.Add(1) == 2 {
			return boom
		}
		return nil
	}), 1)
	b := New(Options{Dispatcher: d})

	for i := int64(0); i < 3; i++ {
		require.NoError(t, b.Add(context.Background(), host(i)))
	}

	out, err := b.Finish(true)
	assert.ErrorIs(t, err, boom)
	assert.NotNil(t, out)
	assert.Equal(t, int64(3), calls.Load())
}

func TestDispatcher_InlineConsumerErrorStopsAdd(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64
	d := NewDispatcher(ConsumerFunc(func(ctx context.Context, obj objects.Object) error {
		if calls.Add(1) == 2 {
			return boom
		}
		return nil
	}), 0)
	b := New(Options{Dispatcher: d})

	require.NoError(t, b.Add(context.Background(), host(1)))
	err := b.Add(context.Background(), host(2))
	assert.ErrorIs(t, err, boom)

	_, err = b.Finish(true)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, int64(2), calls.Load())
}

func TestDispatcher_CancelStopsScheduling(t *testing.T) {
	release := make(chan struct{})
	var done atomic.Int64
	d := NewDispatcher(ConsumerFunc(func(ctx context.Context, obj objects.Object) error {
		<-release
		assert.NoError(t, ctx.Err(), "in-flight work must not see cancellation")
		done.Add(1)
		return nil
	}), 1)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(ctx, host(1)))

	cancel()
	err := d.Dispatch(ctx, host(2))
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, d.Wait())
	assert.Equal(t, int64(1), done.Load())
	assert.Equal(t, 1, d.Dispatched())
}

func TestDispatcher_Close(t *testing.T) {
	c := &slowCounter{delay: 5 * time.Millisecond}
	d := NewDispatcher(c, 3)

	for i := int64(0); i < 6; i++ {
		require.NoError(t, d.Dispatch(context.Background(), host(i)))
	}

	require.NoError(t, d.Close(context.Background()))
	assert.True(t, c.finished.Load())
	assert.Equal(t, int64(6), c.count.Load())

	assert.ErrorIs(t, d.Dispatch(context.Background(), host(7)), ErrClosed)
	assert.NoError(t, d.Close(context.Background()))
}
