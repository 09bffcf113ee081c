package cache

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

const (
	// DefaultMaxEntrySize is the largest body NewRecorder will buffer
	DefaultMaxEntrySize = 8 << 20
)

// Recorder tees a response body into memory while the caller reads it.
// When the body has been read to EOF the captured bytes are passed to the
// completion callback exactly once, before Close returns.
type Recorder struct {
	rc       io.ReadCloser
	buf      bytes.Buffer
	max      int
	overflow bool
	eof      bool
	once     sync.Once
	onDone   func([]byte)
}

// NewRecorder wraps rc. Bodies larger than maxBytes are passed through
// unchanged but not handed to onDone. maxBytes <= 0 means DefaultMaxEntrySize.
func NewRecorder(rc io.ReadCloser, maxBytes int, onDone func([]byte)) *Recorder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEntrySize
	}
	return &Recorder{rc: rc, max: maxBytes, onDone: onDone}
}

// Read implements io.Reader.
func (r *Recorder) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 && !r.overflow {
		if r.buf.Len()+n > r.max {
			r.overflow = true
			r.buf = bytes.Buffer{}
		} else {
			r.buf.Write(p[:n])
		}
	}
	if errors.Is(err, io.EOF) {
		r.eof = true
	}
	return n, err
}

// Close closes the underlying body and completes the recording.
func (r *Recorder) Close() error {
	err := r.rc.Close()
	r.once.Do(func() {
		switch {
		case r.overflow:
			CacheSkipped.WithLabelValues("too_large").Inc()
		case !r.eof:
			// A body abandoned mid-stream (cancellation, parse error) must not
			// be cached as if complete.
			CacheSkipped.WithLabelValues("incomplete").Inc()
		case r.onDone != nil:
			r.onDone(r.buf.Bytes())
		}
	})
	return err
}

// Body returns a reader over a cached entry's payload.
func (e *CacheEntry) Body() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(e.Data))
}
