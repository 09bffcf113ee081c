package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/Sternrassler/qualys-api-client/pkg/importbuf"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/Sternrassler/qualys-api-client/pkg/store"
)

// printer writes each object as one JSON line.
type printer struct {
	mu  sync.Mutex
	enc *json.Encoder
	n   int
}

func newPrinter(w io.Writer) *printer {
	return &printer{enc: json.NewEncoder(w)}
}

func (p *printer) Consume(_ context.Context, obj objects.Object) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(struct {
		Type   string         `json:"type"`
		Object objects.Object `json:"object"`
	}{obj.Tag(), obj}); err != nil {
		return fmt.Errorf("write %s: %w", obj.Tag(), err)
	}
	p.n++
	return nil
}

func (p *printer) Finish(context.Context) error { return nil }

// sink is where an import goes: a bbolt store when dbPath is set,
// otherwise JSON lines on w.
type sink struct {
	importbuf.Consumer
	store   *store.Store
	printer *printer
}

func openSink(w io.Writer, dbPath string) (*sink, error) {
	if dbPath == "" {
		p := newPrinter(w)
		return &sink{Consumer: p, printer: p}, nil
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &sink{Consumer: s, store: s}, nil
}

// Count returns how many objects reached the sink.
func (s *sink) Count() int64 {
	if s.store != nil {
		return s.store.Stored()
	}
	s.printer.mu.Lock()
	defer s.printer.mu.Unlock()
	return int64(s.printer.n)
}

func (s *sink) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
