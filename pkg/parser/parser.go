// Package parser turns a Qualys XML response stream into domain objects.
//
// The stream is decoded incrementally; every element whose local name is a
// key of the tag map is built into an object on its end event and handed to
// an import buffer. Unmapped elements are skipped.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Sternrassler/qualys-api-client/pkg/importbuf"
	"github.com/Sternrassler/qualys-api-client/pkg/logging"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/Sternrassler/qualys-api-client/pkg/xmlstream"
)

// Options configures a parse pass.
type Options struct {
	// TagMap selects constructors by element name. Nil means objects.DefaultTagMap().
	TagMap objects.TagMap

	// Context is passed to every constructor.
	Context *objects.Context

	// Buffer receives the built objects. Nil means a fresh accumulating buffer.
	Buffer *importbuf.Buffer

	// Block waits for outstanding consumer work before returning.
	Block bool
}

// Parse reads r to the end (or until ctx is done) and returns the objects
// retained by the buffer in document order.
//
// Cancellation is not an error: the objects built so far are returned with
// a nil error and callers inspect ctx.Err(). Malformed XML is reported as
// *xmlstream.ParseError. The returned slice is never nil, even on error.
func Parse(ctx context.Context, r io.Reader, opts Options) ([]objects.Object, error) {
	logger := logging.NewLogger("qualys-parser")

	tags := opts.TagMap
	if tags == nil {
		tags = objects.DefaultTagMap()
	} else {
		tags = tags.Clone()
	}
	buf := opts.Buffer
	if buf == nil {
		buf = importbuf.New(importbuf.Options{})
	}
	rc := opts.Context
	if rc == nil {
		rc = &objects.Context{}
	}

	match := func(tag string) bool {
		_, ok := tags[tag]
		return ok
	}

	built := 0
	walkErr := xmlstream.Walk(ctx, r, match, func(el *xmlstream.Element) error {
		obj := tags[el.Tag()](el, rc)
		if obj == nil {
			return nil
		}
		built++
		if err := buf.Add(ctx, obj); err != nil {
			return fmt.Errorf("add %s: %w", el.Tag(), err)
		}
		return nil
	})

	if walkErr != nil && ctx.Err() != nil && errors.Is(walkErr, ctx.Err()) {
		walkErr = nil
	}
	if ctx.Err() != nil {
		logger.Info().
			Int("objects", built).
			Msg("Parse cancelled")
	}

	results, finishErr := buf.Finish(opts.Block)
	if walkErr != nil {
		return results, walkErr
	}
	if finishErr != nil {
		return results, fmt.Errorf("consumer: %w", finishErr)
	}

	logger.Debug().
		Int("objects", built).
		Int("retained", len(results)).
		Msg("Parse complete")
	return results, nil
}
