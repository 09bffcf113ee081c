package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/Sternrassler/qualys-api-client/pkg/importbuf"
	"github.com/Sternrassler/qualys-api-client/pkg/logging"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/Sternrassler/qualys-api-client/pkg/parser"
)

// Source names where a response comes from: an API call or a reader
// holding a previously saved response.
type Source struct {
	Endpoint string
	Params   url.Values
	Reader   io.Reader
}

// ParseOption configures ParseResponse.
type ParseOption func(*parseOptions)

type parseOptions struct {
	base       objects.TagMap
	tagMap     objects.TagMap
	replace    bool
	report     *objects.Report
	consumer   importbuf.Consumer
	workers    int
	dispatcher *importbuf.Dispatcher
	block      bool
	retain     bool
}

func newParseOptions(opts []ParseOption) parseOptions {
	o := parseOptions{block: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// withBaseTags sets the map that WithTagMap layers onto. Endpoint calls use
// it for their per-endpoint map; the default map is used otherwise.
func withBaseTags(m objects.TagMap) ParseOption {
	return func(o *parseOptions) { o.base = m }
}

// WithTagMap layers m onto the call's tag map: the endpoint's map for
// endpoint calls, otherwise the default map.
func WithTagMap(m objects.TagMap) ParseOption {
	return func(o *parseOptions) {
		o.tagMap = m
		o.replace = false
	}
}

// WithTagMapReplace uses m alone, dropping the call's tag map.
func WithTagMapReplace(m objects.TagMap) ParseOption {
	return func(o *parseOptions) {
		o.tagMap = m
		o.replace = true
	}
}

// WithReport passes a report stub to constructors.
func WithReport(stub *objects.Report) ParseOption {
	return func(o *parseOptions) { o.report = stub }
}

// WithConsumer hands data objects to c. workers > 0 runs the consumer
// concurrently with parsing; 0 calls it inline.
func WithConsumer(c importbuf.Consumer, workers int) ParseOption {
	return func(o *parseOptions) {
		o.consumer = c
		o.workers = workers
	}
}

// WithDispatcher hands data objects to a caller-owned dispatcher. The
// caller closes it.
func WithDispatcher(d *importbuf.Dispatcher) ParseOption {
	return func(o *parseOptions) { o.dispatcher = d }
}

// WithBlock controls whether ParseResponse waits for consumer work.
// Defaults to true.
func WithBlock(block bool) ParseOption {
	return func(o *parseOptions) { o.block = block }
}

// WithRetain keeps data objects in the result even when they are consumed.
func WithRetain(retain bool) ParseOption {
	return func(o *parseOptions) { o.retain = retain }
}

// ParseResponse parses a response from src and classifies the result.
//
// Endpoint sources are requested through t. A source with neither an
// endpoint nor a reader fails with ErrNoSource before anything is read.
// Cancellation yields the objects built so far and a nil error.
func ParseResponse(ctx context.Context, t Transport, src Source, opts ...ParseOption) ([]objects.Object, error) {
	logger := logging.NewLogger("qualys-client")
	o := newParseOptions(opts)

	if src.Reader == nil && src.Endpoint == "" {
		return nil, ErrNoSource
	}

	tags := o.base
	if tags == nil {
		tags = objects.DefaultTagMap()
	}
	if o.tagMap != nil {
		tags = objects.Merge(tags, o.tagMap, o.replace)
	}

	r := src.Reader
	if r == nil {
		if t == nil {
			return nil, fmt.Errorf("%w: no transport for endpoint %s", ErrUsage, src.Endpoint)
		}
		body, err := t.StreamRequest(ctx, src.Endpoint, src.Params)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Str("endpoint", src.Endpoint).Msg("Request cancelled")
				return []objects.Object{}, nil
			}
			return nil, err
		}
		defer body.Close()
		r = body
	}

	// Step 1: Wire the consumer
	dispatcher := o.dispatcher
	owned := false
	if dispatcher == nil && o.consumer != nil {
		dispatcher = importbuf.NewDispatcher(o.consumer, o.workers)
		owned = true
	}
	buf := importbuf.New(importbuf.Options{Dispatcher: dispatcher, Retain: o.retain})

	// Step 2: Parse
	results, err := parser.Parse(ctx, r, parser.Options{
		TagMap:  tags,
		Context: &objects.Context{Report: o.report},
		Buffer:  buf,
		Block:   o.block,
	})

	// Step 3: Drain a consumer we created
	if owned {
		if o.block {
			if cerr := dispatcher.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
				err = fmt.Errorf("consumer: %w", cerr)
			}
		} else {
			go func() {
				if cerr := dispatcher.Close(context.WithoutCancel(ctx)); cerr != nil {
					logger.Error().Err(cerr).Msg("Background consumer failed")
				}
			}()
		}
	}

	if err != nil {
		if errors.Is(err, importbuf.ErrFinished) || errors.Is(err, importbuf.ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrUsage, err)
		}
		return results, err
	}

	// Step 4: Classify
	return results, CheckResults(results)
}

// ParseResponse parses a response requested through c.
func (c *Client) ParseResponse(ctx context.Context, src Source, opts ...ParseOption) ([]objects.Object, error) {
	return ParseResponse(ctx, c, src, opts...)
}
