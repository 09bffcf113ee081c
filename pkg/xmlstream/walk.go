package xmlstream

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// ParseError reports malformed XML in a response stream.
type ParseError struct {
	// Offset is the input byte offset at which the decoder failed.
	Offset int64
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("xml parse error at offset %d: %v", e.Offset, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// MatchFunc reports whether an element with the given upper-case local name
// should be handed to the callback.
type MatchFunc func(tag string) bool

// frame is an element under construction.
type frame struct {
	el      *Element
	text    strings.Builder
	matched bool
}

// Walk incrementally decodes r and calls fn with every element whose
// normalized tag is accepted by match, on that element's end event.
//
// The context is checked once per end event. When it is done Walk returns
// nil immediately without reading the rest of the stream; callers that need
// to distinguish cancellation inspect ctx.Err().
//
// After fn returns the element is detached from its parent, so matched
// subtrees are released as the document is consumed. An element nested in
// another matched element stays attached so the outer one sees its whole
// subtree. An empty stream is not an error.
func Walk(ctx context.Context, r io.Reader, match MatchFunc, fn func(*Element) error) error {
	return walk(ctx, r, match, fn, true)
}

func walk(ctx context.Context, r io.Reader, match MatchFunc, fn func(*Element) error, release bool) error {
	if r == nil {
		return errors.New("xmlstream: nil reader")
	}

	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	var (
		stack []*frame
		open  int // matched frames on the stack
	)

	for {
		tok, err := d.Token()
		if err == io.EOF {
			if len(stack) > 0 {
				return &ParseError{Offset: d.InputOffset(), Err: io.ErrUnexpectedEOF}
			}
			return nil
		}
		if err != nil {
			return &ParseError{Offset: d.InputOffset(), Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local, Attrs: t.Copy().Attr}
			if n := len(stack); n > 0 {
				parent := stack[n-1].el
				el.parent = parent
				parent.Children = append(parent.Children, el)
			}
			f := &frame{el: el, matched: match(el.Tag())}
			if f.matched {
				open++
			}
			stack = append(stack, f)

		case xml.CharData:
			if n := len(stack); n > 0 {
				stack[n-1].text.Write(t)
			}

		case xml.EndElement:
			n := len(stack)
			if n == 0 {
				return &ParseError{Offset: d.InputOffset(), Err: fmt.Errorf("unexpected end element %s", t.Name.Local)}
			}
			top := stack[n-1]
			stack = stack[:n-1]
			top.el.Text = top.text.String()
			if top.matched {
				open--
			}

			if ctx.Err() != nil {
				return nil
			}

			if top.matched {
				if err := fn(top.el); err != nil {
					return err
				}
				if release && open == 0 {
					top.el.detach()
				}
			}
		}
	}
}

// Parse reads a complete document and returns its root element.
// Intended for small payloads such as single-object fixtures.
func Parse(r io.Reader) (*Element, error) {
	var root *Element
	err := walk(context.Background(), r, func(string) bool { return true }, func(el *Element) error {
		if el.parent == nil {
			root = el
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, &ParseError{Err: io.ErrUnexpectedEOF}
	}
	return root, nil
}
