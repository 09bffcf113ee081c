// Package xmlstream provides a lightweight element tree built incrementally
// from an XML token stream.
//
// Qualys responses can be hundreds of megabytes (full host detection lists,
// the whole knowledge base), so documents are never materialized as a whole.
// Walk emits each element subtree on its end event and detaches it from the
// parent once the caller has handled it.
//
// All name lookups compare local names case-insensitively, so
// <HOST>, <Host> and <ns:HOST> are the same element for lookup purposes.
package xmlstream

import (
	"encoding/xml"
	"strings"
)

// Element is one parsed XML element with its subtree.
type Element struct {
	// Name is the local name as it appeared in the document (namespace prefix stripped).
	Name string

	// Attrs holds the element attributes.
	Attrs []xml.Attr

	// Text is the concatenated character data directly inside the element.
	Text string

	// Children are the retained child elements in document order.
	Children []*Element

	parent *Element
}

// Tag returns the normalized (upper-case) local name used for tag map lookups.
func (e *Element) Tag() string {
	if e == nil {
		return ""
	}
	return strings.ToUpper(e.Name)
}

// Child returns the first child with the given local name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all children with the given local name.
func (e *Element) ChildrenNamed(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	return out
}

// ChildText returns the trimmed text of the first child with the given name.
// Returns "" when the child does not exist.
func (e *Element) ChildText(name string) string {
	return e.Child(name).TrimmedText()
}

// Path walks nested children by name, e.g. Path("OPTION_PROFILE", "TITLE").
func (e *Element) Path(names ...string) *Element {
	cur := e
	for _, n := range names {
		cur = cur.Child(n)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// PathText returns the trimmed text at the end of a nested path.
func (e *Element) PathText(names ...string) string {
	return e.Path(names...).TrimmedText()
}

// PathTexts returns the non-empty texts of every element named by the last
// path segment beneath the parent path, e.g. PathTexts("IP_SET", "IP").
func (e *Element) PathTexts(names ...string) []string {
	if len(names) == 0 {
		return nil
	}
	parent := e.Path(names[:len(names)-1]...)
	var out []string
	for _, c := range parent.ChildrenNamed(names[len(names)-1]) {
		if t := c.TrimmedText(); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// TrimmedText returns the element text without surrounding whitespace.
func (e *Element) TrimmedText() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text)
}

// Attr returns the value of the named attribute (local name, case-insensitive).
func (e *Element) Attr(name string) string {
	if e == nil {
		return ""
	}
	for _, a := range e.Attrs {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}

// detach removes e from its parent's children.
func (e *Element) detach() {
	p := e.parent
	if p == nil {
		return
	}
	for i := len(p.Children) - 1; i >= 0; i-- {
		if p.Children[i] == e {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	e.parent = nil
}
