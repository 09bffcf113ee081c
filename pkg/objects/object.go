// Package objects defines the typed Qualys domain objects built from XML
// response elements and the tag maps that select a constructor per element.
package objects

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of result variants.
type Kind int

const (
	// KindData is a regular record (host, scan, asset group, ...).
	KindData Kind = iota

	// KindWarning is a server WARNING marker, typically a truncation notice
	// carrying the URL of the next page.
	KindWarning

	// KindStatus is an API outcome (SIMPLE_RETURN).
	KindStatus
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindWarning:
		return "warning"
	case KindStatus:
		return "status"
	default:
		return "data"
	}
}

// Object is any value built from one matched response element.
type Object interface {
	// Kind reports the result variant.
	Kind() Kind

	// Tag returns the upper-case element name the object was built from.
	Tag() string
}

// Keyed is implemented by data objects with a stable identifier.
type Keyed interface {
	Object
	Key() string
}

// Status is implemented by KindStatus objects.
type Status interface {
	Object
	Failed() bool
	StatusCode() string
	StatusText() string
}

// Continuation is implemented by KindWarning objects that can carry the
// query of a follow-up request.
type Continuation interface {
	Object
	QueryParams() url.Values
}

// Context carries optional per-call state for constructors.
type Context struct {
	// Report is a partially populated report header supplied by the caller
	// when fetching a report by id.
	Report *Report
}

// Qualys date formats seen across the v1 and v2 APIs.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime returns the zero time for empty or unrecognized values.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
