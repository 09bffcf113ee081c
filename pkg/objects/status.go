package objects

import (
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/xmlstream"
)

// Warning is a WARNING element. On list endpoints it signals truncation and
// embeds the request URL for the next page.
//
//	<WARNING>
//	  <CODE>1980</CODE>
//	  <TEXT>1000 record limit exceeded. Use URL to get next batch of results.</TEXT>
//	  <URL><![CDATA[https://qualysapi.qualys.com/api/2.0/fo/asset/host/?action=list&id_min=5678]]></URL>
//	</WARNING>
type Warning struct {
	Code string `json:"code"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

var (
	_ Continuation = (*Warning)(nil)
	_ Status       = (*SimpleReturn)(nil)
)

// NewWarning builds a Warning from a WARNING element.
func NewWarning(el *xmlstream.Element, _ *Context) Object {
	return &Warning{
		Code: el.ChildText("CODE"),
		Text: el.ChildText("TEXT"),
		URL:  el.ChildText("URL"),
	}
}

// Kind implements Object.
func (w *Warning) Kind() Kind { return KindWarning }

// Tag implements Object.
func (w *Warning) Tag() string { return "WARNING" }

// QueryParams returns the query parameters of the embedded URL.
// Returns an empty set when the URL is missing or unparsable.
func (w *Warning) QueryParams() url.Values {
	if w.URL == "" {
		return url.Values{}
	}
	u, err := url.Parse(strings.TrimSpace(w.URL))
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

// SimpleReturn is the SIMPLE_RETURN status document returned by write
// actions and by every failed request.
type SimpleReturn struct {
	Datetime time.Time         `json:"datetime"`
	Code     string            `json:"code"`
	Text     string            `json:"text"`
	Items    map[string]string `json:"items,omitempty"`
}

// NewSimpleReturn builds a SimpleReturn from a SIMPLE_RETURN element.
func NewSimpleReturn(el *xmlstream.Element, _ *Context) Object {
	resp := el.Child("RESPONSE")
	if resp == nil {
		resp = el
	}
	sr := &SimpleReturn{
		Datetime: parseTime(resp.ChildText("DATETIME")),
		Code:     resp.ChildText("CODE"),
		Text:     resp.ChildText("TEXT"),
		Items:    map[string]string{},
	}
	for _, item := range resp.Path("ITEM_LIST").ChildrenNamed("ITEM") {
		if key := item.ChildText("KEY"); key != "" {
			sr.Items[key] = item.ChildText("VALUE")
		}
	}
	return sr
}

// Kind implements Object.
func (s *SimpleReturn) Kind() Kind { return KindStatus }

// Tag implements Object.
func (s *SimpleReturn) Tag() string { return "SIMPLE_RETURN" }

// Failed reports whether the server signalled an error. Successful simple
// returns carry no CODE.
func (s *SimpleReturn) Failed() bool {
	return s.Code != "" && s.Code != "0"
}

// StatusCode implements Status.
func (s *SimpleReturn) StatusCode() string { return s.Code }

// StatusText implements Status.
func (s *SimpleReturn) StatusText() string { return s.Text }

// HasItem reports whether the ITEM_LIST contains key.
func (s *SimpleReturn) HasItem(key string) bool {
	_, ok := s.Items[key]
	return ok
}

// ItemValue returns the value for key, or "".
func (s *SimpleReturn) ItemValue(key string) string {
	return s.Items[key]
}
