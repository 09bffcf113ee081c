package objects

import (
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/xmlstream"
)

// Report is either a REPORT entry of the report list or, when fetched, an
// ASSET_DATA_REPORT document merged onto the caller's report stub.
type Report struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Type         string       `json:"type"`
	UserLogin    string       `json:"user_login,omitempty"`
	Launched     time.Time    `json:"launch_datetime"`
	OutputFormat string       `json:"output_format,omitempty"`
	Size         string       `json:"size,omitempty"`
	State        string       `json:"state,omitempty"`
	Expires      time.Time    `json:"expiration_datetime"`
	Generated    time.Time    `json:"generation_datetime"`
	Hosts        []ReportHost `json:"hosts,omitempty"`
}

// ReportHost is a HOST entry inside an asset data report.
type ReportHost struct {
	IP             string       `json:"ip"`
	TrackingMethod string       `json:"tracking_method,omitempty"`
	DNS            string       `json:"dns,omitempty"`
	NetBIOS        string       `json:"netbios,omitempty"`
	OS             string       `json:"os,omitempty"`
	Vulns          []ReportVuln `json:"vulns,omitempty"`
}

// ReportVuln is a VULN_INFO entry of a report host.
type ReportVuln struct {
	QID       int64     `json:"qid"`
	Type      string    `json:"type"`
	Status    string    `json:"status,omitempty"`
	Port      int64     `json:"port,omitempty"`
	FirstSeen time.Time `json:"first_found"`
	LastSeen  time.Time `json:"last_found"`
}

// NewReport builds a Report from a REPORT list entry.
func NewReport(el *xmlstream.Element, _ *Context) Object {
	return &Report{
		ID:           parseInt(el.ChildText("ID")),
		Title:        el.ChildText("TITLE"),
		Type:         el.ChildText("TYPE"),
		UserLogin:    el.ChildText("USER_LOGIN"),
		Launched:     parseTime(el.ChildText("LAUNCH_DATETIME")),
		OutputFormat: el.ChildText("OUTPUT_FORMAT"),
		Size:         el.ChildText("SIZE"),
		State:        el.PathText("STATUS", "STATE"),
		Expires:      parseTime(el.ChildText("EXPIRATION_DATETIME")),
	}
}

// NewAssetDataReport builds a Report from an ASSET_DATA_REPORT document.
// Header fields known to the caller's stub are kept; the stub itself is
// not modified.
func NewAssetDataReport(el *xmlstream.Element, rc *Context) Object {
	r := &Report{}
	if rc != nil && rc.Report != nil {
		*r = *rc.Report
		r.Hosts = nil
	}
	if r.Type == "" {
		r.Type = "Scan"
	}
	r.Generated = parseTime(el.PathText("HEADER", "GENERATION_DATETIME"))

	for _, h := range el.Path("HOST_LIST").ChildrenNamed("HOST") {
		rh := ReportHost{
			IP:             h.ChildText("IP"),
			TrackingMethod: h.ChildText("TRACKING_METHOD"),
			DNS:            h.ChildText("DNS"),
			NetBIOS:        h.ChildText("NETBIOS"),
			OS:             h.ChildText("OPERATING_SYSTEM"),
		}
		for _, v := range h.Path("VULN_INFO_LIST").ChildrenNamed("VULN_INFO") {
			rh.Vulns = append(rh.Vulns, ReportVuln{
				QID:       parseInt(v.ChildText("QID")),
				Type:      v.ChildText("TYPE"),
				Status:    v.ChildText("VULN_STATUS"),
				Port:      parseInt(v.ChildText("PORT")),
				FirstSeen: parseTime(v.ChildText("FIRST_FOUND")),
				LastSeen:  parseTime(v.ChildText("LAST_FOUND")),
			})
		}
		r.Hosts = append(r.Hosts, rh)
	}
	return r
}

// Kind implements Object.
func (r *Report) Kind() Kind { return KindData }

// Tag implements Object.
func (r *Report) Tag() string { return "REPORT" }

// Key implements Keyed.
func (r *Report) Key() string { return formatID(r.ID) }
