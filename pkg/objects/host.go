package objects

import (
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/xmlstream"
)

// Host is a HOST element from the host list API (/api/2.0/fo/asset/host/).
type Host struct {
	ID                 int64     `json:"id"`
	IP                 string    `json:"ip"`
	TrackingMethod     string    `json:"tracking_method"`
	DNS                string    `json:"dns,omitempty"`
	NetBIOS            string    `json:"netbios,omitempty"`
	OS                 string    `json:"os,omitempty"`
	NetworkID          string    `json:"network_id,omitempty"`
	LastVulnScan       time.Time `json:"last_vuln_scan"`
	LastComplianceScan time.Time `json:"last_compliance_scan"`
	Tags               []string  `json:"tags,omitempty"`
}

// NewHost builds a Host. Missing fields are left at their zero value.
func NewHost(el *xmlstream.Element, _ *Context) Object {
	h := &Host{
		ID:                 parseInt(el.ChildText("ID")),
		IP:                 el.ChildText("IP"),
		TrackingMethod:     el.ChildText("TRACKING_METHOD"),
		DNS:                el.ChildText("DNS"),
		NetBIOS:            el.ChildText("NETBIOS"),
		OS:                 el.ChildText("OS"),
		NetworkID:          el.ChildText("NETWORK_ID"),
		LastVulnScan:       parseTime(el.ChildText("LAST_VULN_SCAN_DATETIME")),
		LastComplianceScan: parseTime(el.ChildText("LAST_COMPLIANCE_SCAN_DATETIME")),
	}
	for _, tag := range el.Path("TAGS").ChildrenNamed("TAG") {
		if name := tag.ChildText("NAME"); name != "" {
			h.Tags = append(h.Tags, name)
		}
	}
	return h
}

// Kind implements Object.
func (h *Host) Kind() Kind { return KindData }

// Tag implements Object.
func (h *Host) Tag() string { return "HOST" }

// Key implements Keyed.
func (h *Host) Key() string { return formatID(h.ID) }

// Detection is one DETECTION entry of a host detection record.
type Detection struct {
	QID       int64     `json:"qid"`
	Type      string    `json:"type"`
	Severity  int64     `json:"severity"`
	Port      int64     `json:"port,omitempty"`
	Protocol  string    `json:"protocol,omitempty"`
	Status    string    `json:"status"`
	Results   string    `json:"results,omitempty"`
	FirstSeen time.Time `json:"first_found"`
	LastSeen  time.Time `json:"last_found"`
}

// DetectionHost is a HOST element from the host detection API
// (/api/2.0/fo/asset/host/vm/detection/). It shares the HOST tag with Host
// but carries a DETECTION_LIST.
type DetectionHost struct {
	ID             int64       `json:"id"`
	IP             string      `json:"ip"`
	TrackingMethod string      `json:"tracking_method"`
	DNS            string      `json:"dns,omitempty"`
	OS             string      `json:"os,omitempty"`
	LastScan       time.Time   `json:"last_scan"`
	Detections     []Detection `json:"detections"`
}

// NewDetectionHost builds a DetectionHost.
func NewDetectionHost(el *xmlstream.Element, _ *Context) Object {
	h := &DetectionHost{
		ID:             parseInt(el.ChildText("ID")),
		IP:             el.ChildText("IP"),
		TrackingMethod: el.ChildText("TRACKING_METHOD"),
		DNS:            el.ChildText("DNS"),
		OS:             el.ChildText("OS"),
		LastScan:       parseTime(el.ChildText("LAST_SCAN_DATETIME")),
	}
	for _, d := range el.Path("DETECTION_LIST").ChildrenNamed("DETECTION") {
		h.Detections = append(h.Detections, Detection{
			QID:       parseInt(d.ChildText("QID")),
			Type:      d.ChildText("TYPE"),
			Severity:  parseInt(d.ChildText("SEVERITY")),
			Port:      parseInt(d.ChildText("PORT")),
			Protocol:  d.ChildText("PROTOCOL"),
			Status:    d.ChildText("STATUS"),
			Results:   d.ChildText("RESULTS"),
			FirstSeen: parseTime(d.ChildText("FIRST_FOUND_DATETIME")),
			LastSeen:  parseTime(d.ChildText("LAST_FOUND_DATETIME")),
		})
	}
	return h
}

// Kind implements Object.
func (h *DetectionHost) Kind() Kind { return KindData }

// Tag implements Object.
func (h *DetectionHost) Tag() string { return "HOST" }

// Key implements Keyed.
func (h *DetectionHost) Key() string { return formatID(h.ID) }
