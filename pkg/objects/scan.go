package objects

import (
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/xmlstream"
)

// Scan is a SCAN element from the scan list (/api/2.0/fo/scan/) or the
// scheduled scan list (/api/2.0/fo/schedule/scan/).
type Scan struct {
	Ref           string    `json:"ref"`
	ID            int64     `json:"id,omitempty"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	UserLogin     string    `json:"user_login"`
	Launched      time.Time `json:"launch_datetime"`
	Duration      string    `json:"duration,omitempty"`
	Processed     bool      `json:"processed"`
	State         string    `json:"state,omitempty"`
	Target        string    `json:"target"`
	OptionProfile string    `json:"option_profile,omitempty"`
	AssetGroups   []string  `json:"asset_groups,omitempty"`
	Active        bool      `json:"active"`
}

// NewScan builds a Scan.
func NewScan(el *xmlstream.Element, _ *Context) Object {
	return &Scan{
		Ref:           el.ChildText("REF"),
		ID:            parseInt(el.ChildText("ID")),
		Type:          el.ChildText("TYPE"),
		Title:         el.ChildText("TITLE"),
		UserLogin:     el.ChildText("USER_LOGIN"),
		Launched:      parseTime(el.ChildText("LAUNCH_DATETIME")),
		Duration:      el.ChildText("DURATION"),
		Processed:     parseBool(el.ChildText("PROCESSED")),
		State:         el.PathText("STATUS", "STATE"),
		Target:        el.ChildText("TARGET"),
		OptionProfile: el.PathText("OPTION_PROFILE", "TITLE"),
		AssetGroups:   el.PathTexts("ASSET_GROUP_TITLE_LIST", "ASSET_GROUP_TITLE"),
		Active:        parseBool(el.ChildText("ACTIVE")),
	}
}

// Kind implements Object.
func (s *Scan) Kind() Kind { return KindData }

// Tag implements Object.
func (s *Scan) Tag() string { return "SCAN" }

// Key implements Keyed. Launched scans are keyed by reference, scheduled
// scans by id.
func (s *Scan) Key() string {
	if s.Ref != "" {
		return s.Ref
	}
	return formatID(s.ID)
}

// KBVuln is a VULN element from the knowledge base API
// (/api/2.0/fo/knowledge_base/vuln/).
type KBVuln struct {
	QID           int64     `json:"qid"`
	VulnType      string    `json:"vuln_type"`
	Severity      int64     `json:"severity"`
	Title         string    `json:"title"`
	Category      string    `json:"category,omitempty"`
	Patchable     bool      `json:"patchable"`
	Published     time.Time `json:"published"`
	LastModified  time.Time `json:"last_service_modification"`
	CVEs          []string  `json:"cves,omitempty"`
	Diagnosis     string    `json:"diagnosis,omitempty"`
	Consequence   string    `json:"consequence,omitempty"`
	Solution      string    `json:"solution,omitempty"`
	PCIFlag       bool      `json:"pci_flag"`
	DiscoveryAuth []string  `json:"discovery_auth_types,omitempty"`
}

// NewKBVuln builds a KBVuln.
func NewKBVuln(el *xmlstream.Element, _ *Context) Object {
	v := &KBVuln{
		QID:           parseInt(el.ChildText("QID")),
		VulnType:      el.ChildText("VULN_TYPE"),
		Severity:      parseInt(el.ChildText("SEVERITY_LEVEL")),
		Title:         el.ChildText("TITLE"),
		Category:      el.ChildText("CATEGORY"),
		Patchable:     parseBool(el.ChildText("PATCHABLE")),
		Published:     parseTime(el.ChildText("PUBLISHED_DATETIME")),
		LastModified:  parseTime(el.ChildText("LAST_SERVICE_MODIFICATION_DATETIME")),
		Diagnosis:     el.ChildText("DIAGNOSIS"),
		Consequence:   el.ChildText("CONSEQUENCE"),
		Solution:      el.ChildText("SOLUTION"),
		PCIFlag:       parseBool(el.ChildText("PCI_FLAG")),
		DiscoveryAuth: el.PathTexts("DISCOVERY", "AUTH_TYPE_LIST", "AUTH_TYPE"),
	}
	for _, cve := range el.Path("CVE_LIST").ChildrenNamed("CVE") {
		if id := cve.ChildText("ID"); id != "" {
			v.CVEs = append(v.CVEs, id)
		}
	}
	return v
}

// Kind implements Object.
func (v *KBVuln) Kind() Kind { return KindData }

// Tag implements Object.
func (v *KBVuln) Tag() string { return "VULN" }

// Key implements Keyed.
func (v *KBVuln) Key() string { return formatID(v.QID) }
