package objects

import (
	"strconv"
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/xmlstream"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// AssetGroup is an ASSET_GROUP element (/api/2.0/fo/asset/group/).
type AssetGroup struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	BusinessImpact string    `json:"business_impact,omitempty"`
	LastUpdate     time.Time `json:"last_update"`
	IPs            []string  `json:"ips,omitempty"`
	IPRanges       []string  `json:"ip_ranges,omitempty"`
	DNSNames       []string  `json:"dns_names,omitempty"`
	Appliances     []string  `json:"appliances,omitempty"`
	NetworkIDs     []string  `json:"network_ids,omitempty"`
}

// NewAssetGroup builds an AssetGroup. Groups without IPs, DNS names or
// appliances yield empty slices rather than errors.
func NewAssetGroup(el *xmlstream.Element, _ *Context) Object {
	ag := &AssetGroup{
		ID:             parseInt(el.ChildText("ID")),
		Title:          el.ChildText("TITLE"),
		BusinessImpact: el.PathText("BUSINESS_IMPACT", "TITLE"),
		LastUpdate:     parseTime(el.ChildText("LAST_UPDATE")),
		IPs:            el.PathTexts("IP_SET", "IP"),
		IPRanges:       el.PathTexts("IP_SET", "IP_RANGE"),
		DNSNames:       el.PathTexts("DNS_LIST", "DNS"),
		NetworkIDs:     el.PathTexts("NETWORK_IDS", "NETWORK_ID"),
	}
	if ag.BusinessImpact == "" {
		ag.BusinessImpact = el.ChildText("BUSINESS_IMPACT")
	}
	for _, a := range el.Path("APPLIANCE_IDS").ChildrenNamed("APPLIANCE_ID") {
		ag.Appliances = append(ag.Appliances, a.TrimmedText())
	}
	// v1 asset_group_list.php shape
	for _, sa := range el.Path("SCANNER_APPLIANCES").ChildrenNamed("SCANNER_APPLIANCE") {
		if name := sa.ChildText("SCANNER_APPLIANCE_NAME"); name != "" {
			ag.Appliances = append(ag.Appliances, name)
		}
	}
	return ag
}

// Kind implements Object.
func (a *AssetGroup) Kind() Kind { return KindData }

// Tag implements Object.
func (a *AssetGroup) Tag() string { return "ASSET_GROUP" }

// Key implements Keyed.
func (a *AssetGroup) Key() string { return formatID(a.ID) }

// Appliance is an APPLIANCE element (/api/2.0/fo/appliance/).
type Appliance struct {
	ID              int64  `json:"id"`
	UUID            string `json:"uuid,omitempty"`
	Name            string `json:"name"`
	NetworkID       string `json:"network_id,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty"`
	RunningScans    int64  `json:"running_scan_count"`
	Status          string `json:"status"`
	ModelNumber     string `json:"model_number,omitempty"`
	Type            string `json:"type,omitempty"`
}

// NewAppliance builds an Appliance.
func NewAppliance(el *xmlstream.Element, _ *Context) Object {
	return &Appliance{
		ID:              parseInt(el.ChildText("ID")),
		UUID:            el.ChildText("UUID"),
		Name:            el.ChildText("NAME"),
		NetworkID:       el.ChildText("NETWORK_ID"),
		SoftwareVersion: el.ChildText("SOFTWARE_VERSION"),
		RunningScans:    parseInt(el.ChildText("RUNNING_SCAN_COUNT")),
		Status:          el.ChildText("STATUS"),
		ModelNumber:     el.ChildText("MODEL_NUMBER"),
		Type:            el.ChildText("TYPE"),
	}
}

// Kind implements Object.
func (a *Appliance) Kind() Kind { return KindData }

// Tag implements Object.
func (a *Appliance) Tag() string { return "APPLIANCE" }

// Key implements Keyed.
func (a *Appliance) Key() string { return formatID(a.ID) }
