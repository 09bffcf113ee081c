package objects

import (
	"strings"

	"github.com/Sternrassler/qualys-api-client/pkg/xmlstream"
)

// Constructor builds an Object from a matched element. Constructors never
// fail: missing substructure yields zero values.
type Constructor func(el *xmlstream.Element, rc *Context) Object

// TagMap maps an upper-case local element name to its constructor.
type TagMap map[string]Constructor

// defaultTags is the process-wide default. It is never handed out directly.
var defaultTags = TagMap{
	"HOST":              NewHost,
	"ASSET_GROUP":       NewAssetGroup,
	"SCAN":              NewScan,
	"VULN":              NewKBVuln,
	"APPLIANCE":         NewAppliance,
	"REPORT":            NewReport,
	"ASSET_DATA_REPORT": NewAssetDataReport,
	"WARNING":           NewWarning,
	"SIMPLE_RETURN":     NewSimpleReturn,
}

// Per-endpoint maps. HOST is reused by the host list and detection APIs
// with different shapes, so each surface passes its own map.
var (
	hostListTags = TagMap{
		"HOST":          NewHost,
		"WARNING":       NewWarning,
		"SIMPLE_RETURN": NewSimpleReturn,
	}

	hostDetectionTags = TagMap{
		"HOST":          NewDetectionHost,
		"WARNING":       NewWarning,
		"SIMPLE_RETURN": NewSimpleReturn,
	}

	assetGroupTags = TagMap{
		"ASSET_GROUP":   NewAssetGroup,
		"WARNING":       NewWarning,
		"SIMPLE_RETURN": NewSimpleReturn,
	}

	knowledgeBaseTags = TagMap{
		"VULN":          NewKBVuln,
		"WARNING":       NewWarning,
		"SIMPLE_RETURN": NewSimpleReturn,
	}

	scanTags = TagMap{
		"SCAN":          NewScan,
		"WARNING":       NewWarning,
		"SIMPLE_RETURN": NewSimpleReturn,
	}

	applianceTags = TagMap{
		"APPLIANCE":     NewAppliance,
		"WARNING":       NewWarning,
		"SIMPLE_RETURN": NewSimpleReturn,
	}

	reportTags = TagMap{
		"REPORT":            NewReport,
		"ASSET_DATA_REPORT": NewAssetDataReport,
		"SIMPLE_RETURN":     NewSimpleReturn,
	}
)

// HostListTags returns the map for the host list API.
func HostListTags() TagMap { return hostListTags.Clone() }

// HostDetectionTags returns the map for the host detection API.
func HostDetectionTags() TagMap { return hostDetectionTags.Clone() }

// AssetGroupTags returns the map for the asset group API.
func AssetGroupTags() TagMap { return assetGroupTags.Clone() }

// KnowledgeBaseTags returns the map for the knowledge base API.
func KnowledgeBaseTags() TagMap { return knowledgeBaseTags.Clone() }

// ScanTags returns the map for the scan and schedule APIs.
func ScanTags() TagMap { return scanTags.Clone() }

// ApplianceTags returns the map for the scanner appliance API.
func ApplianceTags() TagMap { return applianceTags.Clone() }

// ReportTags returns the map for report listing and fetching.
func ReportTags() TagMap { return reportTags.Clone() }

// DefaultTagMap returns a copy of the default tag map.
func DefaultTagMap() TagMap {
	return defaultTags.Clone()
}

// Clone returns a copy of m with normalized keys.
func (m TagMap) Clone() TagMap {
	out := make(TagMap, len(m))
	for tag, ctor := range m {
		out[strings.ToUpper(tag)] = ctor
	}
	return out
}

// Lookup returns the constructor for tag, normalizing case.
func (m TagMap) Lookup(tag string) (Constructor, bool) {
	ctor, ok := m[strings.ToUpper(tag)]
	return ctor, ok
}

// Merge returns a new map. With replace the result holds only override;
// otherwise override entries are layered onto base. Neither input is modified.
func Merge(base, override TagMap, replace bool) TagMap {
	if replace {
		return override.Clone()
	}
	out := base.Clone()
	for tag, ctor := range override {
		out[strings.ToUpper(tag)] = ctor
	}
	return out
}
