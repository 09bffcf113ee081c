package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/Sternrassler/qualys-api-client/pkg/objects"
)

// API endpoints. v1 script names are resolved under /msp/ by the client.
const (
	EndpointHostList       = "/api/2.0/fo/asset/host/"
	EndpointHostDetection  = "/api/2.0/fo/asset/host/vm/detection/"
	EndpointAssetGroup     = "/api/2.0/fo/asset/group/"
	EndpointKnowledgeBase  = "/api/2.0/fo/knowledge_base/vuln/"
	EndpointScan           = "/api/2.0/fo/scan/"
	EndpointScheduledScan  = "/api/2.0/fo/schedule/scan/"
	EndpointAppliance      = "/api/2.0/fo/appliance/"
	EndpointReport         = "/api/2.0/fo/report/"
	EndpointAssetGroupList = "asset_group_list.php"
)

// Default parameters per endpoint. Caller values win.
var (
	hostListDefaults      = url.Values{"action": {"list"}, "details": {"Basic"}}
	hostDetectionDefaults = url.Values{"action": {"list"}, "echo_request": {"0"}}
	assetGroupDefaults    = url.Values{"action": {"list"}, "echo_request": {"0"}, "show_attributes": {"TITLE"}}
	knowledgeBaseDefaults = url.Values{"action": {"list"}, "echo_request": {"0"}}
	scanDefaults          = url.Values{"action": {"list"}, "echo_request": {"0"}, "show_op": {"1"}}
	scheduleDefaults      = url.Values{"action": {"list"}, "echo_request": {"0"}}
	applianceDefaults     = url.Values{"action": {"list"}, "echo_request": {"0"}, "output_mode": {"brief"}}
	reportListDefaults    = url.Values{"action": {"list"}}
)

// API wraps a Transport with the typed Qualys calls.
type API struct {
	t Transport
}

// NewAPI returns an API over t. t may be nil when only file based calls
// are used.
func NewAPI(t Transport) *API {
	return &API{t: t}
}

// withDefaults returns a copy of params with missing defaults filled in.
func withDefaults(params, defaults url.Values) url.Values {
	out := make(url.Values, len(params)+len(defaults))
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range defaults {
		if _, ok := out[k]; !ok {
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}

func (a *API) query(ctx context.Context, endpoint string, params, defaults url.Values, tags objects.TagMap, opts []ParseOption) ([]objects.Object, error) {
	src := Source{Endpoint: endpoint, Params: withDefaults(params, defaults)}
	opts = append([]ParseOption{withBaseTags(tags)}, opts...)
	results, err := ParseResponse(ctx, a.t, src, opts...)
	if err != nil {
		return results, fmt.Errorf("%s: %w", endpoint, err)
	}
	return results, nil
}

// HostListQuery lists hosts. A truncated response ends with a WARNING
// carrying the next page URL; see IterateHostList.
func (a *API) HostListQuery(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointHostList, params, hostListDefaults, objects.HostListTags(), opts)
}

// HostDetectionQuery lists hosts with their vulnerability detections.
func (a *API) HostDetectionQuery(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointHostDetection, params, hostDetectionDefaults, objects.HostDetectionTags(), opts)
}

// AssetGroupQuery lists asset groups.
func (a *API) AssetGroupQuery(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointAssetGroup, params, assetGroupDefaults, objects.AssetGroupTags(), opts)
}

// AssetGroupListV1 lists asset groups through the v1 API.
func (a *API) AssetGroupListV1(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointAssetGroupList, params, nil, objects.AssetGroupTags(), opts)
}

// KnowledgeBaseQuery lists knowledge base vulnerabilities.
func (a *API) KnowledgeBaseQuery(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointKnowledgeBase, params, knowledgeBaseDefaults, objects.KnowledgeBaseTags(), opts)
}

// KnowledgeBaseFromFile parses a saved knowledge base response.
func (a *API) KnowledgeBaseFromFile(ctx context.Context, r io.Reader, opts ...ParseOption) ([]objects.Object, error) {
	opts = append([]ParseOption{withBaseTags(objects.KnowledgeBaseTags())}, opts...)
	return ParseResponse(ctx, a.t, Source{Reader: r}, opts...)
}

// ListScans lists launched scans.
func (a *API) ListScans(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointScan, params, scanDefaults, objects.ScanTags(), opts)
}

// ListScheduledScans lists scheduled scans.
func (a *API) ListScheduledScans(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointScheduledScan, params, scheduleDefaults, objects.ScanTags(), opts)
}

// ScannerApplianceQuery lists scanner appliances.
func (a *API) ScannerApplianceQuery(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointAppliance, params, applianceDefaults, objects.ApplianceTags(), opts)
}

// ListReports lists saved reports.
func (a *API) ListReports(ctx context.Context, params url.Values, opts ...ParseOption) ([]objects.Object, error) {
	return a.query(ctx, EndpointReport, params, reportListDefaults, objects.ReportTags(), opts)
}

// FetchReport downloads an XML report. Either id or stub.ID must be set;
// header fields of stub are carried onto the returned report. Returns nil
// when the response held no report.
func (a *API) FetchReport(ctx context.Context, id int64, stub *objects.Report, opts ...ParseOption) (*objects.Report, error) {
	if id == 0 && stub != nil {
		id = stub.ID
	}
	if id == 0 {
		return nil, fmt.Errorf("%w: report id or stub required", ErrUsage)
	}
	if stub == nil {
		stub = &objects.Report{ID: id}
	}

	params := url.Values{"action": {"fetch"}, "id": {strconv.FormatInt(id, 10)}}
	opts = append(opts, WithReport(stub), WithRetain(true))
	results, err := a.query(ctx, EndpointReport, params, nil, objects.ReportTags(), opts)
	if err != nil {
		return nil, err
	}
	return firstReport(results), nil
}

// ReportFromFile parses a saved XML report.
func (a *API) ReportFromFile(ctx context.Context, r io.Reader, stub *objects.Report, opts ...ParseOption) (*objects.Report, error) {
	opts = append([]ParseOption{withBaseTags(objects.ReportTags())}, opts...)
	opts = append(opts, WithReport(stub), WithRetain(true))
	results, err := ParseResponse(ctx, a.t, Source{Reader: r}, opts...)
	if err != nil {
		return nil, err
	}
	return firstReport(results), nil
}

func firstReport(results []objects.Object) *objects.Report {
	if reports := Only[*objects.Report](results); len(reports) > 0 {
		return reports[0]
	}
	return nil
}
