package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/Sternrassler/qualys-api-client/internal/testutil"
	"github.com/Sternrassler/qualys-api-client/pkg/importbuf"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/Sternrassler/qualys-api-client/pkg/pagination"
	"github.com/Sternrassler/qualys-api-client/pkg/xmlstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records consumed host ids.
type collector struct {
	mu       sync.Mutex
	ids      []int64
	finished int
}

func (c *collector) Consume(_ context.Context, obj objects.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := obj.(*objects.Host); ok {
		c.ids = append(c.ids, h.ID)
	}
	return nil
}

func (c *collector) Finish(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished++
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

func TestWithDefaults(t *testing.T) {
	params := url.Values{"details": {"All"}}
	out := withDefaults(params, hostListDefaults)

	assert.Equal(t, "All", out.Get("details"))
	assert.Equal(t, "list", out.Get("action"))
	assert.Len(t, params, 1, "input must not be modified")
}

func TestHostListQuery_Defaults(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetResponse(EndpointHostList, testutil.NewXMLResponse(testutil.HostListXML(mock.URL(), []int{1, 2}, 3)))

	results, err := NewAPI(c).HostListQuery(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, Only[*objects.Host](results), 2)
	warnings := Only[*objects.Warning](results)
	require.Len(t, warnings, 1)
	assert.Equal(t, "3", warnings[0].QueryParams().Get("id_min"))

	form := mock.LastRequest().Form
	assert.Equal(t, "list", form.Get("action"))
	assert.Equal(t, "Basic", form.Get("details"))
}

func TestHostListQuery_APIError(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetResponse(EndpointHostList, testutil.NewSimpleReturnResponse(http.StatusBadRequest, "1905", "parameter ips has invalid value"))

	_, err := NewAPI(c).HostListQuery(context.Background(), url.Values{"ips": {"not-an-ip"}})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "1905", apiErr.Code)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestHostDetectionQuery(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetResponse(EndpointHostDetection, testutil.NewXMLResponse(`<HOST_LIST_VM_DETECTION_OUTPUT><RESPONSE><HOST_LIST>
<HOST><ID>7</ID><IP>10.0.0.7</IP><DETECTION_LIST><DETECTION><QID>38170</QID><SEVERITY>3</SEVERITY></DETECTION></DETECTION_LIST></HOST>
</HOST_LIST></RESPONSE></HOST_LIST_VM_DETECTION_OUTPUT>`))

	results, err := NewAPI(c).HostDetectionQuery(context.Background(), nil)
	require.NoError(t, err)

	hosts := Only[*objects.DetectionHost](results)
	require.Len(t, hosts, 1)
	require.Len(t, hosts[0].Detections, 1)
	assert.Equal(t, int64(38170), hosts[0].Detections[0].QID)
	assert.Equal(t, "0", mock.LastRequest().Form.Get("echo_request"))
}

func TestHostDetectionQuery_TagMapOverrideKeepsEndpointMap(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetResponse(EndpointHostDetection, testutil.NewXMLResponse(`<HOST_LIST_VM_DETECTION_OUTPUT><RESPONSE><HOST_LIST>
<HOST><ID>7</ID><DETECTION_LIST><DETECTION><QID>38170</QID></DETECTION></DETECTION_LIST></HOST>
</HOST_LIST><WARNING><CODE>1980</CODE><URL>https://qualysapi.qualys.com/api/2.0/fo/asset/host/vm/detection/?action=list&amp;id_min=8</URL></WARNING>
</RESPONSE></HOST_LIST_VM_DETECTION_OUTPUT>`))
	api := NewAPI(c)

	var warnings int
	countWarning := func(el *xmlstream.Element, rc *objects.Context) objects.Object {
		warnings++
		return objects.NewWarning(el, rc)
	}

	results, err := api.HostDetectionQuery(context.Background(), nil,
		WithTagMap(objects.TagMap{"WARNING": countWarning}))
	require.NoError(t, err)
	hosts := Only[*objects.DetectionHost](results)
	require.Len(t, hosts, 1)
	assert.Len(t, hosts[0].Detections, 1)
	assert.Empty(t, Only[*objects.Host](results))
	assert.Equal(t, 1, warnings)

	// Replace drops the endpoint map entirely
	results, err = api.HostDetectionQuery(context.Background(), nil,
		WithTagMapReplace(objects.TagMap{"HOST": objects.NewHost}))
	require.NoError(t, err)
	assert.Len(t, Only[*objects.Host](results), 1)
	assert.Empty(t, Only[*objects.DetectionHost](results))
}

func TestAssetGroupQueries(t *testing.T) {
	c, mock := newTestClient(t, nil)
	doc := `<ASSET_GROUP_LIST_OUTPUT><RESPONSE><ASSET_GROUP_LIST>
<ASSET_GROUP><ID>42</ID><TITLE>DMZ</TITLE></ASSET_GROUP>
</ASSET_GROUP_LIST></RESPONSE></ASSET_GROUP_LIST_OUTPUT>`
	mock.SetResponse(EndpointAssetGroup, testutil.NewXMLResponse(doc))
	mock.SetResponse("/msp/asset_group_list.php", testutil.NewXMLResponse(doc))

	api := NewAPI(c)

	v2, err := api.AssetGroupQuery(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, Only[*objects.AssetGroup](v2), 1)
	assert.Equal(t, "TITLE", mock.LastRequest().Form.Get("show_attributes"))

	v1, err := api.AssetGroupListV1(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "DMZ", Only[*objects.AssetGroup](v1)[0].Title)
	assert.Empty(t, mock.LastRequest().Form.Get("action"))
}

func TestScanAndApplianceQueries(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetResponse(EndpointScan, testutil.NewXMLResponse(`<SCAN_LIST_OUTPUT><RESPONSE><SCAN_LIST>
<SCAN><REF>scan/1.1</REF><TITLE>Weekly</TITLE></SCAN></SCAN_LIST></RESPONSE></SCAN_LIST_OUTPUT>`))
	mock.SetResponse(EndpointScheduledScan, testutil.NewXMLResponse(`<SCHEDULE_SCAN_LIST_OUTPUT><RESPONSE><SCHEDULE_SCAN_LIST>
<SCAN><ID>5</ID><ACTIVE>1</ACTIVE></SCAN></SCHEDULE_SCAN_LIST></RESPONSE></SCHEDULE_SCAN_LIST_OUTPUT>`))
	mock.SetResponse(EndpointAppliance, testutil.NewXMLResponse(`<APPLIANCE_LIST_OUTPUT><RESPONSE><APPLIANCE_LIST>
<APPLIANCE><ID>9</ID><NAME>scanner-a</NAME><STATUS>Online</STATUS></APPLIANCE></APPLIANCE_LIST></RESPONSE></APPLIANCE_LIST_OUTPUT>`))

	api := NewAPI(c)
	ctx := context.Background()

	scans, err := api.ListScans(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "scan/1.1", Only[*objects.Scan](scans)[0].Key())
	assert.Equal(t, "1", mock.LastRequest().Form.Get("show_op"))

	scheduled, err := api.ListScheduledScans(ctx, nil)
	require.NoError(t, err)
	assert.True(t, Only[*objects.Scan](scheduled)[0].Active)

	appliances, err := api.ScannerApplianceQuery(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "scanner-a", Only[*objects.Appliance](appliances)[0].Name)
	assert.Equal(t, "brief", mock.LastRequest().Form.Get("output_mode"))
}

func TestKnowledgeBase(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetResponse(EndpointKnowledgeBase, testutil.NewXMLResponse(kbDoc))

	api := NewAPI(c)

	live, err := api.KnowledgeBaseQuery(context.Background(), url.Values{"ids": {"1-3"}})
	require.NoError(t, err)
	assert.Len(t, Only[*objects.KBVuln](live), 3)
	assert.Equal(t, "1-3", mock.LastRequest().Form.Get("ids"))

	fromFile, err := NewAPI(nil).KnowledgeBaseFromFile(context.Background(), strings.NewReader(kbDoc))
	require.NoError(t, err)
	assert.Len(t, fromFile, 3)
}

func TestReports(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetHandler(EndpointReport, func(w http.ResponseWriter, r *http.Request) {
		switch r.Form.Get("action") {
		case "list":
			w.Header().Set("Content-Type", "text/xml")
			w.Write([]byte(`<REPORT_LIST_OUTPUT><RESPONSE><REPORT_LIST>
<REPORT><ID>99</ID><TITLE>Quarterly</TITLE><TYPE>Scan</TYPE><STATUS><STATE>Finished</STATE></STATUS></REPORT>
</REPORT_LIST></RESPONSE></REPORT_LIST_OUTPUT>`))
		case "fetch":
			w.Header().Set("Content-Type", "text/xml")
			w.Write([]byte(`<ASSET_DATA_REPORT><HOST_LIST><HOST><IP>10.0.0.1</IP></HOST></HOST_LIST></ASSET_DATA_REPORT>`))
		}
	})

	api := NewAPI(c)
	ctx := context.Background()

	list, err := api.ListReports(ctx, nil)
	require.NoError(t, err)
	reports := Only[*objects.Report](list)
	require.Len(t, reports, 1)
	assert.Equal(t, "Finished", reports[0].State)

	report, err := api.FetchReport(ctx, 0, reports[0])
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "Quarterly", report.Title)
	assert.Len(t, report.Hosts, 1)
	assert.Equal(t, "99", mock.LastRequest().Form.Get("id"))
	assert.Nil(t, reports[0].Hosts, "stub must not be modified")
}

func TestFetchReport_RequiresID(t *testing.T) {
	_, err := NewAPI(nil).FetchReport(context.Background(), 0, nil)
	assert.ErrorIs(t, err, ErrUsage)
}

func TestReportFromFile(t *testing.T) {
	doc := `<ASSET_DATA_REPORT><HOST_LIST><HOST><IP>10.0.0.1</IP></HOST><HOST><IP>10.0.0.2</IP></HOST></HOST_LIST></ASSET_DATA_REPORT>`

	report, err := NewAPI(nil).ReportFromFile(context.Background(), strings.NewReader(doc), &objects.Report{ID: 5, Title: "Saved"})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, int64(5), report.ID)
	assert.Len(t, report.Hosts, 2)
}

func TestReportFromFile_TagMapOverrideKeepsReportMap(t *testing.T) {
	doc := `<ASSET_DATA_REPORT><HOST_LIST><HOST><IP>10.0.0.1</IP></HOST><HOST><IP>10.0.0.2</IP></HOST></HOST_LIST></ASSET_DATA_REPORT>`

	report, err := NewAPI(nil).ReportFromFile(context.Background(), strings.NewReader(doc),
		&objects.Report{ID: 5}, WithTagMap(objects.TagMap{"UNRELATED": objects.NewWarning}))
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Len(t, report.Hosts, 2)
}

func newPagedClient(t *testing.T, total int) (*API, *testutil.MockQualys) {
	t.Helper()
	c, mock := newTestClient(t, nil)
	mock.SetHandler(EndpointHostList, testutil.HostListPager(mock.URL, total))
	return NewAPI(c), mock
}

func TestIterateHostList(t *testing.T) {
	api, mock := newPagedClient(t, 25)
	col := &collector{}

	res, err := api.IterateHostList(context.Background(), nil,
		pagination.Config{PageSize: 10}, WithConsumer(col, 3))
	require.NoError(t, err)

	assert.Equal(t, pagination.StateExhausted, res.State)
	assert.Equal(t, pagination.ReasonNoWarning, res.Reason)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 25, col.count())
	assert.Equal(t, 1, col.finished, "consumer finished once for the whole run")

	reqs := mock.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "1", reqs[0].Form.Get("id_min"))
	assert.Equal(t, "11", reqs[1].Form.Get("id_min"))
	assert.Equal(t, "21", reqs[2].Form.Get("id_min"))
	assert.Equal(t, "Basic", reqs[2].Form.Get("details"))
}

func TestIterateHostList_MaxResults(t *testing.T) {
	api, mock := newPagedClient(t, 100)
	col := &collector{}

	res, err := api.IterateHostList(context.Background(), nil,
		pagination.Config{PageSize: 10, MaxResults: 15}, WithConsumer(col, 0))
	require.NoError(t, err)

	assert.Equal(t, pagination.StateCapped, res.State)
	assert.Equal(t, 15, col.count())
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "5", reqs[1].Form.Get("truncation_limit"))
}

func TestIterateHostList_SeedFromParams(t *testing.T) {
	api, mock := newPagedClient(t, 30)
	col := &collector{}

	_, err := api.IterateHostList(context.Background(),
		url.Values{"id_min": {"21"}, "truncation_limit": {"5"}}, pagination.Config{}, WithConsumer(col, 1))
	require.NoError(t, err)

	assert.Equal(t, 10, col.count())
	assert.Equal(t, "5", mock.Requests()[0].Form.Get("truncation_limit"))

	_, err = api.IterateHostList(context.Background(), url.Values{"id_min": {"abc"}}, pagination.Config{})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestIterateHostList_SharedDispatcher(t *testing.T) {
	api, _ := newPagedClient(t, 12)
	col := &collector{}
	d := importbuf.NewDispatcher(col, 2)

	_, err := api.IterateHostList(context.Background(), nil, pagination.Config{PageSize: 5}, WithDispatcher(d))
	require.NoError(t, err)
	assert.Equal(t, 12, col.count())
	assert.Equal(t, 0, col.finished, "caller owns the dispatcher")

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, col.finished)
}

func TestIterateHostList_PageError(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetSequence(EndpointHostList,
		testutil.NewXMLResponse(testutil.HostListXML(mock.URL(), []int{1, 2}, 3)),
		testutil.NewSimpleReturnResponse(http.StatusBadRequest, "1905", "invalid id_min"),
	)

	res, err := NewAPI(c).IterateHostList(context.Background(), nil, pagination.Config{PageSize: 2},
		WithConsumer(&collector{}, 0))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, pagination.StateIterating, res.State)
}

func TestIterateHostList_ConsumerError(t *testing.T) {
	api, _ := newPagedClient(t, 4)
	boom := errors.New("store closed")
	c := importbuf.ConsumerFunc(func(context.Context, objects.Object) error { return boom })

	_, err := api.IterateHostList(context.Background(), nil, pagination.Config{PageSize: 2}, WithConsumer(c, 2))
	assert.ErrorIs(t, err, boom)
}

func TestIterateAssetGroupsAndDetections(t *testing.T) {
	c, mock := newTestClient(t, nil)
	mock.SetResponse(EndpointAssetGroup, testutil.NewXMLResponse(`<ASSET_GROUP_LIST_OUTPUT><RESPONSE><ASSET_GROUP_LIST>
<ASSET_GROUP><ID>1</ID></ASSET_GROUP></ASSET_GROUP_LIST></RESPONSE></ASSET_GROUP_LIST_OUTPUT>`))
	mock.SetResponse(EndpointHostDetection, testutil.NewXMLResponse(`<HOST_LIST_VM_DETECTION_OUTPUT/>`))

	api := NewAPI(c)

	res, err := api.IterateAssetGroups(context.Background(), nil, pagination.Config{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "1000", mock.LastRequest().Form.Get("truncation_limit"))

	res, err = api.IterateHostDetections(context.Background(), nil, pagination.Config{})
	require.NoError(t, err)
	assert.Equal(t, pagination.ReasonNoWarning, res.Reason)
}
