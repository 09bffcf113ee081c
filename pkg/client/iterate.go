package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/qualys-api-client/pkg/importbuf"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/Sternrassler/qualys-api-client/pkg/pagination"
)

// IterateHostList pages through the host list. Objects are only useful
// through a consumer (WithConsumer or WithDispatcher): pages are not
// accumulated.
func (a *API) IterateHostList(ctx context.Context, params url.Values, cfg pagination.Config, opts ...ParseOption) (pagination.Result, error) {
	return a.iterate(ctx, EndpointHostList, params, hostListDefaults, objects.HostListTags(), cfg, opts)
}

// IterateHostDetections pages through host detections.
func (a *API) IterateHostDetections(ctx context.Context, params url.Values, cfg pagination.Config, opts ...ParseOption) (pagination.Result, error) {
	return a.iterate(ctx, EndpointHostDetection, params, hostDetectionDefaults, objects.HostDetectionTags(), cfg, opts)
}

// IterateAssetGroups pages through asset groups.
func (a *API) IterateAssetGroups(ctx context.Context, params url.Values, cfg pagination.Config, opts ...ParseOption) (pagination.Result, error) {
	return a.iterate(ctx, EndpointAssetGroup, params, assetGroupDefaults, objects.AssetGroupTags(), cfg, opts)
}

func (a *API) iterate(ctx context.Context, endpoint string, params, defaults url.Values, tags objects.TagMap, cfg pagination.Config, opts []ParseOption) (pagination.Result, error) {
	o := newParseOptions(opts)

	cursorParam, limitParam := cfg.CursorParam, cfg.LimitParam
	if cursorParam == "" {
		cursorParam = pagination.DefaultConfig().CursorParam
	}
	if limitParam == "" {
		limitParam = pagination.DefaultConfig().LimitParam
	}

	// Caller supplied cursor and page size seed the driver
	if v := params.Get(cursorParam); v != "" {
		start, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return pagination.Result{}, fmt.Errorf("%w: %s=%q", ErrUsage, cursorParam, v)
		}
		cfg.Start = start
	}
	if v := params.Get(limitParam); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return pagination.Result{}, fmt.Errorf("%w: %s=%q", ErrUsage, limitParam, v)
		}
		cfg.PageSize = size
	}

	// One dispatcher spans all pages so consumer work overlaps requests
	dispatcher := o.dispatcher
	owned := false
	if dispatcher == nil && o.consumer != nil {
		dispatcher = importbuf.NewDispatcher(o.consumer, o.workers)
		owned = true
	}

	pageOpts := append([]ParseOption(nil), opts...)
	if dispatcher != nil {
		pageOpts = append(pageOpts, WithDispatcher(dispatcher), WithBlock(false))
	}

	d := pagination.Driver{
		Config: cfg,
		Query: func(ctx context.Context, p url.Values) ([]objects.Object, error) {
			return a.query(ctx, endpoint, p, defaults, tags, pageOpts)
		},
	}
	res, err := d.Run(ctx, params)

	if dispatcher != nil {
		var cerr error
		if owned {
			cerr = dispatcher.Close(context.WithoutCancel(ctx))
		} else {
			cerr = dispatcher.Wait()
		}
		if cerr != nil && err == nil {
			err = fmt.Errorf("consumer: %w", cerr)
		}
	}
	return res, err
}
