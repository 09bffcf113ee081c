// Package pagination drives Qualys list endpoints that truncate their
// output.
//
// Truncated responses end with a WARNING (code 1980) whose URL repeats the
// request with a higher id_min. The driver re-issues the query with that
// cursor until a page carries no usable warning, the result cap is reached,
// or the context is cancelled:
//
//	d := pagination.Driver{
//		Query:  func(ctx context.Context, p url.Values) ([]objects.Object, error) { ... },
//		Config: pagination.DefaultConfig(),
//	}
//	res, err := d.Run(ctx, url.Values{"action": {"list"}})
//
// Pages are not accumulated. Each page's data objects are expected to reach
// a consumer registered on the query (see importbuf.Dispatcher).
package pagination
