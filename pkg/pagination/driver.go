package pagination

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/qualys-api-client/pkg/logging"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
)

// State is the driver state.
type State int

const (
	// StateIterating means another page will be requested.
	StateIterating State = iota

	// StateCapped means MaxResults was reached before the server ran out of pages.
	StateCapped

	// StateExhausted means the server signalled no further pages, or the run
	// was cancelled.
	StateExhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCapped:
		return "capped"
	case StateExhausted:
		return "exhausted"
	default:
		return "iterating"
	}
}

// Reason explains why a run stopped.
type Reason string

// Stop reasons.
const (
	ReasonNoWarning           Reason = "no_warning"
	ReasonMalformedCursor     Reason = "malformed_cursor"
	ReasonCursorNotIncreasing Reason = "cursor_not_increasing"
	ReasonCapped              Reason = "capped"
	ReasonCancelled           Reason = "cancelled"
)

// QueryFunc issues one page request and returns its parsed objects.
type QueryFunc func(ctx context.Context, params url.Values) ([]objects.Object, error)

// Config holds driver configuration.
type Config struct {
	// CursorParam is the query parameter carrying the cursor.
	CursorParam string

	// LimitParam is the query parameter carrying the page size.
	LimitParam string

	// PageSize is the per-page limit requested from the server.
	PageSize int

	// MaxResults caps the total number of requested records (0 = unlimited).
	MaxResults int

	// Start is the initial cursor.
	Start int64
}

// DefaultConfig returns the configuration used by the host, detection and
// asset group list APIs.
func DefaultConfig() Config {
	return Config{
		CursorParam: "id_min",
		LimitParam:  "truncation_limit",
		PageSize:    1000,
		MaxResults:  0,
		Start:       1,
	}
}

// Result summarizes a finished run.
type Result struct {
	State  State
	Reason Reason
	Pages  int
	Cursor int64
}

// Driver re-issues Query with an increasing cursor.
type Driver struct {
	Query  QueryFunc
	Config Config
}

// Run iterates until a terminal state. An error is returned only when Query
// fails; it is returned unchanged together with the progress so far.
func (d *Driver) Run(ctx context.Context, params url.Values) (Result, error) {
	cfg := d.config()
	logger := logging.NewLogger("qualys-pagination")

	res := Result{State: StateIterating, Cursor: cfg.Start}

	for res.State == StateIterating {
		// Step 1: cooperative cancellation, once per page
		if ctx.Err() != nil {
			res.stop(StateExhausted, ReasonCancelled)
			break
		}

		// Step 2: limit, shrunk on the final page under a cap
		page := res.Pages + 1
		limit := cfg.PageSize
		if cfg.MaxResults > 0 && cfg.PageSize*page > cfg.MaxResults {
			limit = cfg.MaxResults - cfg.PageSize*(page-1)
		}
		if limit <= 0 {
			res.stop(StateCapped, ReasonCapped)
			break
		}

		// Step 3: one request
		q := cloneValues(params)
		q.Set(cfg.CursorParam, strconv.FormatInt(res.Cursor, 10))
		q.Set(cfg.LimitParam, strconv.Itoa(limit))

		results, err := d.Query(ctx, q)
		res.Pages = page
		PagesTotal.Inc()
		if err != nil {
			logger.Error().
				Err(err).
				Int("page", page).
				Int64("cursor", res.Cursor).
				Msg("Page request failed")
			return res, err
		}

		// A page cut short by cancellation carries no reliable warning
		if ctx.Err() != nil {
			res.stop(StateExhausted, ReasonCancelled)
			break
		}

		// Step 4: continuation cursor from the last usable warning
		next, reason := nextCursor(results, cfg.CursorParam, res.Cursor)
		if reason != "" {
			if reason == ReasonMalformedCursor {
				logger.Warn().
					Int("page", page).
					Int64("cursor", res.Cursor).
					Msg("Malformed pagination cursor in warning, stopping")
			}
			res.stop(StateExhausted, reason)
			break
		}

		logger.Debug().
			Int("page", page).
			Int64("cursor", res.Cursor).
			Int64("next_cursor", next).
			Int("limit", limit).
			Msg("Continuing pagination")
		res.Cursor = next
	}

	logger.Info().
		Str("state", res.State.String()).
		Str("reason", string(res.Reason)).
		Int("pages", res.Pages).
		Msg("Pagination finished")
	return res, nil
}

func (r *Result) stop(state State, reason Reason) {
	r.State = state
	r.Reason = reason
	StopsTotal.WithLabelValues(string(reason)).Inc()
}

func (d *Driver) config() Config {
	cfg := d.Config
	def := DefaultConfig()
	if cfg.CursorParam == "" {
		cfg.CursorParam = def.CursorParam
	}
	if cfg.LimitParam == "" {
		cfg.LimitParam = def.LimitParam
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.Start == 0 {
		cfg.Start = def.Start
	}
	return cfg
}

// nextCursor scans results from the end for a warning with a cursor
// strictly greater than prev. A warning whose cursor cannot be parsed, or
// that carries no query at all, ends the scan. An empty reason means pagination continues with the returned
// cursor.
func nextCursor(results []objects.Object, param string, prev int64) (int64, Reason) {
	reason := ReasonNoWarning
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Kind() != objects.KindWarning {
			continue
		}
		w, ok := results[i].(objects.Continuation)
		if !ok {
			return 0, ReasonMalformedCursor
		}
		raw := w.QueryParams().Get(param)
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, ReasonMalformedCursor
		}
		if cursor > prev {
			return cursor, ""
		}
		reason = ReasonCursorNotIncreasing
	}
	return 0, reason
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// String implements fmt.Stringer for log output.
func (r Result) String() string {
	return fmt.Sprintf("%s (%s) after %d pages, cursor %d", r.State, r.Reason, r.Pages, r.Cursor)
}
