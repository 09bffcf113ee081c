package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesTotal counts page requests issued by the driver
	PagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qualys_pagination_pages_total",
			Help: "Total number of page requests issued by the pagination driver",
		},
	)

	// StopsTotal counts terminated iterations by reason
	StopsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qualys_pagination_stops_total",
			Help: "Total number of finished paginations by stop reason",
		},
		[]string{"reason"}, // "no_warning", "malformed_cursor", "cursor_not_increasing", "capped", "cancelled"
	)
)
