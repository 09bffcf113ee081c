package importbuf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObjectsTotal counts objects added to buffers by kind
	ObjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qualys_import_objects_total",
			Help: "Total number of parsed objects added to import buffers",
		},
		[]string{"kind"}, // "data", "warning", "status"
	)

	// ConsumerErrors counts failed Consume calls
	ConsumerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qualys_import_consumer_errors_total",
			Help: "Total number of consumer errors during import",
		},
	)

	// Outstanding tracks dispatched objects not yet consumed
	Outstanding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qualys_import_outstanding",
			Help: "Number of dispatched objects awaiting consumption",
		},
	)
)
