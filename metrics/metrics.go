package metrics

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	// mutations by operation and outcome
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itinera_mutations_total",
		Help: "Itinerary item mutations by operation and outcome",
	}, []string{"op", "outcome"})

	// pairs whose duration could not be computed and fell back to 0
	PropagationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itinera_propagation_failures_total",
		Help: "Transport duration lookups that failed during propagation",
	}, []string{"mode"})

	PropagatedItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "itinera_propagated_items_total",
		Help: "Items whose transport duration changed during propagation",
	})

	DurationLookupSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "itinera_duration_lookup_seconds",
		Help:    "Latency of the transport duration capability",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"provider"})

	DurationCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itinera_duration_cache_total",
		Help: "Duration cache lookups by result",
	}, []string{"result"})

	QueueTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itinera_propagation_tasks_total",
		Help: "Async propagation tasks by result",
	}, []string{"result"})
)

// Handler serves the default registry on an httprouter route.
func Handler() httprouter.Handle {
	h := promhttp.Handler()
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}
