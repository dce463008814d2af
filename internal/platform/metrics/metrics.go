package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	IssuesCreated     prometheus.Counter
	IssuesDeleted     prometheus.Counter
	EventsAppended    prometheus.Counter
	ListQueryDuration prometheus.Histogram
	RequestDuration   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		IssuesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracker_issues_created_total",
			Help: "Total number of issues created",
		}),
		IssuesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracker_issues_deleted_total",
			Help: "Total number of issues deleted",
		}),
		EventsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracker_issue_events_appended_total",
			Help: "Total number of issue events appended to the log",
		}),
		ListQueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_list_query_duration_seconds",
			Help:    "Duration of issue list queries",
			Buckets: prometheus.DefBuckets,
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

// IncIssuesCreated increments the issues created counter.
func (m *Metrics) IncIssuesCreated() {
	if m != nil {
		m.IssuesCreated.Inc()
	}
}

// IncIssuesDeleted increments the issues deleted counter.
func (m *Metrics) IncIssuesDeleted() {
	if m != nil {
		m.IssuesDeleted.Inc()
	}
}

// IncEventsAppended increments the events appended counter.
func (m *Metrics) IncEventsAppended() {
	if m != nil {
		m.EventsAppended.Inc()
	}
}

// ObserveRequest records one HTTP request duration.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

// ObserveListQuery records one list query duration.
func (m *Metrics) ObserveListQuery(d time.Duration) {
	if m != nil {
		m.ListQueryDuration.Observe(d.Seconds())
	}
}
