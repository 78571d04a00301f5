// Package metric holds the process-wide prometheus collectors served on
// /metrics.
package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcal_feed_loads_total",
		Help: "Feed loads by result (ok, error)",
	}, []string{"result"})

	feedLoadSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventcal_feed_load_seconds",
		Help:    "Time spent fetching and decoding the feed",
		Buckets: prometheus.DefBuckets,
	})

	indexEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventcal_index_events",
		Help: "Events in the most recently built index",
	})

	indexDays = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventcal_index_days",
		Help: "Days with at least one event in the most recently built index",
	})

	alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcal_alerts_total",
		Help: "Alerts raised by kind",
	}, []string{"kind"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcal_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	httpSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventcal_http_request_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// FeedLoad records one load attempt.
func FeedLoad(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	feedLoads.WithLabelValues(result).Inc()
	feedLoadSeconds.Observe(d.Seconds())
}

func IndexBuilt(events, days int) {
	indexEvents.Set(float64(events))
	indexDays.Set(float64(days))
}

func Alert(kind string) {
	alerts.WithLabelValues(kind).Inc()
}

func Request(route string, code int, d time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpSeconds.WithLabelValues(route).Observe(d.Seconds())
}
