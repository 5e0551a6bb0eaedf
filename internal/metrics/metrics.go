package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	plansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "illustrator",
			Name:      "plans_total",
			Help:      "Illustration planning calls by result (ok, degraded)",
		},
		[]string{"result"},
	)

	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "illustrator",
			Name:      "images_generated_total",
			Help:      "Image generation attempts by kind (cover, paragraph) and result",
		},
		[]string{"kind", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "illustrator",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of external provider requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	rehostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "illustrator",
			Name:      "rehost_urls_total",
			Help:      "Rehosted URLs by result (ok, failed)",
		},
		[]string{"result"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "illustrator",
			Name:      "illustration_runs_total",
			Help:      "Illustration pipeline runs by result",
		},
		[]string{"result"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(plansTotal, imagesTotal, providerLatency, rehostTotal, runsTotal)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncPlan(result string)          { plansTotal.WithLabelValues(result).Inc() }
func IncImage(kind, result string)   { imagesTotal.WithLabelValues(kind, result).Inc() }
func IncRehost(result string, n int) { rehostTotal.WithLabelValues(result).Add(float64(n)) }
func IncRun(result string)           { runsTotal.WithLabelValues(result).Inc() }

func ObserveProvider(provider string, dur time.Duration) {
	providerLatency.WithLabelValues(provider).Observe(dur.Seconds())
}
