package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metabias_http_requests_total",
		Help: "Total HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metabias_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"route"})

	fitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metabias_fits_total",
		Help: "Total fit requests by bias model and outcome",
	}, []string{"bias", "outcome"})

	drawsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metabias_density_draws_total",
		Help: "Total draws served by the sample endpoint",
	}, []string{"family"})
)

func observeRequest(route, method string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
