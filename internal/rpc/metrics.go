package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codechain_hub_rpc_requests_total",
		Help: "Total number of RPC requests dispatched by the hub, by method and outcome kind.",
	}, []string{"method", "kind"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codechain_hub_rpc_request_duration_seconds",
		Help:    "Latency distribution of RPC dispatches.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method"})
)

func observe(method string, err *Error, start time.Time) {
	kind := "ok"
	if err != nil {
		kind = string(err.Kind)
	}
	requestCounter.WithLabelValues(method, kind).Inc()
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
