package code

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quad",
		Subsystem: "auth",
		Name:      "codes_issued_total",
		Help:      "One-time login codes issued and delivered.",
	})

	metricCodesVerified = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quad",
		Subsystem: "auth",
		Name:      "codes_verified_total",
		Help:      "One-time login codes successfully verified and consumed.",
	})
)
