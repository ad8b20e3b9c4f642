package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_queue_depth",
			Help: "Number of notifications waiting for a worker",
		},
	)

	dispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatched_total",
			Help: "Total number of notifications handed to a sender",
		},
		[]string{"channel", "result"},
	)

	droppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dropped_total",
			Help: "Total number of notifications dropped before delivery",
		},
		[]string{"channel", "reason"},
	)
)
