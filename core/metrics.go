package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moderation_transitions_total",
		Help: "Number of moderation transitions by object type and target status.",
	},
	[]string{"type", "status"},
)
