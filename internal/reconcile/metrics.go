package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var captionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "caption",
	Name:      "ticks_total",
	Help:      "Caption ticks by engine outcome",
}, []string{"action", "reason"})
