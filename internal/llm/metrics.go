package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm",
		Name:      "calls_total",
		Help:      "Remote LLM call attempts",
	}, []string{"call"})
	failCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm",
		Name:      "failures_total",
		Help:      "Failed remote LLM call attempts",
	}, []string{"call"})
)
