package assist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	replyCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assist",
		Name:      "reply_requests_total",
		Help:      "Reply requests by trigger and lock result",
	}, []string{"label", "result"})
	staleCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assist",
		Name:      "stale_chunks_total",
		Help:      "Dropped chunks of superseded requests",
	})
	correctCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assist",
		Name:      "segments_total",
		Help:      "Auto corrected segments by result",
	}, []string{"result"})
)
