package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ws",
		Name:      "clients",
		Help:      "Connected UI clients",
	})
	droppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ws",
		Name:      "dropped_events_total",
		Help:      "Events not delivered to slow clients",
	})
)
