package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "discord_tracker"

var (
	eventsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_received_total",
		Help:      "Raw platform events accepted by the ingestion router.",
	}, []string{"kind"})

	eventsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_skipped_total",
		Help:      "Raw platform events that produced no trackable event.",
	}, []string{"kind", "reason"})

	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "entity_resolutions_total",
		Help:      "Remote fetches performed to complete partial entities.",
	}, []string{"kind", "outcome"})

	dispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "ledger_dispatches_total",
		Help:      "Settled ledger writes by operation and outcome.",
	}, []string{"operation", "outcome"})

	dispatchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "ledger_dispatches_in_flight",
		Help:      "Ledger writes submitted but not yet settled.",
	})
)
