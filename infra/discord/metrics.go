package discord

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "discord_tracker",
	Name:      "discord_rest_rate_limited_total",
	Help:      "REST calls answered with 429 and retried after the advertised delay.",
})
