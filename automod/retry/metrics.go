package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_provider_retries",
	Help: "Number of provider call retries",
}, []string{"provider"})

var providerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_provider_errors",
	Help: "Number of provider calls which failed after all retries, by error kind",
}, []string{"provider", "kind"})
