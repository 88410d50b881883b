package toxicity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var perspectiveAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "modbot_perspective_api_duration_sec",
	Help: "Duration of Perspective toxicity scoring API calls",
})

var perspectiveAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_perspective_api_count",
	Help: "Number of Perspective toxicity scoring API calls, by HTTP status code",
}, []string{"status"})
