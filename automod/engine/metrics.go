package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "modbot_message_duration_sec",
	Help: "Total duration of message moderation processing",
})

var messageProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_messages_processed",
	Help: "Number of messages processed, by outcome",
}, []string{"outcome"})

var messageErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_message_errors",
	Help: "Number of messages which failed processing with an internal exception",
})

var scorerErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_scorer_errors",
	Help: "Number of toxicity scoring failures (scored as 0.0)",
})

var toxicityScores = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "modbot_toxicity_score",
	Help:    "Distribution of message toxicity scores",
	Buckets: prometheus.LinearBuckets(0, 0.1, 11),
})

var actionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_actions_executed",
	Help: "Number of moderation actions executed, by kind and status",
}, []string{"kind", "status"})

var actionLogErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_action_log_errors",
	Help: "Number of failed action log writes",
})

var escalationFollowUps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_escalation_followups",
	Help: "Number of follow-up actions queued by escalation thresholds",
}, []string{"action"})

var decisionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_decision_attempts",
	Help: "Number of borderline decision attempts, by path and status",
}, []string{"path", "status"})

var appealSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_appeal_submissions",
	Help: "Number of appeal submissions, by result",
}, []string{"result"})
