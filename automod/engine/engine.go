package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modbot-dev/modbot/automod/actionlog"
	"github.com/modbot-dev/modbot/automod/cachestore"
	"github.com/modbot-dev/modbot/automod/countstore"
	"github.com/modbot-dev/modbot/automod/decision"
	"github.com/modbot-dev/modbot/automod/policy"
	"github.com/modbot-dev/modbot/automod/toxicity"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("modbot/engine")

const dedupeCacheName = "message-seen"

type Config struct {
	AlertChannelName string
	AlertRoleName    string
	// defaults to "appeals"
	FallbackChannel string
	// role names (case-insensitive) treated as moderators, in addition to the policy's exempt_roles
	ExemptRoleNames []string
}

// Runtime for scoring messages, matching policy, executing actions and tracking escalation.
//
// Policy, Platform, Actions and Scorer are required. The remaining fields are optional.
type Engine struct {
	Logger   *slog.Logger
	Policy   *policy.Policy
	Platform Platform
	Actions  actionlog.ActionLog
	History  actionlog.History
	Appeals  actionlog.Appeals
	Scorer   toxicity.Scorer
	Decider  *decision.Decider
	// drops redelivered messages when set
	Cache    cachestore.CacheStore
	Quota    *countstore.Quota
	Notifier Notifier
	Config   Config
	// defaults to DefaultRegistry
	Runner *Runner

	// overridable for tests
	Now func() time.Time

	runnerOnce sync.Once
}

// Summary of one ProcessMessage call.
type Verdict struct {
	MessageID string   `json:"message_id"`
	TraceID   string   `json:"trace_id"`
	Skipped   string   `json:"skipped,omitempty"`
	Toxicity  float64  `json:"toxicity"`
	Rule      string   `json:"rule,omitempty"`
	Results   []Result `json:"results"`
	FollowUps []Result `json:"follow_ups,omitempty"`
	// follow-ups queued during the second pass, which are not executed
	Dropped []string `json:"dropped,omitempty"`
}

func (eng *Engine) runner() *Runner {
	eng.runnerOnce.Do(func() {
		if eng.Runner == nil {
			eng.Runner = NewRunner(DefaultRegistry(eng), eng.Logger)
		}
	})
	return eng.Runner
}

func (eng *Engine) now() time.Time {
	if eng.Now != nil {
		return eng.Now()
	}
	return time.Now()
}

// Owner, manage-guild permission, or any exempt role.
func (eng *Engine) IsModerator(msg *Message) bool {
	if msg.GuildOwnerID != "" && msg.AuthorID == msg.GuildOwnerID {
		return true
	}
	if msg.AuthorCanManageGuild {
		return true
	}
	for _, role := range msg.AuthorRoles {
		if eng.Policy != nil && eng.Policy.IsExemptRole(role) {
			return true
		}
		for _, name := range eng.Config.ExemptRoleNames {
			if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(role)) {
				return true
			}
		}
	}
	return false
}

func (eng *Engine) NewEscalationContext(msg *Message, tox float64, traceID string) *EscalationContext {
	window := 60
	if eng.Policy != nil && eng.Policy.Escalation.WindowMinutes > 0 {
		window = eng.Policy.Escalation.WindowMinutes
	}
	return &EscalationContext{
		Message:       msg,
		Toxicity:      tox,
		WindowMinutes: window,
		TraceID:       traceID,
		Logger:        eng.Logger.With("message", msg.ID, "trace", traceID),
		eng:           eng,
	}
}

// Moderates one inbound message: score, match, run actions, then run any escalation follow-ups exactly once.
//
// Errors from scoring, providers and handlers never escape; the returned error is only set for an internal panic.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *Message) (verdict *Verdict, err error) {
	traceID := uuid.NewString()
	verdict = &Verdict{MessageID: msg.ID, TraceID: traceID, Results: []Result{}}

	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("modbot message processing exception", "err", r, "message", msg.ID, "guild", msg.GuildID)
			messageErrorCount.Inc()
			err = fmt.Errorf("message processing panic: %v", r)
		}
	}()

	ctx, span := tracer.Start(ctx, "ProcessMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("guild.id", msg.GuildID),
		attribute.String("trace.id", traceID),
	)

	start := eng.now()
	defer func() {
		messageProcessDuration.Observe(time.Since(start).Seconds())
		outcome := "actioned"
		if verdict.Skipped != "" {
			outcome = verdict.Skipped
		}
		messageProcessCount.WithLabelValues(outcome).Inc()
	}()

	logger := eng.Logger.With("message", msg.ID, "guild", msg.GuildID, "author", msg.AuthorID)

	if msg.AuthorBot {
		verdict.Skipped = "bot"
		return verdict, nil
	}
	if eng.Cache != nil && msg.ID != "" {
		seen, derr := cachestore.SeenBefore(ctx, eng.Cache, dedupeCacheName, msg.GuildID+"/"+msg.ID)
		if derr != nil {
			logger.Warn("message dedupe check failed", "err", derr)
		} else if seen {
			logger.Info("dropping redelivered message")
			verdict.Skipped = "duplicate"
			return verdict, nil
		}
	}
	if eng.IsModerator(msg) {
		verdict.Skipped = "exempt"
		return verdict, nil
	}

	tox, serr := eng.Scorer.Score(ctx, msg.Content)
	if serr != nil {
		logger.Error("toxicity scoring failed", "err", serr)
		scorerErrorCount.Inc()
		tox = 0.0
	}
	verdict.Toxicity = tox
	toxicityScores.Observe(tox)
	span.SetAttributes(attribute.Float64("toxicity", tox))

	rule, actions := eng.Policy.Evaluate(tox)
	if rule == nil {
		logger.Debug("no rule matched", "toxicity", round4(tox), "excerpt", truncate(msg.Content, 60))
		verdict.Skipped = "no_match"
		return verdict, nil
	}
	verdict.Rule = rule.Name
	logger.Info("rule matched", "rule", rule.Name, "toxicity", round4(tox), "actions", actions)

	ectx := eng.NewEscalationContext(msg, tox, traceID)
	runner := eng.runner()
	verdict.Results = runner.Run(ctx, msg, actions, tox, ectx)

	// one bounded extra pass; follow-ups queued during it are not executed
	if followups := ectx.TakeFollowUps(); len(followups) > 0 {
		logger.Info("running escalation follow-ups", "count", len(followups), "actions", followups)
		verdict.FollowUps = runner.Run(ctx, msg, followups, tox, ectx)
	}
	if dropped := ectx.TakeFollowUps(); len(dropped) > 0 {
		logger.Warn("escalation follow-ups not executed (depth bound)", "actions", dropped)
		verdict.Dropped = dropped
	}
	return verdict, nil
}

func (eng *Engine) logAction(ctx context.Context, msg *Message, action, targetID, reason string, evidence map[string]any, status actionlog.Status, failureReason string) (uint, error) {
	id, err := eng.Actions.LogAction(ctx, actionlog.Entry{
		GuildID:       msg.GuildID,
		ChannelID:     msg.ChannelID,
		ActorID:       eng.Platform.SelfID(),
		Action:        action,
		TargetID:      targetID,
		Reason:        reason,
		Evidence:      evidence,
		Status:        status,
		FailureReason: failureReason,
	})
	if err != nil {
		actionLogErrorCount.Inc()
		return 0, fmt.Errorf("logging action %q: %w", action, err)
	}
	return id, nil
}
