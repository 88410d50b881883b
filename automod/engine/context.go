package engine

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/modbot-dev/modbot/automod/actionlog"
	"github.com/modbot-dev/modbot/automod/escalation"
)

// Per-message state: score, escalation window, and the follow-up actions that became due while recording outcomes.
type EscalationContext struct {
	Message       *Message
	Toxicity      float64
	WindowMinutes int
	// correlation id carried in every evidence payload for this message
	TraceID string
	Logger  *slog.Logger

	eng     *Engine
	lk      sync.Mutex
	pending []string
}

// Persists an ActionRecord for one action attempt. On success, evaluates escalation thresholds for the base action and queues any follow-ups that just became due.
//
// Write failures are logged and counted, never returned.
func (ec *EscalationContext) Record(ctx context.Context, action, targetID string, status actionlog.Status, failureReason string) {
	evidence := map[string]any{
		"message_id": ec.Message.ID,
		"excerpt":    truncate(ec.Message.Content, 140),
		"trace_id":   ec.TraceID,
	}
	if _, err := ec.eng.logAction(ctx, ec.Message, action, targetID, toxicityReason(ec.Toxicity), evidence, status, failureReason); err != nil {
		ec.Logger.Error("failed to record action", "err", err, "action", action, "status", status)
		return
	}
	if status != actionlog.StatusSuccess || ec.eng.Policy == nil {
		return
	}
	followups, err := escalation.Evaluate(ctx, ec.eng.Actions, &ec.eng.Policy.Escalation, targetID, action, ec.WindowMinutes)
	if err != nil {
		ec.Logger.Error("escalation threshold evaluation failed", "err", err, "action", action)
		return
	}
	for _, f := range followups {
		ec.Logger.Info("escalation threshold met", "base_action", escalation.BaseRoot(action), "follow_action", f, "target", targetID)
		escalationFollowUps.WithLabelValues(escalation.BaseRoot(f)).Inc()
		ec.queue(f)
	}
}

// Adds a follow-up unless the same action is already queued for this message.
func (ec *EscalationContext) queue(action string) {
	ec.lk.Lock()
	defer ec.lk.Unlock()
	key := normalizeAction(action)
	for _, p := range ec.pending {
		if normalizeAction(p) == key {
			return
		}
	}
	ec.pending = append(ec.pending, action)
}

// Writes an audit-only record (decision evidence); no threshold evaluation.
func (ec *EscalationContext) LogEvidence(ctx context.Context, action, reason string, evidence map[string]any, status actionlog.Status, failureReason string) {
	evidence["trace_id"] = ec.TraceID
	if _, err := ec.eng.logAction(ctx, ec.Message, action, ec.Message.AuthorID, reason, evidence, status, failureReason); err != nil {
		ec.Logger.Error("failed to record decision evidence", "err", err, "action", action)
	}
}

// Snapshot of the queued follow-up actions.
func (ec *EscalationContext) PendingFollowUps() []string {
	ec.lk.Lock()
	defer ec.lk.Unlock()
	return append([]string{}, ec.pending...)
}

// Returns the queued follow-ups and clears the queue.
func (ec *EscalationContext) TakeFollowUps() []string {
	ec.lk.Lock()
	defer ec.lk.Unlock()
	out := ec.pending
	ec.pending = nil
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func normalizeAction(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
