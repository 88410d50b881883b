package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modbot-dev/modbot/automod/actionlog"
	"github.com/modbot-dev/modbot/automod/decision"
)

const (
	EvidenceToolCall = "ask_llm_toolcall"
	EvidenceDecision = "ask_llm_decision"

	defaultToolReason = "MCP Decision"
	quotaName         = "decision-calls"
)

// Defers a borderline message to the decision service (tool calls), falling back to a single completion-provider decision.
type AskDecisionAction struct {
	eng *Engine
}

func (a *AskDecisionAction) Kind() Kind { return KindAskDecision }

func (a *AskDecisionAction) CanHandle(action string) bool {
	return normalizeAction(action) == string(KindAskDecision)
}

func (a *AskDecisionAction) Execute(ctx context.Context, req *ActionRequest) (Outcome, error) {
	eng := a.eng
	msg := req.Message
	if !eng.Decider.Configured() {
		eng.Logger.Warn("ask_llm without a decision service or completion provider")
		return failed(ReasonAskFailed), nil
	}

	ok, err := eng.Quota.Allow(ctx, orDefault(msg.GuildID, "global"))
	if err != nil {
		// counter backend trouble should not block moderation
		eng.Logger.Warn("decision quota check failed", "err", err)
	} else if !ok {
		eng.Logger.Warn("CIRCUIT BREAKER: decision calls", "guild", msg.GuildID)
		return failed(ReasonQuotaExceeded), nil
	}

	if eng.Decider.Service != nil {
		att := eng.Decider.AskTools(ctx, msg.Content, req.Toxicity)
		eng.recordToolCallEvidence(ctx, req, att)
		if att.Err == nil {
			decisionAttempts.WithLabelValues(decision.PathToolCall, "success").Inc()
			for _, tc := range att.ToolCalls {
				eng.applyToolCall(ctx, req, tc)
			}
			return succeeded(), nil
		}
		decisionAttempts.WithLabelValues(decision.PathToolCall, "failure").Inc()
		eng.Logger.Warn("decision service failed, falling back to single decision", "err", att.Err)
	}

	att := eng.Decider.AskLegacy(ctx, msg.Content, req.Toxicity)
	if att.Err != nil {
		decisionAttempts.WithLabelValues(decision.PathLegacy, "failure").Inc()
		eng.Logger.Error("completion provider decision failed", "err", att.Err)
	} else {
		decisionAttempts.WithLabelValues(decision.PathLegacy, "success").Inc()
	}
	eng.recordDecisionEvidence(ctx, req, att)
	eng.applyLegacyDecision(ctx, req, att.Decision.Decision)
	return succeeded(), nil
}

func (eng *Engine) recordToolCallEvidence(ctx context.Context, req *ActionRequest, att *decision.Attempt) {
	evidence := map[string]any{
		"message_id": req.Message.ID,
		"excerpt":    truncate(req.Message.Content, 200),
		"toxicity":   round4(req.Toxicity),
		"normalized": att.ToolCalls,
		"latency_ms": att.Latency.Milliseconds(),
	}
	if att.Raw != "" {
		var raw any
		if err := json.Unmarshal([]byte(att.Raw), &raw); err == nil {
			evidence["decision_response"] = raw
		} else {
			evidence["decision_response"] = truncate(att.Raw, 800)
		}
	}
	status, failure := actionlog.StatusSuccess, ""
	if att.Err != nil {
		evidence["error"] = att.Err.Error()
		status, failure = actionlog.StatusFailure, "decision_service_failed"
	}
	eng.logEvidence(ctx, req, EvidenceToolCall, toxicityReason(req.Toxicity), evidence, status, failure)
}

func (eng *Engine) recordDecisionEvidence(ctx context.Context, req *ActionRequest, att *decision.Attempt) {
	dec := orDefault(att.Decision.Decision, "none")
	evidence := map[string]any{
		"message_id": req.Message.ID,
		"excerpt":    truncate(req.Message.Content, 200),
		"toxicity":   round4(req.Toxicity),
		"llm_raw":    truncate(att.Raw, 800),
		"decision":   dec,
		"latency_ms": att.Latency.Milliseconds(),
	}
	if att.Decision.Confidence != nil {
		evidence["confidence"] = *att.Decision.Confidence
	}
	status, failure := actionlog.StatusSuccess, ""
	if att.Err != nil {
		evidence["error"] = att.Err.Error()
		status, failure = actionlog.StatusFailure, "completion_failed"
	}
	reason := fmt.Sprintf("decision=%s toxicity=%.2f", dec, req.Toxicity)
	eng.logEvidence(ctx, req, EvidenceDecision, reason, evidence, status, failure)
}

func (eng *Engine) logEvidence(ctx context.Context, req *ActionRequest, action, reason string, evidence map[string]any, status actionlog.Status, failure string) {
	if req.Escalation != nil {
		req.Escalation.LogEvidence(ctx, action, reason, evidence, status, failure)
		return
	}
	if _, err := eng.logAction(ctx, req.Message, action, req.Message.AuthorID, reason, evidence, status, failure); err != nil {
		eng.Logger.Error("failed to record decision evidence", "err", err, "action", action)
	}
}

// Applies one normalized tool call through its handler and records it as its own ActionRecord. Unknown tool names are skipped.
func (eng *Engine) applyToolCall(ctx context.Context, req *ActionRequest, tc decision.ToolCall) {
	reason := tc.StringArg("reason", defaultToolReason)
	var action string
	switch tc.Name {
	case decision.ToolDeleteMessage:
		action = string(KindDelete)
	case decision.ToolWarnUser:
		action = string(KindWarn)
	case decision.ToolTimeoutMember:
		minutes := clampTimeoutMinutes(tc.IntArg("minutes", tc.IntArg("duration_minutes", DefaultTimeoutMinutes)))
		action = fmt.Sprintf("%s(%d)", KindTimeout, minutes)
	case decision.ToolEscalate:
		action = fmt.Sprintf("%s(%s)", KindEscalate, tc.StringArg("label", DefaultEscalateLabel))
		reason = tc.StringArg("reason", toxicityReason(req.Toxicity))
	case decision.ToolIgnore:
		eng.Logger.Debug("decision service chose to ignore", "message", req.Message.ID)
		return
	default:
		eng.Logger.Warn("decision service returned unknown tool", "tool", tc.Name)
		return
	}
	eng.applyAction(ctx, req, action, reason)
}

func (eng *Engine) applyLegacyDecision(ctx context.Context, req *ActionRequest, dec string) {
	reason := fmt.Sprintf("toxicity=%.2f (ask_llm)", req.Toxicity)
	switch dec {
	case decision.DecisionWarn:
		eng.applyAction(ctx, req, string(KindWarn), reason)
	case decision.DecisionEscalate:
		eng.applyAction(ctx, req, fmt.Sprintf("%s(%s)", KindEscalate, DefaultEscalateLabel), reason)
	case decision.DecisionDelete:
		eng.applyAction(ctx, req, string(KindDelete), reason)
	}
}

// Runs a handler directly (bypassing the unknown-action path of Runner.Run) and records its outcome.
func (eng *Engine) applyAction(ctx context.Context, parent *ActionRequest, action, reason string) {
	runner := eng.runner()
	handler := runner.Registry.Find(action)
	if handler == nil || handler.Kind() == KindAskDecision {
		eng.Logger.Warn("no handler for decided action", "action", action)
		return
	}
	out := runner.execute(ctx, handler, &ActionRequest{
		Message:    parent.Message,
		Action:     action,
		Toxicity:   parent.Toxicity,
		Reason:     reason,
		Escalation: parent.Escalation,
	})
	actionsExecuted.WithLabelValues(string(handler.Kind()), outcomeStatus(out)).Inc()
	if parent.Escalation != nil {
		parent.Escalation.Record(ctx, action, parent.Message.AuthorID, statusOf(out), out.FailureReason)
		return
	}
	if _, err := eng.logAction(ctx, parent.Message, action, parent.Message.AuthorID, reason, nil, statusOf(out), out.FailureReason); err != nil {
		eng.Logger.Error("failed to record action", "err", err, "action", action)
	}
}
