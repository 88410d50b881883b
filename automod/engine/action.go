package engine

import (
	"context"
	"strings"
)

type Kind string

const (
	KindDelete      Kind = "delete_message"
	KindWarn        Kind = "warn_user"
	KindTimeout     Kind = "timeout_member"
	KindEscalate    Kind = "escalate"
	KindAskDecision Kind = "ask_llm"
)

// Failure reasons recorded on ActionRecords.
const (
	ReasonUnknownAction        = "unknown_action"
	ReasonException            = "exception"
	ReasonSkipProtected        = "skip_protected"
	ReasonTimeoutFailed        = "timeout_failed"
	ReasonNoGuild              = "no_guild"
	ReasonNoChannel            = "no_channel"
	ReasonEscalationSendFailed = "escalation_send_failed"
	ReasonWarnNotifyFailed     = "warn_notify_failed"
	ReasonDeleteFailed         = "delete_failed"
	ReasonAskFailed            = "ask_llm_failed"
	ReasonQuotaExceeded        = "quota_exceeded"
)

// One moderation action handler. The set of implementations is closed: delete, warn, timeout, escalate and ask-decision.
type Action interface {
	Kind() Kind
	CanHandle(action string) bool
	// Returned errors are converted by the Runner into a failure with reason "exception".
	Execute(ctx context.Context, req *ActionRequest) (Outcome, error)
}

type ActionRequest struct {
	Message *Message
	// trimmed action string, possibly parameterized ("timeout_member(30)")
	Action   string
	Toxicity float64
	// overrides the default "toxicity=0.00" reason
	Reason string
	// nil when running outside the message pipeline
	Escalation *EscalationContext
}

func (r *ActionRequest) reason() string {
	if r.Reason != "" {
		return r.Reason
	}
	return toxicityReason(r.Toxicity)
}

type Outcome struct {
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func succeeded() Outcome {
	return Outcome{Success: true}
}

func failed(reason string) Outcome {
	return Outcome{FailureReason: reason}
}

// Ordered, immutable handler table. The first handler whose CanHandle matches wins.
type Registry struct {
	actions []Action
}

func NewRegistry(actions ...Action) *Registry {
	return &Registry{actions: append([]Action{}, actions...)}
}

// Standard registration order; more specific matchers come first.
func DefaultRegistry(eng *Engine) *Registry {
	return NewRegistry(
		&TimeoutAction{eng: eng},
		&EscalateAction{eng: eng},
		&AskDecisionAction{eng: eng},
		&DeleteAction{eng: eng},
		&WarnAction{eng: eng},
	)
}

// Returns nil if no handler matches.
func (r *Registry) Find(action string) Action {
	act := strings.TrimSpace(action)
	for _, a := range r.actions {
		if a.CanHandle(act) {
			return a
		}
	}
	return nil
}

func (r *Registry) Actions() []Action {
	return append([]Action{}, r.actions...)
}
