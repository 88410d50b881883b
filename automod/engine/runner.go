package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modbot-dev/modbot/automod/actionlog"
)

// Executes batches of action strings against a Registry. Every outcome is recorded through the EscalationContext; nothing propagates to the caller.
type Runner struct {
	Registry *Registry
	Logger   *slog.Logger
}

type Result struct {
	Action string `json:"action"`
	Kind   Kind   `json:"kind,omitempty"`
	Outcome
}

func NewRunner(reg *Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Registry: reg, Logger: logger}
}

// Runs each action in order. Follow-ups discovered while recording are left on ectx for the caller; Run does not recurse.
func (r *Runner) Run(ctx context.Context, msg *Message, actions []string, toxicity float64, ectx *EscalationContext) []Result {
	results := make([]Result, 0, len(actions))
	for _, original := range actions {
		act := strings.TrimSpace(original)
		res := Result{Action: act}
		handler := r.Registry.Find(act)
		if handler == nil {
			r.Logger.Warn("unknown action", "action", act)
			res.Outcome = failed(ReasonUnknownAction)
		} else {
			res.Kind = handler.Kind()
			res.Outcome = r.execute(ctx, handler, &ActionRequest{
				Message:    msg,
				Action:     act,
				Toxicity:   toxicity,
				Escalation: ectx,
			})
		}
		actionsExecuted.WithLabelValues(string(res.Kind), outcomeStatus(res.Outcome)).Inc()
		if ectx != nil {
			ectx.Record(ctx, act, msg.AuthorID, statusOf(res.Outcome), res.FailureReason)
		}
		results = append(results, res)
	}
	return results
}

// Invokes one handler, converting errors and panics into an "exception" failure.
func (r *Runner) execute(ctx context.Context, handler Action, req *ActionRequest) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("action execution exception", "err", rec, "action", req.Action)
			out = failed(ReasonException)
		}
	}()
	out, err := handler.Execute(ctx, req)
	if err != nil {
		r.Logger.Error("action execution failed", "err", err, "action", req.Action)
		return failed(ReasonException)
	}
	if !out.Success && out.FailureReason == "" {
		out.FailureReason = "unspecified"
	}
	return out
}

func statusOf(o Outcome) actionlog.Status {
	if o.Success {
		return actionlog.StatusSuccess
	}
	return actionlog.StatusFailure
}

func outcomeStatus(o Outcome) string {
	return string(statusOf(o))
}

func toxicityReason(toxicity float64) string {
	return fmt.Sprintf("toxicity=%.2f", toxicity)
}
