package escalation

import (
	"context"
	"strings"

	"github.com/modbot-dev/modbot/automod/policy"
)

// Read-only view of the action log needed for threshold evaluation. Satisfied by actionlog.ActionLog.
type Counter interface {
	CountRecent(ctx context.Context, targetID, action string, windowMinutes int) (int, error)
	CountRecentLike(ctx context.Context, targetID, actionPrefix string, windowMinutes int) (int, error)
}

// Lowercased action name with any parenthesized parameters removed: "Timeout_Member(30)" becomes "timeout_member".
func BaseRoot(action string) string {
	root, _, _ := strings.Cut(action, "(")
	return strings.ToLower(strings.TrimSpace(root))
}

// Returns the follow-up actions whose threshold count exactly equals the current windowed count of the base action, for a target.
//
// Counting includes the action just recorded, so callers evaluate after persisting. Parameterized timeouts are aggregated by prefix. Idempotent as long as the underlying counts do not change.
func Evaluate(ctx context.Context, counter Counter, esc *policy.EscalationPolicy, targetID, baseAction string, windowMinutes int) ([]string, error) {
	if esc == nil {
		return nil, nil
	}
	root := BaseRoot(baseAction)
	thresholds := esc.For(root)
	if len(thresholds) == 0 {
		return nil, nil
	}

	var current int
	var err error
	if root == policy.BaseTimeout {
		current, err = counter.CountRecentLike(ctx, targetID, root, windowMinutes)
	} else {
		current, err = counter.CountRecent(ctx, targetID, root, windowMinutes)
	}
	if err != nil {
		return nil, err
	}

	out := []string{}
	for _, t := range thresholds {
		if t.Count == current {
			out = append(out, t.FollowUp)
		}
	}
	return out, nil
}
