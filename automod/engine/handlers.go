package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/modbot-dev/modbot/automod/policy"
)

const (
	DefaultTimeoutMinutes = 30
	// platform ceiling for a member timeout (28 days)
	MaxTimeoutMinutes     = 28 * 24 * 60
	DefaultEscalateLabel  = "human_mods"
	FallbackAlertChannel  = "appeals"
)

var parenArg = regexp.MustCompile(`\(([^)]*)\)`)

// Text inside the first pair of parentheses, trimmed; empty if none.
func actionArg(action string) string {
	m := parenArg.FindStringSubmatch(action)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

type DeleteAction struct {
	eng *Engine
}

func (a *DeleteAction) Kind() Kind { return KindDelete }

func (a *DeleteAction) CanHandle(action string) bool {
	return normalizeAction(action) == string(KindDelete)
}

func (a *DeleteAction) Execute(ctx context.Context, req *ActionRequest) (Outcome, error) {
	msg := req.Message
	logger := a.eng.Logger.With("message", msg.ID, "channel", msg.ChannelID)
	err := a.eng.Platform.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	switch {
	case err == nil:
		logger.Info("deleted message", "reason", req.reason())
		return succeeded(), nil
	case errors.Is(err, ErrNotFound):
		logger.Warn("message already deleted")
		return succeeded(), nil
	case errors.Is(err, ErrForbidden):
		logger.Error("not permitted to delete message")
	default:
		logger.Error("failed to delete message", "err", err)
	}
	return failed(ReasonDeleteFailed), nil
}

type WarnAction struct {
	eng *Engine
}

func (a *WarnAction) Kind() Kind { return KindWarn }

func (a *WarnAction) CanHandle(action string) bool {
	return normalizeAction(action) == string(KindWarn)
}

func (a *WarnAction) Execute(ctx context.Context, req *ActionRequest) (Outcome, error) {
	msg := req.Message
	eng := a.eng
	logger := eng.Logger.With("user", msg.AuthorID)
	reason := req.reason()

	dm := eng.warningText(ctx, req, reason)
	err := eng.Platform.SendDirectMessage(ctx, msg.AuthorID, dm)
	if err == nil {
		logger.Info("warning sent by direct message")
		return succeeded(), nil
	}
	logger.Warn("warning direct message failed", "err", err)

	notice := fmt.Sprintf("%s this message violated server rules. (%s)", UserMention(msg.AuthorID), reason)
	if err := eng.Platform.SendChannelMessage(ctx, msg.ChannelID, notice); err != nil {
		logger.Error("warning channel notice failed", "err", err, "channel", msg.ChannelID)
		return failed(ReasonWarnNotifyFailed), nil
	}
	return succeeded(), nil
}

// Direct-message body for a warning. Warning numbering and the next threshold only appear when the message runs inside the pipeline.
func (eng *Engine) warningText(ctx context.Context, req *ActionRequest, reason string) string {
	msg := req.Message
	lines := []string{}
	if msg.GuildID != "" {
		lines = append(lines, fmt.Sprintf("You received a moderation warning in '%s'.", orDefault(msg.GuildName, "?")))
	} else {
		lines = append(lines, "You received a moderation warning.")
	}
	lines = append(lines, "Reason: "+reason)

	ectx := req.Escalation
	if ectx != nil && eng.Policy != nil {
		pre, err := eng.Actions.CountRecent(ctx, msg.AuthorID, policy.BaseWarn, ectx.WindowMinutes)
		if err != nil {
			eng.Logger.Debug("warning count failed", "err", err)
		} else {
			n := pre + 1
			lines = append(lines, fmt.Sprintf("This is warning #%d in the last %d minutes.", n, ectx.WindowMinutes))
			if next, ok := eng.Policy.Escalation.NextThreshold(policy.BaseWarn, n); ok {
				lines = append(lines, fmt.Sprintf("Next action at warning #%d: %s", next.Count, next.FollowUp))
			}
		}
		if name := eng.Policy.Appeals.Channel; name != "" && msg.GuildID != "" {
			ch, err := eng.Platform.FindTextChannel(ctx, msg.GuildID, name)
			if err == nil && ch != nil {
				lines = append(lines, fmt.Sprintf("Appeal in #%s if you believe this is in error.", ch.Name))
			}
		}
	}
	lines = append(lines, "Excerpt: "+truncate(msg.Content, 240))
	return strings.Join(lines, "\n")
}

type TimeoutAction struct {
	eng *Engine
}

func (a *TimeoutAction) Kind() Kind { return KindTimeout }

func (a *TimeoutAction) CanHandle(action string) bool {
	return strings.HasPrefix(normalizeAction(action), string(KindTimeout))
}

// Minutes from "timeout_member(N)"; DefaultTimeoutMinutes when absent or not a positive integer, capped at MaxTimeoutMinutes.
func TimeoutMinutes(action string) int {
	arg := actionArg(action)
	if arg == "" {
		return DefaultTimeoutMinutes
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return DefaultTimeoutMinutes
	}
	return clampTimeoutMinutes(n)
}

func clampTimeoutMinutes(n int) int {
	switch {
	case n <= 0:
		return DefaultTimeoutMinutes
	case n > MaxTimeoutMinutes:
		return MaxTimeoutMinutes
	}
	return n
}

func (a *TimeoutAction) Execute(ctx context.Context, req *ActionRequest) (Outcome, error) {
	msg := req.Message
	eng := a.eng
	logger := eng.Logger.With("user", msg.AuthorID, "guild", msg.GuildID)

	selfID := eng.Platform.SelfID()
	if msg.AuthorID == msg.GuildOwnerID || (selfID != "" && msg.AuthorID == selfID) {
		logger.Info("timeout skipped for protected member", "owner", msg.GuildOwnerID, "self", selfID)
		return failed(ReasonSkipProtected), nil
	}

	minutes := TimeoutMinutes(req.Action)
	until := eng.now().Add(time.Duration(minutes) * time.Minute)
	if err := eng.Platform.TimeoutMember(ctx, msg.GuildID, msg.AuthorID, until, req.reason()); err != nil {
		logger.Error("timeout failed", "err", err, "minutes", minutes)
		return failed(ReasonTimeoutFailed), nil
	}
	logger.Info("member timed out", "minutes", minutes, "until", until.Format(time.RFC3339))
	return succeeded(), nil
}

type EscalateAction struct {
	eng *Engine
}

func (a *EscalateAction) Kind() Kind { return KindEscalate }

func (a *EscalateAction) CanHandle(action string) bool {
	act := normalizeAction(action)
	return strings.HasPrefix(act, "escalate(") && strings.HasSuffix(act, ")")
}

// Label from "escalate(label)"; DefaultEscalateLabel when empty.
func EscalateLabel(action string) string {
	return orDefault(actionArg(action), DefaultEscalateLabel)
}

func (a *EscalateAction) Execute(ctx context.Context, req *ActionRequest) (Outcome, error) {
	msg := req.Message
	eng := a.eng
	label := EscalateLabel(req.Action)
	logger := eng.Logger.With("label", label, "user", msg.AuthorID)

	if msg.GuildID == "" {
		logger.Warn("escalation without guild")
		return failed(ReasonNoGuild), nil
	}
	ch, roleMention := eng.resolveEscalationTarget(ctx, msg.GuildID)
	if ch == nil {
		logger.Error("no escalation channel")
		return failed(ReasonNoChannel), nil
	}

	author := orDefault(msg.AuthorName, msg.AuthorID)
	notice := fmt.Sprintf("%s[ESCALATION:%s] user=%s (id=%s) | %s | excerpt=\"%s\"", roleMention, label, author, msg.AuthorID, req.reason(), truncate(msg.Content, 180))
	if err := eng.Platform.SendChannelMessage(ctx, ch.ID, notice); err != nil {
		logger.Error("escalation send failed", "err", err, "channel", ch.ID)
		return failed(ReasonEscalationSendFailed), nil
	}
	logger.Info("escalation sent", "channel", ch.ID)

	if eng.Notifier != nil {
		if err := eng.Notifier.SendEscalation(ctx, msg, label, req.reason()); err != nil {
			logger.Warn("escalation notifier failed", "err", err)
		}
	}
	return succeeded(), nil
}

// Configured alert channel, then the fallback channel name. The role mention (with trailing space) is empty when no alert role is configured or found.
func (eng *Engine) resolveEscalationTarget(ctx context.Context, guildID string) (*Channel, string) {
	var ch *Channel
	for _, name := range []string{eng.Config.AlertChannelName, orDefault(eng.Config.FallbackChannel, FallbackAlertChannel)} {
		if name == "" {
			continue
		}
		found, err := eng.Platform.FindTextChannel(ctx, guildID, name)
		if err != nil {
			eng.Logger.Warn("channel lookup failed", "err", err, "channel", name)
			continue
		}
		if found != nil {
			ch = found
			break
		}
	}
	mention := ""
	if eng.Config.AlertRoleName != "" {
		role, err := eng.Platform.FindRole(ctx, guildID, eng.Config.AlertRoleName)
		if err != nil {
			eng.Logger.Warn("role lookup failed", "err", err, "role", eng.Config.AlertRoleName)
		} else if role != nil {
			mention = RoleMention(role.ID) + " "
		}
	}
	return ch, mention
}
