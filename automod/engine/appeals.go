package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modbot-dev/modbot/automod/actionlog"
)

var (
	ErrAppealsUnavailable = errors.New("appeals storage not configured")
	ErrModeratorAppeal    = errors.New("moderators cannot submit appeals")
	ErrAppealOpen         = errors.New("user already has an open appeal")
	ErrAppealNotFound     = errors.New("appeal not found or already decided")
	ErrInvalidDecision    = errors.New("decision must be uphold, overturn or modify")
	ErrMissingReason      = errors.New("appeal reason required")
)

// actions older than this are not linked to new appeals
const appealLinkWindow = 7 * 24 * 60

type AppealRequest struct {
	GuildID     string `json:"guild_id"`
	UserID      string `json:"user_id"`
	Reason      string `json:"reason"`
	IsModerator bool   `json:"-"`
}

// Opens an appeal for a user, linked to their most recent action within the last week, and notifies the appeals channel.
func (eng *Engine) SubmitAppeal(ctx context.Context, req AppealRequest) (*actionlog.AppealView, error) {
	if eng.Appeals == nil {
		return nil, ErrAppealsUnavailable
	}
	if req.IsModerator {
		appealSubmissions.WithLabelValues("denied").Inc()
		return nil, ErrModeratorAppeal
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrMissingReason
	}
	existing, err := eng.Appeals.OpenAppealForUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("checking open appeals: %w", err)
	}
	if existing != nil {
		appealSubmissions.WithLabelValues("duplicate").Inc()
		return nil, fmt.Errorf("%w (#%d)", ErrAppealOpen, existing.ID)
	}

	var linked *uint
	if eng.History != nil {
		last, err := eng.History.LastAction(ctx, req.UserID, appealLinkWindow)
		if err != nil {
			eng.Logger.Warn("appeal action lookup failed", "err", err, "user", req.UserID)
		} else if last != nil {
			linked = &last.ID
		}
	}

	id, err := eng.Appeals.CreateAppeal(ctx, req.UserID, truncate(reason, 500), linked)
	if err != nil {
		return nil, fmt.Errorf("creating appeal: %w", err)
	}
	appealSubmissions.WithLabelValues("created").Inc()
	eng.Logger.Info("appeal submitted", "appeal", id, "user", req.UserID, "linked_action", linked)

	if req.GuildID != "" && eng.Policy != nil && eng.Policy.Appeals.Channel != "" {
		eng.notifyAppealsChannel(ctx, req.GuildID, fmt.Sprintf("[Appeal #%d] from %s referencing action %s: %s",
			id, UserMention(req.UserID), linkedLabel(linked), truncate(reason, 180)))
	}
	return eng.Appeals.GetAppeal(ctx, id)
}

func linkedLabel(id *uint) string {
	if id == nil {
		return "n/a"
	}
	return fmt.Sprint(*id)
}

func (eng *Engine) notifyAppealsChannel(ctx context.Context, guildID, text string) {
	ch, err := eng.Platform.FindTextChannel(ctx, guildID, eng.Policy.Appeals.Channel)
	if err != nil || ch == nil {
		eng.Logger.Warn("appeals channel not found", "err", err, "channel", eng.Policy.Appeals.Channel)
		return
	}
	if err := eng.Platform.SendChannelMessage(ctx, ch.ID, text); err != nil {
		eng.Logger.Warn("appeals channel notify failed", "err", err)
	}
}

type AppealDecision struct {
	ModeratorID string `json:"moderator_id"`
	Decision    string `json:"decision"`
	Resolution  string `json:"resolution"`
}

// Marks an open appeal decided and DMs the user. Returns whether the user was notified.
func (eng *Engine) DecideAppeal(ctx context.Context, id uint, d AppealDecision) (bool, error) {
	if eng.Appeals == nil {
		return false, ErrAppealsUnavailable
	}
	dec := strings.ToLower(strings.TrimSpace(d.Decision))
	switch dec {
	case "uphold", "overturn", "modify":
	default:
		return false, ErrInvalidDecision
	}
	resolution := strings.TrimSpace(d.Resolution)
	if resolution == "" || d.ModeratorID == "" {
		return false, fmt.Errorf("moderator and resolution required")
	}
	ok, err := eng.Appeals.DecideAppeal(ctx, id, d.ModeratorID, dec, truncate(resolution, 400))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrAppealNotFound
	}
	eng.purgeAppeals(ctx)

	ap, err := eng.Appeals.GetAppeal(ctx, id)
	if err != nil || ap == nil {
		return false, nil
	}
	text := fmt.Sprintf("Your appeal #%d has been decided: %s.\nResolution: %s", id, dec, truncate(resolution, 380))
	notified := true
	if err := eng.Platform.SendDirectMessage(ctx, ap.UserID, text); err != nil {
		eng.Logger.Warn("appeal decision DM failed", "err", err, "user", ap.UserID)
		notified = false
	}
	eng.Logger.Info("appeal decided", "appeal", id, "moderator", d.ModeratorID, "decision", dec, "notified", notified)
	return notified, nil
}

func (eng *Engine) purgeAppeals(ctx context.Context) {
	if eng.Appeals == nil || eng.Policy == nil || eng.Policy.Appeals.RetentionDays <= 0 {
		return
	}
	n, err := eng.Appeals.PurgeDecidedAppeals(ctx, eng.Policy.Appeals.RetentionDays)
	if err != nil {
		eng.Logger.Warn("appeal retention purge failed", "err", err)
		return
	}
	if n > 0 {
		eng.Logger.Info("purged decided appeals", "count", n, "retention_days", eng.Policy.Appeals.RetentionDays)
	}
}

// Purges decided appeals past retention on every tick until ctx is done.
func (eng *Engine) RunAppealRetention(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	eng.purgeAppeals(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eng.purgeAppeals(ctx)
		}
	}
}
