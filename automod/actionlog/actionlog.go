package actionlog

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("not found")

// Append-only log of executed action attempts. The only source of truth for escalation counting.
//
// Count methods only consider records with status "success" created within the window.
type ActionLog interface {
	LogAction(ctx context.Context, e Entry) (uint, error)
	CountRecent(ctx context.Context, targetID, action string, windowMinutes int) (int, error)
	CountRecentLike(ctx context.Context, targetID, actionPrefix string, windowMinutes int) (int, error)
}

type HistoryQuery struct {
	TargetID string
	// defaults to 20
	Limit  int
	Offset int
	// zero or negative means unbounded
	WindowMinutes int
	// exact action names and action prefixes, OR-ed together
	Actions      []string
	LikePrefixes []string
}

// Read-side queries over the action log, used by the admin API and appeals.
type History interface {
	FetchActions(ctx context.Context, q HistoryQuery) ([]ActionRecord, error)
	CountActions(ctx context.Context, targetID string, windowMinutes int) (int, error)
	AggregateCounts(ctx context.Context, windowMinutes int) (map[string]int, error)
	// Most recent successful action against the target; nil if none.
	LastAction(ctx context.Context, targetID string, windowMinutes int) (*ActionRecord, error)
}

type Appeals interface {
	// Returns nil if the user has no open appeal.
	OpenAppealForUser(ctx context.Context, userID string) (*Appeal, error)
	CreateAppeal(ctx context.Context, userID, reason string, actionLogID *uint) (uint, error)
	ListAppeals(ctx context.Context, status string, userID string, limit int) ([]AppealView, error)
	// Returns ErrNotFound if no appeal has that ID.
	GetAppeal(ctx context.Context, id uint) (*AppealView, error)
	// Returns false if the appeal does not exist or was already decided.
	DecideAppeal(ctx context.Context, id uint, moderatorID, decision, resolution string) (bool, error)
	PurgeDecidedAppeals(ctx context.Context, retentionDays int) (int64, error)
}

type Store interface {
	ActionLog
	History
	Appeals
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
