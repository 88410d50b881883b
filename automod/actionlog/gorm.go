package actionlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Action log and appeals on a SQL database (sqlite or postgres). Every write commits immediately, so counts read back what was just written.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&ActionRecord{}, &Appeal{})
}

func (s *GormStore) cutoff(windowMinutes int) time.Time {
	return s.now().Add(-time.Duration(windowMinutes) * time.Minute)
}

func (s *GormStore) LogAction(ctx context.Context, e Entry) (uint, error) {
	rec, err := e.record(s.now())
	if err != nil {
		return 0, fmt.Errorf("encoding action evidence: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("persisting action record: %w", err)
	}
	return rec.ID, nil
}

func (s *GormStore) CountRecent(ctx context.Context, targetID, action string, windowMinutes int) (int, error) {
	tx := s.db.WithContext(ctx).Model(&ActionRecord{}).
		Where("target_id = ? AND action = ? AND status = ?", targetID, action, StatusSuccess)
	return s.countWindow(tx, windowMinutes)
}

func (s *GormStore) CountRecentLike(ctx context.Context, targetID, actionPrefix string, windowMinutes int) (int, error) {
	tx := s.db.WithContext(ctx).Model(&ActionRecord{}).
		Where(`target_id = ? AND action LIKE ? ESCAPE '\' AND status = ?`, targetID, escapeLike(actionPrefix)+"%", StatusSuccess)
	return s.countWindow(tx, windowMinutes)
}

// zero or negative window means unbounded
func (s *GormStore) countWindow(tx *gorm.DB, windowMinutes int) (int, error) {
	if windowMinutes > 0 {
		tx = tx.Where("created_at >= ?", s.cutoff(windowMinutes))
	}
	var n int64
	err := tx.Count(&n).Error
	return int(n), err
}

func (s *GormStore) historyScope(q HistoryQuery) *gorm.DB {
	tx := s.db.Model(&ActionRecord{}).Where("target_id = ?", q.TargetID)
	if q.WindowMinutes > 0 {
		tx = tx.Where("created_at >= ?", s.cutoff(q.WindowMinutes))
	}
	if len(q.Actions) > 0 || len(q.LikePrefixes) > 0 {
		or := s.db.Where("1 = 0")
		if len(q.Actions) > 0 {
			or = or.Or("action IN ?", q.Actions)
		}
		for _, p := range q.LikePrefixes {
			or = or.Or(`action LIKE ? ESCAPE '\'`, escapeLike(p)+"%")
		}
		tx = tx.Where(or)
	}
	return tx
}

func (s *GormStore) FetchActions(ctx context.Context, q HistoryQuery) ([]ActionRecord, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	var out []ActionRecord
	err := s.historyScope(q).WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(q.Limit).Offset(max(q.Offset, 0)).
		Find(&out).Error
	return out, err
}

func (s *GormStore) CountActions(ctx context.Context, targetID string, windowMinutes int) (int, error) {
	var n int64
	err := s.historyScope(HistoryQuery{TargetID: targetID, WindowMinutes: windowMinutes}).WithContext(ctx).Count(&n).Error
	return int(n), err
}

func (s *GormStore) AggregateCounts(ctx context.Context, windowMinutes int) (map[string]int, error) {
	type row struct {
		Action string
		Total  int
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&ActionRecord{}).
		Select("action, COUNT(*) AS total").
		Where("created_at >= ? AND status = ?", s.cutoff(windowMinutes), StatusSuccess).
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Action] = r.Total
	}
	return out, nil
}

func (s *GormStore) LastAction(ctx context.Context, targetID string, windowMinutes int) (*ActionRecord, error) {
	tx := s.db.WithContext(ctx).Where("target_id = ? AND status = ?", targetID, StatusSuccess)
	if windowMinutes > 0 {
		tx = tx.Where("created_at >= ?", s.cutoff(windowMinutes))
	}
	var rec ActionRecord
	err := tx.Order("created_at DESC").Order("id DESC").Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) OpenAppealForUser(ctx context.Context, userID string) (*Appeal, error) {
	var a Appeal
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, AppealOpen).
		Order("submitted_at DESC").
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) CreateAppeal(ctx context.Context, userID, reason string, actionLogID *uint) (uint, error) {
	a := Appeal{
		SubmittedAt: s.now(),
		UserID:      userID,
		ActionLogID: actionLogID,
		Reason:      reason,
		Status:      AppealOpen,
	}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return 0, fmt.Errorf("persisting appeal: %w", err)
	}
	return a.ID, nil
}

func (s *GormStore) appealViews(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("appeals AS a").
		Select("a.*, al.action AS linked_action, al.reason AS linked_action_reason, al.created_at AS linked_action_at").
		Joins("LEFT JOIN action_log AS al ON al.id = a.action_log_id")
}

// status may be "open", "decided", or "all" (or empty, same as "all")
func (s *GormStore) ListAppeals(ctx context.Context, status string, userID string, limit int) ([]AppealView, error) {
	if limit <= 0 {
		limit = 20
	}
	tx := s.appealViews(ctx)
	if status != "" && status != "all" {
		tx = tx.Where("a.status = ?", status)
	}
	if userID != "" {
		tx = tx.Where("a.user_id = ?", userID)
	}
	var out []AppealView
	err := tx.Order("a.submitted_at DESC").Limit(limit).Scan(&out).Error
	return out, err
}

func (s *GormStore) GetAppeal(ctx context.Context, id uint) (*AppealView, error) {
	var out []AppealView
	if err := s.appealViews(ctx).Where("a.id = ?", id).Limit(1).Scan(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *GormStore) DecideAppeal(ctx context.Context, id uint, moderatorID, decision, resolution string) (bool, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&Appeal{}).
		Where("id = ? AND status = ?", id, AppealOpen).
		Updates(map[string]any{
			"status":       AppealDecided,
			"decision":     decision,
			"moderator_id": moderatorID,
			"resolution":   resolution,
			"decided_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) PurgeDecidedAppeals(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	res := s.db.WithContext(ctx).
		Where("status = ? AND decided_at IS NOT NULL AND decided_at < ?", AppealDecided, cutoff).
		Delete(&Appeal{})
	return res.RowsAffected, res.Error
}
