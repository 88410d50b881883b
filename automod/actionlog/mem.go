package actionlog

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// In-process action log, for tests and dry runs. Race-safe.
type MemStore struct {
	mu      sync.Mutex
	records []ActionRecord
	// overridable clock, for window tests
	Now func() time.Time
}

var _ ActionLog = (*MemStore)(nil)
var _ History = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		Now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemStore) LogAction(ctx context.Context, e Entry) (uint, error) {
	rec, err := e.record(s.Now())
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uint(len(s.records) + 1)
	s.records = append(s.records, rec)
	return rec.ID, nil
}

// Snapshot of all records, oldest first.
func (s *MemStore) Records() []ActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

func (s *MemStore) count(match func(r *ActionRecord) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.records {
		if match(&s.records[i]) {
			n++
		}
	}
	return n
}

func (s *MemStore) inWindow(r *ActionRecord, windowMinutes int) bool {
	if windowMinutes <= 0 {
		return true
	}
	return !r.CreatedAt.Before(s.Now().Add(-time.Duration(windowMinutes) * time.Minute))
}

func (s *MemStore) CountRecent(ctx context.Context, targetID, action string, windowMinutes int) (int, error) {
	return s.count(func(r *ActionRecord) bool {
		return r.TargetID == targetID && r.Action == action && r.Status == StatusSuccess && s.inWindow(r, windowMinutes)
	}), nil
}

func (s *MemStore) CountRecentLike(ctx context.Context, targetID, actionPrefix string, windowMinutes int) (int, error) {
	return s.count(func(r *ActionRecord) bool {
		return r.TargetID == targetID && strings.HasPrefix(r.Action, actionPrefix) && r.Status == StatusSuccess && s.inWindow(r, windowMinutes)
	}), nil
}

func (q *HistoryQuery) matches(r *ActionRecord) bool {
	if r.TargetID != q.TargetID {
		return false
	}
	if len(q.Actions) == 0 && len(q.LikePrefixes) == 0 {
		return true
	}
	if slices.Contains(q.Actions, r.Action) {
		return true
	}
	for _, p := range q.LikePrefixes {
		if strings.HasPrefix(r.Action, p) {
			return true
		}
	}
	return false
}

func (s *MemStore) FetchActions(ctx context.Context, q HistoryQuery) ([]ActionRecord, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	s.mu.Lock()
	out := []ActionRecord{}
	for i := range s.records {
		r := &s.records[i]
		if q.matches(r) && s.inWindow(r, q.WindowMinutes) {
			out = append(out, *r)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	offset := min(max(q.Offset, 0), len(out))
	out = out[offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemStore) CountActions(ctx context.Context, targetID string, windowMinutes int) (int, error) {
	return s.count(func(r *ActionRecord) bool {
		return r.TargetID == targetID && s.inWindow(r, windowMinutes)
	}), nil
}

func (s *MemStore) AggregateCounts(ctx context.Context, windowMinutes int) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for i := range s.records {
		r := &s.records[i]
		if r.Status == StatusSuccess && s.inWindow(r, windowMinutes) {
			out[r.Action]++
		}
	}
	return out, nil
}

func (s *MemStore) LastAction(ctx context.Context, targetID string, windowMinutes int) (*ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.TargetID == targetID && r.Status == StatusSuccess && s.inWindow(&r, windowMinutes) {
			return &r, nil
		}
	}
	return nil, nil
}
