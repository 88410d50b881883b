package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	Increment(ctx context.Context, name, val string) error
}

func periodBucket(name, val, period string, now time.Time) string {
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		t := now.UTC().Format(time.DateOnly)
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	case PeriodHour:
		t := now.UTC().Format(time.RFC3339)[0:13]
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}

// Circuit breaker over a counter: at most Limit increments per Period bucket.
type Quota struct {
	Counters CountStore
	Name     string
	Period   string
	// zero or negative disables the quota
	Limit int
}

// Consumes one unit of quota for key. Returns false, without incrementing, once the current bucket is full.
func (q *Quota) Allow(ctx context.Context, key string) (bool, error) {
	if q == nil || q.Limit <= 0 || q.Counters == nil {
		return true, nil
	}
	c, err := q.Counters.GetCount(ctx, q.Name, key, q.Period)
	if err != nil {
		return false, err
	}
	if c >= q.Limit {
		return false, nil
	}
	if err := q.Counters.Increment(ctx, q.Name, key); err != nil {
		return false, err
	}
	return true, nil
}
