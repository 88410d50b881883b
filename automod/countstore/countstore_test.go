package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "test1", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "test1", "val1"))
	assert.NoError(cs.Increment(ctx, "test1", "val1"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "test1", "val1", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}
}

func TestHourBucketRollover(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
	cs := NewMemCountStore()
	cs.Now = func() time.Time { return now }

	assert.NoError(cs.Increment(ctx, "calls", "guild"))
	now = now.Add(2 * time.Minute)
	c, err := cs.GetCount(ctx, "calls", "guild", PeriodHour)
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = cs.GetCount(ctx, "calls", "guild", PeriodDay)
	assert.NoError(err)
	assert.Equal(1, c)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	var wg sync.WaitGroup
	fnInc := func(name, val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, name, val))
			time.Sleep(time.Nanosecond)
		}
	}
	wg.Add(4)
	go fnInc("test1", "val1", 10)
	go fnInc("test1", "val1", 10)
	go fnInc("test2", "val2", 6)
	go fnInc("test2", "val2", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "test1", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "test2", "val2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)
}

func TestQuota(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	q := &Quota{Counters: NewMemCountStore(), Name: "decision-calls", Period: PeriodHour, Limit: 2}
	for i, want := range []bool{true, true, false, false} {
		ok, err := q.Allow(ctx, "g1")
		assert.NoError(err)
		assert.Equal(want, ok, "call %d", i)
	}
	ok, err := q.Allow(ctx, "g2")
	assert.NoError(err)
	assert.True(ok)

	var disabled *Quota
	ok, err = disabled.Allow(ctx, "g1")
	assert.NoError(err)
	assert.True(ok)
}
