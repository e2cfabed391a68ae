package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"fitbot/internal/cache"
	"fitbot/internal/services"
)

// CacheRolloverJobName is the scheduler name of the nightly rollover
const CacheRolloverJobName = "cache_rollover"

// ContextWarmer recomputes the static prompt sections
type ContextWarmer interface {
	StaticBaseContext(ctx context.Context) string
	FitnessKnowledge(ctx context.Context) string
}

// Invalidator drops cache keys
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// CacheRolloverJob drops yesterday's staff stats and refreshes the static context after midnight
type CacheRolloverJob struct {
	cache  Invalidator
	warmer ContextWarmer
	now    func() time.Time
}

// NewCacheRolloverJob creates the rollover job. now defaults to time.Now.
func NewCacheRolloverJob(c Invalidator, warmer ContextWarmer, now func() time.Time) *CacheRolloverJob {
	if now == nil {
		now = time.Now
	}
	return &CacheRolloverJob{cache: c, warmer: warmer, now: now}
}

// Run performs one rollover
func (j *CacheRolloverJob) Run(ctx context.Context) error {
	yesterday := j.now().AddDate(0, 0, -1)

	j.cache.Invalidate(ctx,
		cache.DailyKey(services.CacheKeyStaffStatsPrefix, yesterday),
		services.CacheKeyStaticBase,
		services.CacheKeyFitnessKnowledge,
	)

	if j.warmer.StaticBaseContext(ctx) == "" {
		return fmt.Errorf("failed to re-warm %s", services.CacheKeyStaticBase)
	}
	if j.warmer.FitnessKnowledge(ctx) == "" {
		return fmt.Errorf("failed to re-warm %s", services.CacheKeyFitnessKnowledge)
	}

	log.Printf("🌙 [CACHE] Rolled over context cache for %s", yesterday.Format("2006-01-02"))
	return nil
}
