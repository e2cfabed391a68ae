package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitbot/internal/cache"
	"fitbot/internal/services"
)

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestValidateCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"5 0 * * *", false},
		{"*/15 * * * *", false},
		{"0 0 * * * *", true},
		{"not a cron", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCron(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestJobScheduler(t *testing.T) {
	scheduler, err := NewJobScheduler()
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	defer scheduler.Stop()

	job := &countingJob{}
	if err := scheduler.Register("nightly", "bad schedule", job); err == nil {
		t.Error("Expected invalid schedule to be rejected")
	}
	if err := scheduler.Register("nightly", "5 0 * * *", job); err != nil {
		t.Fatalf("Failed to register job: %v", err)
	}
	if err := scheduler.Register("nightly", "5 0 * * *", job); err == nil {
		t.Error("Expected duplicate name to be rejected")
	}

	if err := scheduler.RunNow("nightly"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if job.runs != 1 {
		t.Errorf("Expected 1 run, got %d", job.runs)
	}
	if err := scheduler.RunNow("missing"); err == nil {
		t.Error("Expected error for unknown job")
	}

	status := scheduler.GetStatus()
	if got, ok := status["nightly"]; !ok || got.Schedule != "5 0 * * *" {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestJobScheduler_RunNowPropagatesError(t *testing.T) {
	scheduler, err := NewJobScheduler()
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	defer scheduler.Stop()

	boom := errors.New("boom")
	if err := scheduler.Register("failing", "0 3 * * *", &countingJob{err: boom}); err != nil {
		t.Fatalf("Failed to register job: %v", err)
	}
	if err := scheduler.RunNow("failing"); !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
}

type staticWarmer struct {
	base, fitness string
}

func (w staticWarmer) StaticBaseContext(context.Context) string { return w.base }
func (w staticWarmer) FitnessKnowledge(context.Context) string  { return w.fitness }

func TestCacheRolloverJob(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)
	backend := cache.NewMemoryBackend(time.Minute)
	tiered := cache.New(backend)

	yesterdayKey := cache.DailyKey(services.CacheKeyStaffStatsPrefix, now.AddDate(0, 0, -1))
	todayKey := cache.DailyKey(services.CacheKeyStaffStatsPrefix, now)
	backend.Set(ctx, yesterdayKey, "old stats", time.Hour)
	backend.Set(ctx, todayKey, "new stats", time.Hour)
	backend.Set(ctx, services.CacheKeyStaticBase, "stale base", time.Hour)

	assembler := services.NewContextAssembler(tiered, nil, "Test Gym", func() time.Time { return now })
	job := NewCacheRolloverJob(tiered, assembler, func() time.Time { return now })
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, ok, _ := backend.Get(ctx, yesterdayKey); ok {
		t.Error("Expected yesterday's staff stats to be removed")
	}
	if _, ok, _ := backend.Get(ctx, todayKey); !ok {
		t.Error("Expected today's staff stats to survive")
	}
	base, ok, _ := backend.Get(ctx, services.CacheKeyStaticBase)
	if !ok || base == "stale base" {
		t.Errorf("Expected static base to be re-warmed, got %q", base)
	}
	if _, ok, _ := backend.Get(ctx, services.CacheKeyFitnessKnowledge); !ok {
		t.Error("Expected fitness knowledge to be warmed")
	}
}

func TestCacheRolloverJob_WarmFailure(t *testing.T) {
	tiered := cache.New(cache.NewMemoryBackend(time.Minute))
	job := NewCacheRolloverJob(tiered, staticWarmer{base: "", fitness: "x"}, nil)
	if err := job.Run(context.Background()); err == nil {
		t.Error("Expected error when static context cannot be warmed")
	}
}
