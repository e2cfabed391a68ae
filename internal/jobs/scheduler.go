package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work
type Job interface {
	Run(ctx context.Context) error
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron checks a five-field cron expression
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

type registeredJob struct {
	job      Job
	schedule string
	entry    gocron.Job
}

// JobScheduler runs registered jobs on cron schedules in UTC
type JobScheduler struct {
	scheduler gocron.Scheduler
	jobs      map[string]*registeredJob
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler() (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		scheduler: scheduler,
		jobs:      make(map[string]*registeredJob),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Register adds a job under name, fired on the cron expression schedule
func (s *JobScheduler) Register(name, schedule string, job Job) error {
	if err := ValidateCron(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry, err := s.scheduler.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() { s.runJob(name, job) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = &registeredJob{job: job, schedule: schedule, entry: entry}
	log.Printf("✅ [SCHEDULER] Registered job: %s (%s)", name, schedule)
	return nil
}

// Start begins running all registered jobs
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.scheduler.Start()
	log.Printf("🚀 [SCHEDULER] Started job scheduler with %d jobs", len(s.jobs))
}

func (s *JobScheduler) runJob(name string, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	log.Printf("▶️  [SCHEDULER] Running job: %s", name)
	startTime := time.Now()

	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
		return
	}

	log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", name, time.Since(startTime))
}

// Stop cancels running jobs and shuts the scheduler down
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil && wasRunning {
		log.Printf("⚠️  [SCHEDULER] Shutdown error: %v", err)
	}
	s.wg.Wait()
	log.Println("✅ [SCHEDULER] Job scheduler stopped")
}

// RunNow runs a registered job immediately on the caller's goroutine
func (s *JobScheduler) RunNow(name string) error {
	s.mu.Lock()
	registered, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	log.Printf("🚀 [SCHEDULER] Running job '%s' immediately", name)
	return registered.job.Run(s.ctx)
}

// JobStatus represents the status of a job
type JobStatus struct {
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	NextRunTime time.Time `json:"next_run_time"`
}

// GetStatus returns the status of all jobs. NextRunTime is zero until the scheduler starts.
func (s *JobScheduler) GetStatus() map[string]JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[string]JobStatus, len(s.jobs))
	for name, registered := range s.jobs {
		next, _ := registered.entry.NextRun()
		status[name] = JobStatus{
			Name:        name,
			Schedule:    registered.schedule,
			NextRunTime: next,
		}
	}
	return status
}
