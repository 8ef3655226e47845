package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/i474232898/kp-index-aggregation/internal/metrics"
)

const (
	syncTag        = "kp_sync"
	syncRetryTag   = "kp_sync_retry"
	widgetTag      = "widget_refresh_on_unlock"
	widgetRetryTag = "widget_refresh_retry"

	jobTimeout = 30 * time.Second
)

// Backoff bounds the retries a failed job schedules for itself.
type Backoff struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff retries for up to about an hour.
var DefaultBackoff = Backoff{
	MaxRetries:      5,
	InitialInterval: 30 * time.Second,
	MaxInterval:     30 * time.Minute,
}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.InitialInterval
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.MaxInterval {
			return b.MaxInterval
		}
	}
	return d
}

// Runner is one unit of background work.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs the periodic sync job and the one-shot widget refresh.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sync      Runner
	widget    Runner
	interval  time.Duration
	backoff   Backoff

	chainMu sync.Mutex

	mu       sync.Mutex
	attempts map[string]int
}

// New creates a new Scheduler. A non-positive interval defaults to 3h.
func New(interval time.Duration, syncJob, widgetJob Runner) *Scheduler {
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sync:      syncJob,
		widget:    widgetJob,
		interval:  interval,
		backoff:   DefaultBackoff,
		attempts:  make(map[string]int),
	}
}

// WithBackoff overrides the retry policy.
func (s *Scheduler) WithBackoff(b Backoff) *Scheduler {
	s.backoff = b
	return s
}

// Start schedules the periodic sync and starts the underlying scheduler. The
// first sync runs one interval after start.
func (s *Scheduler) Start() error {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	_, err := s.scheduler.Every(s.interval).
		WaitForSchedule().
		SingletonMode().
		Tag(syncTag).
		Do(s.run, syncTag, syncRetryTag, s.sync)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	slog.Info("scheduler: started", "sync_interval", s.interval)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// TriggerWidgetRefresh enqueues a one-shot widget refresh, replacing any
// pending one.
func (s *Scheduler) TriggerWidgetRefresh() error {
	s.resetAttempts(widgetTag)
	s.removeTag(widgetRetryTag)
	return s.once(widgetTag, widgetTag, 0, widgetRetryTag, s.widget)
}

// once adds a job that fires a single time after delay under tag, replacing
// whatever was scheduled under the same tag. name keys the retry attempts.
func (s *Scheduler) once(tag, name string, delay time.Duration, retryTag string, job Runner) error {
	// gocron's builder chain is shared scheduler state.
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	s.removeTag(tag)

	var err error
	if delay > 0 {
		_, err = s.scheduler.Every(delay).WaitForSchedule().LimitRunsTo(1).Tag(tag).Do(s.run, name, retryTag, job)
	} else {
		_, err = s.scheduler.Every(time.Hour).LimitRunsTo(1).Tag(tag).Do(s.run, name, retryTag, job)
	}
	return err
}

func (s *Scheduler) removeTag(tag string) {
	if err := s.scheduler.RemoveByTag(tag); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		slog.Warn("scheduler: remove job failed", "tag", tag, "error", err)
	}
}

// run executes job and schedules a retry under retryTag when it asks for one.
func (s *Scheduler) run(name, retryTag string, job Runner) {
	runID := uuid.NewString()
	log := slog.With("job", name, "run_id", runID)
	log.Info("scheduler: job started")

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := job.Run(ctx)
	metrics.JobRuns.WithLabelValues(name, result.String()).Inc()

	switch result {
	case Done:
		s.resetAttempts(name)
		log.Info("scheduler: job completed")
	case Failed:
		s.resetAttempts(name)
		log.Error("scheduler: job failed permanently", "error", err)
	case Retry:
		attempt := s.nextAttempt(name)
		if attempt > s.backoff.MaxRetries {
			s.resetAttempts(name)
			log.Error("scheduler: job gave up", "attempts", attempt-1, "error", err)
			return
		}
		delay := s.backoff.delay(attempt)
		log.Warn("scheduler: job will retry", "attempt", attempt, "in", delay, "error", err)
		if err := s.once(retryTag, name, delay, retryTag, job); err != nil {
			log.Error("scheduler: could not schedule retry", "error", err)
		}
	}
}

func (s *Scheduler) nextAttempt(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[name]++
	return s.attempts[name]
}

func (s *Scheduler) resetAttempts(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, name)
}
