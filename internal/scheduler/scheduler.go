package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edvin/fleet/internal/dynconfig"
)

var pollsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cleanup_scheduler_polls_total",
	Help: "Total number of cleanup scheduler poll ticks",
})

// TaskRunner executes every due cleanup task. core.CleanupTaskService
// satisfies this interface.
type TaskRunner interface {
	RunDue(ctx context.Context, now time.Time)
}

// Scheduler drives the recurring cleanup-task poll: one gocron job fires on
// a fixed interval and runs every due task. HTTP requests never wait on it.
type Scheduler struct {
	scheduler gocron.Scheduler
	tasks     TaskRunner
	logger    zerolog.Logger

	// mu guards jobID and interval: ticks run on gocron goroutines while
	// dynamic-config watchers reschedule from request goroutines.
	mu       sync.Mutex
	jobID    string
	interval time.Duration
}

func New(tasks TaskRunner, interval time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: gs,
		tasks:     tasks,
		logger:    logger,
		interval:  interval,
	}, nil
}

// StartupInterval resolves the initial poll cadence, preferring a persisted
// CLEANUP_POLL_INTERVAL entry over the static fallback so a tuned cadence
// survives restarts.
func StartupInterval(ctx context.Context, store *dynconfig.Store, fallback time.Duration) time.Duration {
	seconds := store.GetInt(ctx, dynconfig.KeyCleanupPollInterval, int(fallback/time.Second))
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Start schedules the poll job and begins ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.tick),
		gocron.WithName("cleanup-poll"),
	)
	if err != nil {
		return fmt.Errorf("schedule cleanup poll: %w", err)
	}
	s.jobID = job.ID().String()

	s.scheduler.Start()
	s.logger.Info().Dur("interval", s.interval).Msg("cleanup scheduler started")
	return nil
}

// Stop shuts the scheduler down, letting the current poll iteration finish.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("stopping cleanup scheduler")
	return s.scheduler.Shutdown()
}

// WatchInterval registers a dynamic-config watcher that re-schedules the
// poll job when CLEANUP_POLL_INTERVAL (seconds) changes.
func (s *Scheduler) WatchInterval(store *dynconfig.Store) {
	store.Watch(dynconfig.KeyCleanupPollInterval, func(_ string, _, newValue any) {
		seconds, ok := newValue.(int)
		if !ok || seconds <= 0 {
			s.logger.Warn().Any("value", newValue).Msg("ignoring invalid cleanup poll interval")
			return
		}
		if err := s.setInterval(time.Duration(seconds) * time.Second); err != nil {
			s.logger.Error().Err(err).Msg("reschedule cleanup poll")
		}
	})
}

func (s *Scheduler) setInterval(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.scheduler.Jobs() {
		if job.ID().String() != s.jobID {
			continue
		}
		updated, err := s.scheduler.Update(
			job.ID(),
			gocron.DurationJob(interval),
			gocron.NewTask(s.tick),
			gocron.WithName("cleanup-poll"),
		)
		if err != nil {
			return fmt.Errorf("update cleanup poll job: %w", err)
		}
		s.jobID = updated.ID().String()
		s.interval = interval
		s.logger.Info().Dur("interval", interval).Msg("cleanup poll interval changed")
		return nil
	}
	return fmt.Errorf("cleanup poll job %s not found", s.jobID)
}

func (s *Scheduler) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) tick() {
	pollsTotal.Inc()

	// One tick is bounded so a wedged database cannot pile up iterations.
	ctx, cancel := context.WithTimeout(context.Background(), s.currentInterval())
	defer cancel()

	s.tasks.RunDue(ctx, time.Now())
}
