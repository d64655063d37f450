// Package scheduler runs periodic maintenance: ledger sweeps, session purges
// and temp poster cleanup.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

type Task struct {
	Name       string
	Every      time.Duration
	Func       TaskFunc
	RunOnStart bool
}

type taskEntry struct {
	task    Task
	job     gocron.Job
	lastRun time.Time
	runs    int
}

type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger
	tasks  map[string]*taskEntry
	mu     sync.RWMutex
}

func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*taskEntry),
	}, nil
}

// Register adds a task repeated every task.Every. Overlapping runs of the
// same task are skipped.
func (s *Scheduler) Register(task Task) error {
	if task.Every <= 0 {
		return fmt.Errorf("task %q: interval must be positive", task.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("task %q already registered", task.Name)
	}

	name := task.Name
	job, err := s.gocron.NewJob(
		gocron.DurationJob(task.Every),
		gocron.NewTask(func() { s.execute(name) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", name, err)
	}
	s.tasks[name] = &taskEntry{task: task, job: job}
	s.logger.Info().Str("name", name).Dur("every", task.Every).Msg("Registered task")
	return nil
}

func (s *Scheduler) execute(name string) {
	s.mu.RLock()
	entry, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return
	}

	start := time.Now()
	err := entry.task.Func(context.Background())

	s.mu.Lock()
	entry.lastRun = start
	entry.runs++
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("name", name).Dur("duration", time.Since(start)).Msg("Task failed")
		return
	}
	s.logger.Debug().Str("name", name).Dur("duration", time.Since(start)).Msg("Task completed")
}

func (s *Scheduler) Start() {
	s.logger.Info().Msg("Starting scheduler")
	s.gocron.Start()

	s.mu.RLock()
	var onStart []string
	for name, entry := range s.tasks {
		if entry.task.RunOnStart {
			onStart = append(onStart, name)
		}
	}
	s.mu.RUnlock()
	for _, name := range onStart {
		go s.execute(name)
	}
}

func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	return s.gocron.Shutdown()
}

// Runs reports how many times a task has completed.
func (s *Scheduler) Runs(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.tasks[name]; ok {
		return entry.runs
	}
	return 0
}
