package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"MarketMood/internal/domain/models"
	drepo "MarketMood/internal/domain/repository"
	applogger "MarketMood/pkg/logger"
)

const (
	JobDailyPipeline    = "daily_pipeline"
	JobRetentionCleanup = "retention_cleanup"
)

// ErrStopped is returned by triggers on a controller that has been stopped.
var ErrStopped = errors.New("scheduler stopped")

// State is the lifecycle state of a Controller.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateRunning       State = "running"
	StateStopped       State = "stopped"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (models.RunReport, error)
}

// Cleaner executes one retention run.
type Cleaner interface {
	Cleanup(ctx context.Context, daysToKeep int) (models.CleanupReport, error)
	DefaultDays() int
}

// Config holds the job schedules.
type Config struct {
	DailyCron   string
	CleanupCron string
	Location    *time.Location
	RunTimeout  time.Duration
}

// JobStatus describes one registered job.
type JobStatus struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   *time.Time `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Running   int        `json:"running"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	State State       `json:"state"`
	Jobs  []JobStatus `json:"jobs"`
}

type job struct {
	id       string
	name     string
	schedule string
	entry    cron.EntryID
	lastRun  time.Time
	lastErr  string
	running  int
}

// Controller owns the cron scheduler and its two jobs. Manual triggers run
// in the background; Stop waits for every in-flight job.
type Controller struct {
	mu      sync.Mutex
	cron    *cron.Cron
	state   State
	jobs    []*job
	runner  Runner
	cleaner Cleaner
	metrics drepo.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
	l       *applogger.Logger
}

// NewController validates the schedules and registers both jobs. The
// returned controller is not started.
func NewController(runner Runner, cleaner Cleaner, metrics drepo.Metrics, cfg Config, l *applogger.Logger) (*Controller, error) {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	clog := cronLogger{l: l}
	c := &Controller{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog)),
		),
		state:   StateUninitialized,
		runner:  runner,
		cleaner: cleaner,
		metrics: metrics,
		timeout: cfg.RunTimeout,
		l:       l,
	}

	daily := &job{id: JobDailyPipeline, name: "Daily market pipeline", schedule: cfg.DailyCron}
	cleanup := &job{id: JobRetentionCleanup, name: "State retention cleanup", schedule: cfg.CleanupCron}
	var err error
	if daily.entry, err = c.cron.AddFunc(cfg.DailyCron, func() { c.execRun(daily) }); err != nil {
		return nil, fmt.Errorf("daily cron %q: %w", cfg.DailyCron, err)
	}
	if cleanup.entry, err = c.cron.AddFunc(cfg.CleanupCron, func() { c.execCleanup(cleanup, cleaner.DefaultDays()) }); err != nil {
		return nil, fmt.Errorf("cleanup cron %q: %w", cfg.CleanupCron, err)
	}
	c.jobs = []*job{daily, cleanup}
	return c, nil
}

// Start begins firing jobs. Starting a running controller only logs a warning.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		c.l.Warn("scheduler already running")
		return
	}
	c.cron.Start()
	c.state = StateRunning
	c.l.Info("scheduler started", applogger.Int("jobs", len(c.jobs)))
}

// Stop halts scheduling and blocks until scheduled and manually triggered
// jobs have returned, or ctx is done.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	wasRunning := c.state == StateRunning
	c.state = StateStopped
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if wasRunning {
			<-c.cron.Stop().Done()
		}
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		c.l.Warn("scheduler stop timed out with jobs in flight")
		return ctx.Err()
	}
}

// Status reports the lifecycle state and, while running, each job's next
// fire time.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state, Jobs: make([]JobStatus, 0, len(c.jobs))}
	for _, j := range c.jobs {
		js := JobStatus{ID: j.id, Name: j.name, Schedule: j.schedule, LastError: j.lastErr, Running: j.running}
		if c.state == StateRunning {
			if next := c.cron.Entry(j.entry).Next; !next.IsZero() {
				js.NextRun = &next
			}
		}
		if !j.lastRun.IsZero() {
			last := j.lastRun
			js.LastRun = &last
		}
		st.Jobs = append(st.Jobs, js)
	}
	return st
}

// TriggerRun starts a pipeline run in the background and returns at once.
func (c *Controller) TriggerRun() error {
	return c.trigger(func() { c.execRun(c.jobs[0]) })
}

// TriggerCleanup starts a retention run in the background and returns at once.
func (c *Controller) TriggerCleanup(daysToKeep int) error {
	return c.trigger(func() { c.execCleanup(c.jobs[1], daysToKeep) })
}

func (c *Controller) trigger(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return ErrStopped
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
	return nil
}

func (c *Controller) execRun(j *job) {
	c.exec(j, func(ctx context.Context) error {
		rep, err := c.runner.Run(ctx)
		if err != nil {
			return err
		}
		c.l.Info("scheduled pipeline run done",
			applogger.String("run_id", rep.RunID),
			applogger.String("status", string(rep.Status)),
		)
		return nil
	})
}

func (c *Controller) execCleanup(j *job, days int) {
	c.exec(j, func(ctx context.Context) error {
		_, err := c.cleaner.Cleanup(ctx, days)
		return err
	})
}

// exec runs a job body, swallowing errors and panics so the scheduler keeps
// firing.
func (c *Controller) exec(j *job, body func(ctx context.Context) error) {
	c.mu.Lock()
	j.running++
	c.mu.Unlock()

	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		c.mu.Lock()
		j.running--
		j.lastRun = start
		j.lastErr = ""
		if err != nil {
			j.lastErr = err.Error()
		}
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordJob(j.id, err)
		}
		if err != nil {
			c.l.Error("scheduler job failed",
				applogger.String("job", j.id),
				applogger.Duration("duration_ms", time.Since(start)),
				applogger.Error(err),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	err = body(ctx)
}
