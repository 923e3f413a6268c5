package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Job is the unit of scheduled work. scheduledFor is the slot the firing
// belongs to, which may lag the wall clock after a misfire catch-up.
type Job func(ctx context.Context, scheduledFor time.Time)

type Config struct {
	Hour   int
	Minute int

	// Location resolves the daily slot; defaults to time.Local.
	Location *time.Location

	// MisfireGrace bounds how late a slot may still fire. A wake-up later
	// than this past its slot is skipped and coalesced into the next day.
	MisfireGrace time.Duration

	Logger *slog.Logger

	// HealthProbe, when set, runs before every firing and is logged. It
	// never blocks the job.
	HealthProbe func(ctx context.Context) string

	// now is a test hook.
	now func() time.Time
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Paused      bool
	Running     bool
	NextRun     time.Time
	LastRun     time.Time
	LastOutcome string
}

// Scheduler fires one job once a day at a fixed local time. Exactly one
// firing runs at a time; an overlapping slot is skipped, not queued.
type Scheduler struct {
	hour     int
	minute   int
	location *time.Location
	grace    time.Duration
	logger   *slog.Logger
	probe    func(ctx context.Context) string
	job      Job
	now      func() time.Time

	running  atomic.Bool
	paused   atomic.Bool
	inFlight sync.WaitGroup

	mu          sync.Mutex
	nextRun     time.Time
	lastRun     time.Time
	lastOutcome string
}

func New(cfg Config, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	if cfg.Hour < 0 || cfg.Hour > 23 {
		return nil, fmt.Errorf("hour %d out of range", cfg.Hour)
	}
	if cfg.Minute < 0 || cfg.Minute > 59 {
		return nil, fmt.Errorf("minute %d out of range", cfg.Minute)
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		hour:     cfg.Hour,
		minute:   cfg.Minute,
		location: location,
		grace:    cfg.MisfireGrace,
		logger:   logger,
		probe:    cfg.HealthProbe,
		job:      job,
		now:      now,
	}, nil
}

// Run blocks until ctx is cancelled, firing the job once per daily slot.
// A slot whose wake-up falls within the misfire grace still fires; a later
// one is skipped. On cancellation any in-flight firing is drained before
// Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	startedAt := s.now()
	s.logger.Info("scheduler started",
		"slot", fmt.Sprintf("%02d:%02d", s.hour, s.minute),
		"timezone", s.location.String(),
		"misfire_grace", s.grace)

	// A slot missed just before startup still counts if it is within
	// grace, so a restart around the scheduled time does not lose the day.
	if missed := s.previousSlot(startedAt); startedAt.Sub(missed) <= s.grace {
		s.fire(ctx, missed)
	}

	next := s.nextSlot(startedAt)
	for {
		s.setNextRun(next)
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopping, draining in-flight run")
			s.inFlight.Wait()
			return ctx.Err()
		case <-timer.C:
		}

		wokeAt := s.now()
		if lateness := wokeAt.Sub(next); lateness > s.grace {
			// Coalesce: one skipped slot, no queue of stale firings.
			s.logger.Warn("slot missed beyond grace, skipping",
				"slot", next, "lateness", lateness)
			s.setOutcome(next, "missed")
		} else {
			s.fire(ctx, next)
		}
		next = s.nextSlot(next)
	}
}

// fire runs one slot. It never lets a job error or panic escape, and it
// refuses to overlap a still-running firing.
func (s *Scheduler) fire(ctx context.Context, slot time.Time) {
	if s.paused.Load() {
		s.logger.Info("scheduler paused, skipping slot", "slot", slot)
		s.setOutcome(slot, "paused")
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in flight, skipping slot", "slot", slot)
		s.setOutcome(slot, "overlapped")
		return
	}

	if s.probe != nil {
		s.logger.Info("pre-run health probe", "slot", slot, "health", s.probe(ctx))
	}

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled job panicked",
					"slot", slot, "panic", r, "stack", string(debug.Stack()))
				s.setOutcome(slot, "panicked")
			}
		}()

		s.logger.Info("firing scheduled job", "slot", slot)
		s.job(ctx, slot)
		s.setOutcome(slot, "completed")
	}()
}

// Pause keeps the loop ticking but skips firings until Resume.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
	s.logger.Info("scheduler paused")
}

func (s *Scheduler) Resume() {
	s.paused.Store(false)
	s.logger.Info("scheduler resumed")
}

// NextRunTime reports the slot the loop is currently waiting for.
func (s *Scheduler) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) JobStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Paused:      s.paused.Load(),
		Running:     s.running.Load(),
		NextRun:     s.nextRun,
		LastRun:     s.lastRun,
		LastOutcome: s.lastOutcome,
	}
}

// NextFiring returns the first daily hour:minute firing in loc strictly
// after the given instant.
func NextFiring(after time.Time, hour, minute int, loc *time.Location) time.Time {
	local := after.In(loc)
	slot := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !slot.After(after) {
		slot = slot.AddDate(0, 0, 1)
	}
	return slot
}

// nextSlot returns the first daily slot strictly after the given instant.
func (s *Scheduler) nextSlot(after time.Time) time.Time {
	return NextFiring(after, s.hour, s.minute, s.location)
}

// previousSlot returns the most recent daily slot at or before the instant.
func (s *Scheduler) previousSlot(at time.Time) time.Time {
	local := at.In(s.location)
	slot := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.location)
	if slot.After(at) {
		slot = slot.AddDate(0, 0, -1)
	}
	return slot
}

func (s *Scheduler) setNextRun(next time.Time) {
	s.mu.Lock()
	s.nextRun = next
	s.mu.Unlock()
}

func (s *Scheduler) setOutcome(slot time.Time, outcome string) {
	s.mu.Lock()
	s.lastRun = slot
	s.lastOutcome = outcome
	s.mu.Unlock()
}
