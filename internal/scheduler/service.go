/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/friendsincode/farewatch/internal/scheduler/state"
	"github.com/friendsincode/farewatch/internal/telemetry"
	"github.com/friendsincode/farewatch/internal/timeslot"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScheduleLoader builds a complete week from storage.
type ScheduleLoader interface {
	LoadAllSchedules(ctx context.Context) (*timeslot.Week, error)
}

// Executor performs the work bound to one route identifier.
type Executor interface {
	Execute(ctx context.Context, routeID int64) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, routeID int64) error

func (f ExecutorFunc) Execute(ctx context.Context, routeID int64) error {
	return f(ctx, routeID)
}

// Config tunes the loop. Zero values are replaced by defaults, except
// Workers where zero means ids run synchronously inside the loop.
type Config struct {
	// PollInterval is how long the loop sleeps when nothing is due soon;
	// the schedule is reloaded after every such sleep.
	PollInterval time.Duration
	// FireWindow is how close a slot must be for the loop to sleep until it.
	// It also bounds how far in the past a slot passed during a delay
	// (slow reload, synchronous execution) is still fired. PollInterval is
	// clamped to it so no slot can fall between two checks.
	FireWindow time.Duration
	// WakeBuffer is added to the final sleep so the loop wakes after the slot.
	WakeBuffer  time.Duration
	Workers     int
	QueueSize   int
	ExecTimeout time.Duration
	Clock       Clock
	History     *state.Store
}

const (
	DefaultPollInterval = time.Minute
	DefaultFireWindow   = time.Minute
	DefaultWakeBuffer   = time.Second
	DefaultQueueSize    = 256
	DefaultExecTimeout  = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.FireWindow <= 0 {
		c.FireWindow = DefaultFireWindow
	}
	if c.PollInterval > c.FireWindow {
		c.PollInterval = c.FireWindow
	}
	if c.WakeBuffer <= 0 {
		c.WakeBuffer = DefaultWakeBuffer
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = DefaultExecTimeout
	}
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	if c.History == nil {
		c.History = state.NewStore(state.DefaultCapacity)
	}
	return c
}

// Batch is one firing: the slot time and the ids due at it.
type Batch struct {
	ID       uuid.UUID
	At       time.Time
	RouteIDs []int64
}

// Service waits for the next due slot of the weekly schedule and hands the
// slot's route ids to the executor. The schedule is reloaded wholesale from
// storage while idle and swapped in atomically.
type Service struct {
	loader   ScheduleLoader
	executor Executor
	cfg      Config
	logger   zerolog.Logger
	schedule atomic.Pointer[timeslot.Week]

	// checked is the instant up to which the schedule has been searched or
	// fired. Owned by the goroutine calling WaitNextTask.
	checked time.Time
}

// New constructs the scheduler service with an empty schedule.
func New(loader ScheduleLoader, executor Executor, cfg Config, logger zerolog.Logger) *Service {
	s := &Service{
		loader:   loader,
		executor: executor,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
	s.schedule.Store(timeslot.NewWeek())
	return s
}

// Schedule returns the active week. Callers must not modify it.
func (s *Service) Schedule() *timeslot.Week {
	return s.schedule.Load()
}

// History returns the firing history.
func (s *Service) History() *state.Store {
	return s.cfg.History
}

// NextFiring reports the next slot relative to the service clock.
func (s *Service) NextFiring() (time.Time, []int64, bool) {
	return s.Schedule().NextTimePoint(s.cfg.Clock.Now())
}

// Refresh reloads the schedule. On failure the previous schedule stays active.
func (s *Service) Refresh(ctx context.Context) error {
	week, err := s.loader.LoadAllSchedules(ctx)
	if err != nil {
		telemetry.SchedulerRefreshTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("schedule reload failed, keeping previous schedule")
		return fmt.Errorf("load schedules: %w", err)
	}
	if week == nil {
		week = timeslot.NewWeek()
	}
	prev := s.schedule.Swap(week)
	telemetry.SchedulerRefreshTotal.WithLabelValues("ok").Inc()
	telemetry.SchedulerSlots.Set(float64(week.SlotCount()))
	if prev == nil || !prev.Equal(week) {
		s.logger.Info().Int("slots", week.SlotCount()).Msg("schedule updated")
	}
	return nil
}

// WaitNextTask blocks until the next slot is due and returns its batch.
// When nothing falls within the fire window it sleeps for the poll
// interval, reloads the schedule and looks again. Searching resumes from
// the last instant checked, so a slot that passed while the loop was busy
// is returned immediately as long as it is at most FireWindow old. Only
// cancellation ends the wait early, in which case the context error is
// returned.
func (s *Service) WaitNextTask(ctx context.Context) (Batch, error) {
	for {
		telemetry.SchedulerTicksTotal.Inc()
		now := s.cfg.Clock.Now()
		from := s.searchFrom(now)
		at, ids, ok := s.Schedule().NextTimePoint(from)
		if ok {
			telemetry.SchedulerNextFiring.Set(float64(at.Unix()))
			if delta := at.Sub(now); delta <= s.cfg.FireWindow {
				if delta < 0 {
					s.logger.Warn().
						Time("at", at).
						Dur("late", -delta).
						Int("count", len(ids)).
						Msg("slot passed while busy, firing late")
				} else {
					s.logger.Debug().
						Time("at", at).
						Dur("delta", delta).
						Int("count", len(ids)).
						Msg("slot due, sleeping until it")
				}
				if err := s.sleep(ctx, delta+s.cfg.WakeBuffer); err != nil {
					return Batch{}, err
				}
				s.checked = at
				return Batch{ID: uuid.New(), At: at, RouteIDs: ids}, nil
			}
		} else {
			telemetry.SchedulerNextFiring.Set(0)
		}
		s.checked = now

		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return Batch{}, err
		}
		_ = s.Refresh(ctx)
	}
}

// searchFrom returns the instant after which due slots are looked up: the
// last checked instant, but never more than FireWindow before now. Before
// the first check it is now itself.
func (s *Service) searchFrom(now time.Time) time.Time {
	if s.checked.IsZero() || s.checked.After(now) {
		return now
	}
	if oldest := now.Add(-s.cfg.FireWindow); s.checked.Before(oldest) {
		return oldest
	}
	return s.checked
}

// Run loads the schedule and dispatches every due batch until ctx is
// cancelled. Executor failures never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("initial schedule load failed, starting empty")
	}

	d := newDispatcher(s.executor, s.cfg, s.logger)
	d.start(ctx)
	defer d.stop()

	s.logger.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Int("workers", s.cfg.Workers).
		Msg("scheduler loop started")
	for {
		batch, err := s.WaitNextTask(ctx)
		if err != nil {
			s.logger.Info().Msg("scheduler loop stopped")
			return err
		}
		s.fire(ctx, d, batch)
	}
}

func (s *Service) fire(ctx context.Context, d *dispatcher, batch Batch) {
	firedAt := s.cfg.Clock.Now()
	telemetry.SchedulerFiringsTotal.Inc()
	telemetry.SchedulerFiringLag.Observe(firedAt.Sub(batch.At).Seconds())
	s.logger.Info().
		Str("batch_id", batch.ID.String()).
		Time("at", batch.At).
		Ints64("route_ids", batch.RouteIDs).
		Msg("slot fired")

	dropped := d.dispatch(ctx, batch)
	s.cfg.History.Add(state.Firing{
		BatchID:  batch.ID.String(),
		At:       batch.At,
		FiredAt:  firedAt,
		RouteIDs: batch.RouteIDs,
		Dropped:  dropped,
	})
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.cfg.Clock.After(d):
		return nil
	}
}
