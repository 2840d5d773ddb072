/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/friendsincode/farewatch/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type job struct {
	batchID uuid.UUID
	routeID int64
}

// dispatcher hands route ids to the executor. With no workers it runs them
// one by one on the caller's goroutine; otherwise ids go through a bounded
// queue and are dropped when it is full.
type dispatcher struct {
	executor Executor
	cfg      Config
	logger   zerolog.Logger
	queue    chan job
	wg       sync.WaitGroup
}

func newDispatcher(executor Executor, cfg Config, logger zerolog.Logger) *dispatcher {
	d := &dispatcher{executor: executor, cfg: cfg, logger: logger}
	if cfg.Workers > 0 {
		d.queue = make(chan job, cfg.QueueSize)
	}
	return d
}

func (d *dispatcher) start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.execute(ctx, j)
			}
		}()
	}
}

// stop closes the queue and waits for queued jobs to finish.
func (d *dispatcher) stop() {
	if d.queue != nil {
		close(d.queue)
	}
	d.wg.Wait()
}

// dispatch submits every id of the batch and returns how many were dropped.
func (d *dispatcher) dispatch(ctx context.Context, batch Batch) int {
	dropped := 0
	for _, id := range batch.RouteIDs {
		j := job{batchID: batch.ID, routeID: id}
		if d.queue == nil {
			d.execute(ctx, j)
			continue
		}
		select {
		case d.queue <- j:
		default:
			dropped++
			telemetry.SchedulerDroppedTotal.Inc()
			d.logger.Warn().
				Str("batch_id", batch.ID.String()).
				Int64("route_id", id).
				Msg("dispatch queue full, dropping route")
		}
	}
	return dropped
}

func (d *dispatcher) execute(ctx context.Context, j job) {
	logger := d.logger.With().Str("batch_id", j.batchID.String()).Int64("route_id", j.routeID).Logger()
	defer func() {
		if r := recover(); r != nil {
			telemetry.SchedulerErrorsTotal.WithLabelValues("panic").Inc()
			logger.Error().Str("panic", fmt.Sprint(r)).Msg("executor panicked")
		}
	}()

	telemetry.SchedulerDispatchedTotal.Inc()
	execCtx, cancel := context.WithTimeout(ctx, d.cfg.ExecTimeout)
	defer cancel()
	if err := d.executor.Execute(execCtx, j.routeID); err != nil {
		telemetry.SchedulerErrorsTotal.WithLabelValues("execute").Inc()
		logger.Error().Err(err).Msg("route execution failed")
	}
}
