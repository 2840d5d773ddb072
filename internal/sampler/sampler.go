/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sampler executes one scheduled observation of a route: it asks
// the pricing API for a quote and stores what came back.
package sampler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/farewatch/internal/events"
	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/taxiapi"
	"github.com/friendsincode/farewatch/internal/telemetry"
)

const tracerName = "farewatch/sampler"

// Store is the storage the sampler reads routes from and writes results to.
type Store interface {
	LoadRoute(ctx context.Context, id int64) (*models.Route, error)
	RecordRequest(ctx context.Context, entry *models.APIRequestLog) error
	RecordSamples(ctx context.Context, samples []models.TripSample) error
}

// PricingClient quotes a trip.
type PricingClient interface {
	RouteInfo(ctx context.Context, from, dest models.Coordinate) (*taxiapi.Response, error)
}

// Archiver keeps raw response bodies. It may be nil.
type Archiver interface {
	Save(ctx context.Context, routeID int64, at time.Time, body []byte) (string, error)
}

// Sampler implements scheduler.Executor.
type Sampler struct {
	store   Store
	client  PricingClient
	archive Archiver
	bus     events.Publisher
	now     func() time.Time
	logger  zerolog.Logger
}

// Option customises a Sampler.
type Option func(*Sampler)

// WithArchive stores raw responses in a.
func WithArchive(a Archiver) Option {
	return func(s *Sampler) { s.archive = a }
}

// WithPublisher publishes sample events to bus.
func WithPublisher(bus events.Publisher) Option {
	return func(s *Sampler) { s.bus = bus }
}

// WithNow sets the clock used to stamp samples; the weekday of a sample is
// taken in the location of the returned time.
func WithNow(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// New creates a sampler.
func New(store Store, client PricingClient, logger zerolog.Logger, opts ...Option) *Sampler {
	s := &Sampler{
		store:  store,
		client: client,
		now:    time.Now,
		logger: logger.With().Str("component", "sampler").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute samples the route once. A request that reaches the API is always
// logged; samples are stored only for a successful quote.
func (s *Sampler) Execute(ctx context.Context, routeID int64) (err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "sampler.execute")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"route.id": routeID})

	start := time.Now()
	result := "error"
	defer func() {
		telemetry.ExecutionsTotal.WithLabelValues(result).Inc()
		telemetry.ExecutionDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			telemetry.RecordError(span, err)
		}
	}()

	route, err := s.store.LoadRoute(ctx, routeID)
	if err != nil {
		return fmt.Errorf("load route %d: %w", routeID, err)
	}

	at := s.now()
	resp, err := s.client.RouteInfo(ctx, route.From(), route.Dest())
	if err != nil {
		return fmt.Errorf("query route %d: %w", routeID, err)
	}
	telemetry.AddSpanAttributes(span, map[string]any{"http.status_code": resp.StatusCode})

	entry := &models.APIRequestLog{
		RouteID:       routeID,
		RequestedAt:   at,
		RequestParams: resp.Params,
		ResponseCode:  resp.StatusCode,
		ResponseBody:  string(resp.Body),
	}
	if s.archive != nil {
		key, archErr := s.archive.Save(ctx, routeID, at, resp.Body)
		if archErr != nil {
			s.logger.Warn().Err(archErr).Int64("route_id", routeID).Msg("archive response failed")
		}
		entry.ArchiveKey = key
	}
	if err := s.store.RecordRequest(ctx, entry); err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		result = "rejected"
		s.publish(events.EventSampleFailed, events.Payload{
			"route_id":    routeID,
			"request_id":  entry.ID,
			"status_code": resp.StatusCode,
		})
		return taxiapi.StatusError(resp.StatusCode)
	}

	trips, err := taxiapi.ParseTrips(resp.Body)
	if err != nil {
		return fmt.Errorf("route %d request %d: %w", routeID, entry.ID, err)
	}

	samples := make([]models.TripSample, 0, len(trips))
	available := 0
	for _, trip := range trips {
		sample := trip.Sample(routeID, entry.ID, at)
		if sample.Available {
			available++
		}
		samples = append(samples, sample)
	}
	if err := s.store.RecordSamples(ctx, samples); err != nil {
		return err
	}

	telemetry.SamplesRecordedTotal.WithLabelValues("true").Add(float64(available))
	telemetry.SamplesRecordedTotal.WithLabelValues("false").Add(float64(len(samples) - available))
	result = "success"

	s.logger.Debug().
		Int64("route_id", routeID).
		Int64("request_id", entry.ID).
		Int("samples", len(samples)).
		Int("available", available).
		Msg("route sampled")

	s.publish(events.EventSampleRecorded, events.Payload{
		"route_id":   routeID,
		"request_id": entry.ID,
		"samples":    len(samples),
		"available":  available,
		"weekday":    at.Weekday().String(),
		"sampled_at": at.Format(time.RFC3339),
	})
	return nil
}

func (s *Sampler) publish(t events.EventType, p events.Payload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(t, p)
}
