/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api is the administrative REST interface. Handlers only write
// storage; the sampling loop picks changes up on its next poll.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/farewatch/internal/auth"
	"github.com/friendsincode/farewatch/internal/events"
	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/store"
	"github.com/friendsincode/farewatch/internal/timeslot"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// RouteStore is the storage the API needs.
type RouteStore interface {
	CreateRoute(ctx context.Context, route *models.Route) error
	GetRoute(ctx context.Context, clientID, id int64) (*models.Route, error)
	ListRoutes(ctx context.Context, clientID int64) ([]models.Route, error)
	DeleteRoute(ctx context.Context, clientID, id int64) error
	AddSchedule(ctx context.Context, clientID, routeID int64, week *timeslot.Week) (*models.RouteSchedule, error)
	RouteSchedule(ctx context.Context, clientID, routeID int64) (*timeslot.Week, error)
	DeleteSchedule(ctx context.Context, clientID, routeID int64) (int64, error)
	Statistics(ctx context.Context, clientID, routeID int64, f store.StatisticsFilter) ([]models.TripSample, error)
}

// API exposes HTTP handlers.
type API struct {
	store     RouteStore
	bus       events.Publisher
	jwtSecret []byte
	logger    zerolog.Logger
}

// New creates the API router wrapper. bus may be nil.
func New(st RouteStore, bus events.Publisher, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		store:     st,
		bus:       bus,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Route("/routes", func(r chi.Router) {
				r.Get("/", a.handleRoutesList)
				r.Post("/", a.handleRoutesCreate)
				r.Route("/{routeID}", func(r chi.Router) {
					r.Get("/", a.handleRoutesGet)
					r.Delete("/", a.handleRoutesDelete)

					r.Route("/schedule", func(r chi.Router) {
						r.Get("/", a.handleScheduleGet)
						r.Post("/", a.handleScheduleAdd)
						r.Delete("/", a.handleScheduleDelete)
					})

					r.Get("/statistics", a.handleStatistics)
				})
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) publish(t events.EventType, p events.Payload) {
	if a.bus != nil {
		a.bus.Publish(t, p)
	}
}

// clientID returns the authenticated client. The auth middleware guarantees
// it for every route in the protected group.
func clientID(r *http.Request) int64 {
	id, _ := auth.ClientID(r.Context())
	return id
}

func routeIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "routeID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_route_id")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// writeStoreError maps storage errors to responses.
func (a *API) writeStoreError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, store.ErrRouteNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, store.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied")
	case errors.Is(err, store.ErrInvalidRoute):
		writeErrorMessage(w, http.StatusBadRequest, "invalid_route", err.Error())
	case errors.Is(err, store.ErrEmptySchedule):
		writeError(w, http.StatusBadRequest, "empty_schedule")
	default:
		a.logger.Error().Err(err).Str("op", op).Msg("storage operation failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
