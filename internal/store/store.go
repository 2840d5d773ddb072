/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store is the persistence layer: routes, their weekly sampling
// schedules and the samples collected for them.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/friendsincode/farewatch/internal/cache"
	"github.com/friendsincode/farewatch/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrAccessDenied  = errors.New("access denied")
	ErrInvalidRoute  = errors.New("invalid route")
	ErrEmptySchedule = errors.New("schedule has no slots")
)

// Store wraps the database and the optional route cache.
type Store struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// New creates a store. c may be nil.
func New(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *Store {
	return &Store{db: db, cache: c, logger: logger.With().Str("component", "store").Logger()}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// CreateRoute validates and inserts a route, assigning its ID.
func (s *Store) CreateRoute(ctx context.Context, route *models.Route) error {
	if route.ClientID == 0 {
		return fmt.Errorf("%w: client id is required", ErrInvalidRoute)
	}
	if !route.From().Valid() || !route.Dest().Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidRoute)
	}
	if err := s.db.WithContext(ctx).Create(route).Error; err != nil {
		return fmt.Errorf("create route: %w", err)
	}
	return nil
}

// LoadRoute fetches a route regardless of owner, going through the cache.
func (s *Store) LoadRoute(ctx context.Context, id int64) (*models.Route, error) {
	if r, ok := s.cache.GetRoute(ctx, id); ok {
		return r, nil
	}

	var route models.Route
	err := s.db.WithContext(ctx).First(&route, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrRouteNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load route %d: %w", id, err)
	}

	if err := s.cache.SetRoute(ctx, &route); err != nil {
		s.logger.Debug().Err(err).Int64("route_id", id).Msg("failed to cache route")
	}
	return &route, nil
}

// GetRoute returns a route owned by clientID.
func (s *Store) GetRoute(ctx context.Context, clientID, id int64) (*models.Route, error) {
	route, err := s.LoadRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	if route.ClientID != clientID {
		return nil, ErrAccessDenied
	}
	return route, nil
}

// ListRoutes returns the client's routes ordered by ID.
func (s *Store) ListRoutes(ctx context.Context, clientID int64) ([]models.Route, error) {
	var routes []models.Route
	if err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Order("id").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

// DeleteRoute removes a route with its schedules, request log and samples.
func (s *Store) DeleteRoute(ctx context.Context, clientID, id int64) error {
	if _, err := s.GetRoute(ctx, clientID, id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.TripSample{}, &models.APIRequestLog{}, &models.RouteSchedule{}} {
			if err := tx.Where("route_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Route{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete route %d: %w", id, err)
	}

	if err := s.cache.InvalidateRoute(ctx, id); err != nil {
		s.logger.Debug().Err(err).Int64("route_id", id).Msg("failed to invalidate cached route")
	}
	return nil
}
