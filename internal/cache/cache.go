/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache keeps route definitions in Redis so that sampling does not
// hit the database for every scheduled request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRouteTTL bounds how stale a cached route may get.
const DefaultRouteTTL = time.Hour

// KeyRoute prefixes cached routes; the route id is appended.
const KeyRoute = "farewatch:cache:route:"

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RouteTTL      time.Duration

	// DisableOnError turns the cache off after the first Redis failure.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		RouteTTL:       DefaultRouteTTL,
		DisableOnError: true,
	}
}

// Cache is a Redis-backed route cache that degrades to a no-op when Redis is
// unreachable.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New connects to Redis. An unreachable server yields a disabled cache, not an error.
func New(cfg Config, logger zerolog.Logger) *Cache {
	if cfg.RouteTTL <= 0 {
		cfg.RouteTTL = DefaultRouteTTL
	}
	logger = logger.With().Str("component", "cache").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, route cache disabled")
		_ = client.Close()
		return &Cache{logger: logger, config: cfg, disabled: true}
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis route cache ready")
	return &Cache{client: client, logger: logger, config: cfg}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")
	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to redis error")
	}
}

// cachedRoute carries every route column, including the coordinates the
// API representation leaves out.
type cachedRoute struct {
	ID            int64   `json:"id"`
	ClientID      int64   `json:"client_id"`
	FromLatitude  float64 `json:"from_lat"`
	FromLongitude float64 `json:"from_lon"`
	DestLatitude  float64 `json:"dest_lat"`
	DestLongitude float64 `json:"dest_lon"`
	Comment       string  `json:"comment"`
}

func routeKey(id int64) string {
	return KeyRoute + strconv.FormatInt(id, 10)
}

// GetRoute returns a cached route.
func (c *Cache) GetRoute(ctx context.Context, id int64) (*models.Route, bool) {
	if !c.IsAvailable() {
		return nil, false
	}
	data, err := c.client.Get(ctx, routeKey(id)).Bytes()
	if err != nil {
		c.handleError(err, "get")
		telemetry.CacheMissesTotal.WithLabelValues("route").Inc()
		return nil, false
	}
	var cr cachedRoute
	if err := json.Unmarshal(data, &cr); err != nil {
		c.logger.Debug().Err(err).Int64("route_id", id).Msg("dropping undecodable cached route")
		telemetry.CacheMissesTotal.WithLabelValues("route").Inc()
		return nil, false
	}
	telemetry.CacheHitsTotal.WithLabelValues("route").Inc()
	return &models.Route{
		ID:            cr.ID,
		ClientID:      cr.ClientID,
		FromLatitude:  cr.FromLatitude,
		FromLongitude: cr.FromLongitude,
		DestLatitude:  cr.DestLatitude,
		DestLongitude: cr.DestLongitude,
		Comment:       cr.Comment,
	}, true
}

// SetRoute caches a route.
func (c *Cache) SetRoute(ctx context.Context, r *models.Route) error {
	if !c.IsAvailable() {
		return nil
	}
	data, err := json.Marshal(cachedRoute{
		ID:            r.ID,
		ClientID:      r.ClientID,
		FromLatitude:  r.FromLatitude,
		FromLongitude: r.FromLongitude,
		DestLatitude:  r.DestLatitude,
		DestLongitude: r.DestLongitude,
		Comment:       r.Comment,
	})
	if err != nil {
		return fmt.Errorf("marshal cached route: %w", err)
	}
	if err := c.client.Set(ctx, routeKey(r.ID), data, c.config.RouteTTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// InvalidateRoute removes a route from the cache.
func (c *Cache) InvalidateRoute(ctx context.Context, id int64) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Del(ctx, routeKey(id)).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}

// InvalidateAll drops every cached route.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, KeyRoute+"*", 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
