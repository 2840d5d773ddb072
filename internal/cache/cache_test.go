/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"testing"

	"github.com/friendsincode/farewatch/internal/models"
	"github.com/rs/zerolog"
)

func TestUnreachableRedisDisablesCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	c := New(cfg, zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })

	if c.IsAvailable() {
		t.Fatal("cache should be disabled when redis is unreachable")
	}

	ctx := context.Background()
	route := &models.Route{ID: 3, ClientID: 1}
	if err := c.SetRoute(ctx, route); err != nil {
		t.Errorf("SetRoute on disabled cache: %v", err)
	}
	if _, ok := c.GetRoute(ctx, 3); ok {
		t.Error("disabled cache reported a hit")
	}
	if err := c.InvalidateRoute(ctx, 3); err != nil {
		t.Errorf("InvalidateRoute: %v", err)
	}
	if err := c.InvalidateAll(ctx); err != nil {
		t.Errorf("InvalidateAll: %v", err)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	if c.IsAvailable() {
		t.Error("nil cache reported available")
	}
	if _, ok := c.GetRoute(context.Background(), 1); ok {
		t.Error("nil cache reported a hit")
	}
	if err := c.Close(); err != nil {
		t.Error(err)
	}
}

func TestRouteKey(t *testing.T) {
	if got := routeKey(42); got != "farewatch:cache:route:42" {
		t.Errorf("routeKey(42) = %q", got)
	}
}
