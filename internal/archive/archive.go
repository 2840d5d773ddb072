/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/farewatch/internal/telemetry"
)

// Archive names and stores raw responses. A nil *Archive is a disabled
// archive: Save returns an empty key.
type Archive struct {
	store   ObjectStore
	backend string
	logger  zerolog.Logger
}

// New wraps an object store; backend labels metrics.
func New(store ObjectStore, backend string, logger zerolog.Logger) *Archive {
	return &Archive{
		store:   store,
		backend: backend,
		logger:  logger.With().Str("component", "archive").Str("backend", backend).Logger(),
	}
}

// Key returns the object key for a response captured at the given time.
func Key(routeID int64, at time.Time, id uuid.UUID) string {
	at = at.UTC()
	return fmt.Sprintf("responses/%d/%04d/%02d/%02d/%s.json", routeID, at.Year(), at.Month(), at.Day(), id)
}

// Save stores body and returns its key.
func (a *Archive) Save(ctx context.Context, routeID int64, at time.Time, body []byte) (string, error) {
	if a == nil {
		return "", nil
	}
	key := Key(routeID, at, uuid.New())
	if err := a.store.Put(ctx, key, body); err != nil {
		telemetry.ArchiveWritesTotal.WithLabelValues(a.backend, "error").Inc()
		return "", err
	}
	telemetry.ArchiveWritesTotal.WithLabelValues(a.backend, "success").Inc()
	return key, nil
}

// Load returns a previously saved body.
func (a *Archive) Load(ctx context.Context, key string) ([]byte, error) {
	if a == nil {
		return nil, ErrNotFound
	}
	return a.store.Get(ctx, key)
}
