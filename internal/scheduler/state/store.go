/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package state keeps the scheduler's in-memory firing history.
package state

import (
	"sync"
	"time"
)

// DefaultCapacity bounds how many firings are remembered.
const DefaultCapacity = 128

// Firing records one dispatched slot.
type Firing struct {
	BatchID  string    `json:"batch_id"`
	At       time.Time `json:"at"`
	FiredAt  time.Time `json:"fired_at"`
	RouteIDs []int64   `json:"route_ids"`
	Dropped  int       `json:"dropped"`
}

// Store is a bounded, concurrency-safe list of recent firings, oldest first.
type Store struct {
	mu       sync.RWMutex
	capacity int
	recent   []Firing
}

// NewStore creates a history holding at most capacity firings.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, recent: make([]Firing, 0, capacity)}
}

// Add appends a firing, evicting the oldest one when full.
func (s *Store) Add(f Firing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recent) == s.capacity {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:len(s.recent)-1]
	}
	s.recent = append(s.recent, f)
}

// Recent returns a snapshot of tracked firings.
func (s *Store) Recent() []Firing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Firing, len(s.recent))
	copy(out, s.recent)
	return out
}

// Last returns the most recent firing.
func (s *Store) Last() (Firing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recent) == 0 {
		return Firing{}, false
	}
	return s.recent[len(s.recent)-1], true
}

// Prune removes firings dispatched before cutoff.
func (s *Store) Prune(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.recent[:0]
	for _, f := range s.recent {
		if f.FiredAt.After(cutoff) {
			filtered = append(filtered, f)
		}
	}
	s.recent = filtered
}
