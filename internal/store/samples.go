/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/friendsincode/farewatch/internal/models"
)

// RecordRequest stores a pricing API exchange and assigns its ID.
func (s *Store) RecordRequest(ctx context.Context, entry *models.APIRequestLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("record api request: %w", err)
	}
	return nil
}

// RecordSamples stores the trip samples of one request.
func (s *Store) RecordSamples(ctx context.Context, samples []models.TripSample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(samples, 100).Error; err != nil {
		return fmt.Errorf("record samples: %w", err)
	}
	return nil
}

// StatisticsFilter narrows Statistics. A nil Available returns both kinds.
type StatisticsFilter struct {
	Weekday   time.Weekday
	Available *bool
}

// Statistics returns the samples of a route taken on the given weekday,
// oldest first.
func (s *Store) Statistics(ctx context.Context, clientID, routeID int64, f StatisticsFilter) ([]models.TripSample, error) {
	if _, err := s.GetRoute(ctx, clientID, routeID); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("route_id = ? AND weekday = ?", routeID, int(f.Weekday))
	if f.Available != nil {
		q = q.Where("available = ?", *f.Available)
	}
	var samples []models.TripSample
	if err := q.Order("sampled_at, id").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	return samples, nil
}

// ClassSummary aggregates the samples of one tariff class.
type ClassSummary struct {
	TripClass      int     `json:"trip_class"`
	ClassName      string  `json:"class_name"`
	Samples        int     `json:"samples"`
	Unavailable    int     `json:"unavailable"`
	MinPrice       float64 `json:"min_price"`
	MaxPrice       float64 `json:"max_price"`
	AvgPrice       float64 `json:"avg_price"`
	AvgWaitSeconds float64 `json:"avg_wait_seconds"`
}

// Summarize groups samples by tariff class. Price and wait figures only
// consider available samples.
func Summarize(samples []models.TripSample) []ClassSummary {
	byClass := map[int]*ClassSummary{}
	for _, sm := range samples {
		cs, ok := byClass[sm.TripClass]
		if !ok {
			cs = &ClassSummary{TripClass: sm.TripClass, ClassName: sm.ClassName, MinPrice: math.Inf(1)}
			byClass[sm.TripClass] = cs
		}
		cs.Samples++
		if !sm.Available {
			cs.Unavailable++
			continue
		}
		available := float64(cs.Samples - cs.Unavailable)
		cs.MinPrice = math.Min(cs.MinPrice, sm.Price)
		cs.MaxPrice = math.Max(cs.MaxPrice, sm.Price)
		cs.AvgPrice += (sm.Price - cs.AvgPrice) / available
		cs.AvgWaitSeconds += (sm.WaitingSeconds - cs.AvgWaitSeconds) / available
	}

	out := make([]ClassSummary, 0, len(byClass))
	for _, cs := range byClass {
		if math.IsInf(cs.MinPrice, 1) {
			cs.MinPrice = 0
		}
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TripClass < out[j].TripClass })
	return out
}
