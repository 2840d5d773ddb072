/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/telemetry"
	"github.com/friendsincode/farewatch/internal/timeslot"
)

// scheduleRow reads the mapping column undecoded so one bad row cannot fail
// the whole scan.
type scheduleRow struct {
	ID             int64
	RouteID        int64
	DayTimeMapping string
}

// LoadAllSchedules builds the full week from every stored schedule. Each
// slot carries the ids of the routes due at it. Entries that cannot be
// parsed are skipped and counted.
func (s *Store) LoadAllSchedules(ctx context.Context) (*timeslot.Week, error) {
	var rows []scheduleRow
	err := s.db.WithContext(ctx).
		Model(&models.RouteSchedule{}).
		Select("id, route_id, day_time_mapping").
		Order("id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scan schedules: %w", err)
	}

	week := timeslot.NewWeek()
	for _, row := range rows {
		var mapping map[string][]string
		if err := json.Unmarshal([]byte(row.DayTimeMapping), &mapping); err != nil {
			s.skipMalformed(row, &timeslot.MalformedEntryError{Err: err})
			continue
		}
		if err := addMapping(week, row.RouteID, mapping, func(err error) { s.skipMalformed(row, err) }); err != nil {
			return nil, err
		}
	}
	return week, nil
}

// addMapping merges one stored mapping into week, binding every slot to
// routeID. Malformed entries are reported through skip and left out.
func addMapping(week *timeslot.Week, routeID int64, mapping map[string][]string, skip func(error)) error {
	for name, times := range mapping {
		if len(times) == 0 {
			continue
		}
		wd, err := timeslot.ParseWeekday(name)
		if err != nil {
			skip(&timeslot.MalformedEntryError{Weekday: name, Err: err})
			continue
		}
		day := timeslot.NewDay(wd)
		for _, raw := range times {
			t, err := timeslot.ParseTimeOfDay(raw)
			if err != nil {
				skip(&timeslot.MalformedEntryError{Weekday: name, Value: raw, Err: err})
				continue
			}
			day.AddToSchedule(routeID, t)
		}
		if err := week.Add(day); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) skipMalformed(row scheduleRow, err error) {
	telemetry.ScheduleMalformedEntriesTotal.Inc()
	s.logger.Warn().
		Err(err).
		Int64("schedule_id", row.ID).
		Int64("route_id", row.RouteID).
		Msg("skipping malformed schedule entry")
}

// AddSchedule stores the slot times of week for a route owned by clientID.
// Identifiers carried by week are ignored.
func (s *Store) AddSchedule(ctx context.Context, clientID, routeID int64, week *timeslot.Week) (*models.RouteSchedule, error) {
	if _, err := s.GetRoute(ctx, clientID, routeID); err != nil {
		return nil, err
	}
	if week == nil || week.IsEmpty() {
		return nil, ErrEmptySchedule
	}
	row := &models.RouteSchedule{RouteID: routeID, DayTimeMapping: week.Mapping()}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return row, nil
}

// RouteSchedule merges every stored schedule of a route into one week.
func (s *Store) RouteSchedule(ctx context.Context, clientID, routeID int64) (*timeslot.Week, error) {
	if _, err := s.GetRoute(ctx, clientID, routeID); err != nil {
		return nil, err
	}
	var rows []models.RouteSchedule
	if err := s.db.WithContext(ctx).Where("route_id = ?", routeID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load schedules of route %d: %w", routeID, err)
	}

	week := timeslot.NewWeek()
	var malformed error
	for _, row := range rows {
		err := addMapping(week, routeID, row.DayTimeMapping, func(err error) {
			malformed = errors.Join(malformed, err)
		})
		if err != nil {
			return nil, err
		}
	}
	if malformed != nil {
		s.logger.Warn().Err(malformed).Int64("route_id", routeID).Msg("route schedule has malformed entries")
	}
	return week, nil
}

// DeleteSchedule removes every schedule of a route and reports how many
// were deleted.
func (s *Store) DeleteSchedule(ctx context.Context, clientID, routeID int64) (int64, error) {
	if _, err := s.GetRoute(ctx, clientID, routeID); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Where("route_id = ?", routeID).Delete(&models.RouteSchedule{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete schedules of route %d: %w", routeID, res.Error)
	}
	return res.RowsAffected, nil
}
