/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/timeslot"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.Route{}, &models.RouteSchedule{}, &models.APIRequestLog{}, &models.TripSample{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db, nil, zerolog.Nop())
}

func createRoute(t *testing.T, s *Store, clientID int64) *models.Route {
	t.Helper()
	r := &models.Route{ClientID: clientID, Comment: "office"}
	r.SetEndpoints(models.Coordinate{Latitude: 55.75, Longitude: 37.61}, models.Coordinate{Latitude: 55.70, Longitude: 37.53})
	if err := s.CreateRoute(context.Background(), r); err != nil {
		t.Fatalf("CreateRoute: %v", err)
	}
	return r
}

func weekFrom(t *testing.T, mapping map[string][]string) *timeslot.Week {
	t.Helper()
	w, err := timeslot.WeekFromMapping(mapping)
	if err != nil {
		t.Fatalf("WeekFromMapping: %v", err)
	}
	return w
}

func TestCreateRouteValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		route models.Route
	}{
		{name: "missing client", route: models.Route{}},
		{name: "latitude out of range", route: models.Route{ClientID: 1, FromLatitude: 91}},
		{name: "longitude out of range", route: models.Route{ClientID: 1, DestLongitude: -181}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.route
			if err := s.CreateRoute(ctx, &r); !errors.Is(err, ErrInvalidRoute) {
				t.Errorf("CreateRoute() error = %v, want ErrInvalidRoute", err)
			}
		})
	}
}

func TestRouteAccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mine := createRoute(t, s, 1)
	createRoute(t, s, 2)

	got, err := s.GetRoute(ctx, 1, mine.ID)
	if err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	if got.From() != mine.From() || got.Dest() != mine.Dest() {
		t.Errorf("GetRoute() coordinates = %v -> %v", got.From(), got.Dest())
	}

	if _, err := s.GetRoute(ctx, 2, mine.ID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("foreign GetRoute() error = %v, want ErrAccessDenied", err)
	}
	if _, err := s.GetRoute(ctx, 1, 999); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("missing GetRoute() error = %v, want ErrRouteNotFound", err)
	}

	routes, err := s.ListRoutes(ctx, 1)
	if err != nil {
		t.Fatalf("ListRoutes: %v", err)
	}
	if len(routes) != 1 || routes[0].ID != mine.ID {
		t.Errorf("ListRoutes(1) = %+v", routes)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := createRoute(t, s, 1)

	if _, err := s.AddSchedule(ctx, 1, r.ID, timeslot.NewWeek()); !errors.Is(err, ErrEmptySchedule) {
		t.Errorf("empty schedule error = %v", err)
	}
	if _, err := s.AddSchedule(ctx, 2, r.ID, weekFrom(t, map[string][]string{"Monday": {"07:00"}})); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("foreign AddSchedule error = %v", err)
	}

	if _, err := s.AddSchedule(ctx, 1, r.ID, weekFrom(t, map[string][]string{"Monday": {"07:00", "12:00"}})); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if _, err := s.AddSchedule(ctx, 1, r.ID, weekFrom(t, map[string][]string{"Monday": {"07:00"}, "Friday": {"18:30"}})); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}

	week, err := s.RouteSchedule(ctx, 1, r.ID)
	if err != nil {
		t.Fatalf("RouteSchedule: %v", err)
	}
	want := map[string][]string{"Monday": {"07:00", "12:00"}, "Friday": {"18:30"}}
	if got := week.Mapping(); !reflect.DeepEqual(got, want) {
		t.Errorf("RouteSchedule().Mapping() = %v, want %v", got, want)
	}
	ids, _ := week.Day(time.Monday).IDs(timeslot.NewTimeOfDay(7, 0, 0))
	if !reflect.DeepEqual(ids, []int64{r.ID, r.ID}) {
		t.Errorf("Monday 07:00 ids = %v, want the route twice", ids)
	}

	n, err := s.DeleteSchedule(ctx, 1, r.ID)
	if err != nil || n != 2 {
		t.Fatalf("DeleteSchedule() = %d, %v", n, err)
	}
	week, _ = s.RouteSchedule(ctx, 1, r.ID)
	if !week.IsEmpty() {
		t.Error("schedule should be empty after delete")
	}
}

func TestLoadAllSchedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createRoute(t, s, 1)
	b := createRoute(t, s, 2)

	if _, err := s.AddSchedule(ctx, 1, a.ID, weekFrom(t, map[string][]string{"Sunday": {"06:00"}, "Monday": {"07:00"}})); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddSchedule(ctx, 2, b.ID, weekFrom(t, map[string][]string{"Monday": {"07:00", "17:30"}})); err != nil {
		t.Fatal(err)
	}

	week, err := s.LoadAllSchedules(ctx)
	if err != nil {
		t.Fatalf("LoadAllSchedules: %v", err)
	}
	ids, _ := week.Day(time.Monday).IDs(timeslot.NewTimeOfDay(7, 0, 0))
	if !reflect.DeepEqual(ids, []int64{a.ID, b.ID}) {
		t.Errorf("Monday 07:00 = %v, want [%d %d]", ids, a.ID, b.ID)
	}
	if week.SlotCount() != 3 {
		t.Errorf("SlotCount() = %d, want 3", week.SlotCount())
	}

	// 2024-04-14 is a Sunday.
	at, due, ok := week.NextTimePoint(time.Date(2024, 4, 14, 17, 50, 0, 0, time.UTC))
	if !ok || !at.Equal(time.Date(2024, 4, 15, 7, 0, 0, 0, time.UTC)) || len(due) != 2 {
		t.Errorf("NextTimePoint() = %v %v %v", at, due, ok)
	}
}

func TestLoadAllSchedulesSkipsMalformedEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := createRoute(t, s, 1)

	rows := []string{
		`{"Moonday":["07:00"],"Monday":["7am","08:00"],"Tuesday":[]}`,
		`not json`,
		`{"Friday":["18:45"]}`,
	}
	for _, raw := range rows {
		if err := s.DB().Exec("INSERT INTO route_schedules (route_id, day_time_mapping) VALUES (?, ?)", r.ID, raw).Error; err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	week, err := s.LoadAllSchedules(ctx)
	if err != nil {
		t.Fatalf("LoadAllSchedules: %v", err)
	}
	want := map[string][]string{"Monday": {"08:00"}, "Friday": {"18:45"}}
	if got := week.Mapping(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mapping() = %v, want %v", got, want)
	}
}

func TestDeleteRouteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := createRoute(t, s, 1)
	if _, err := s.AddSchedule(ctx, 1, r.ID, weekFrom(t, map[string][]string{"Monday": {"07:00"}})); err != nil {
		t.Fatal(err)
	}
	req := &models.APIRequestLog{RouteID: r.ID, RequestedAt: time.Now(), ResponseCode: 200}
	if err := s.RecordRequest(ctx, req); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSamples(ctx, []models.TripSample{{RouteID: r.ID, APIRequestID: req.ID, Available: true}}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRoute(ctx, 2, r.ID); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("foreign DeleteRoute() error = %v", err)
	}
	if err := s.DeleteRoute(ctx, 1, r.ID); err != nil {
		t.Fatalf("DeleteRoute: %v", err)
	}

	for _, model := range []any{&models.Route{}, &models.RouteSchedule{}, &models.APIRequestLog{}, &models.TripSample{}} {
		var n int64
		s.DB().Model(model).Count(&n)
		if n != 0 {
			t.Errorf("%T rows left: %d", model, n)
		}
	}
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := createRoute(t, s, 1)
	monday := time.Date(2024, 4, 15, 7, 0, 0, 0, time.UTC)

	samples := []models.TripSample{
		{RouteID: r.ID, SampledAt: monday, Weekday: int(time.Monday), TripClass: 1, ClassName: "econom", Available: true, Price: 300, WaitingSeconds: 120},
		{RouteID: r.ID, SampledAt: monday.Add(time.Hour), Weekday: int(time.Monday), TripClass: 1, ClassName: "econom", Available: true, Price: 500, WaitingSeconds: 60},
		{RouteID: r.ID, SampledAt: monday, Weekday: int(time.Monday), TripClass: 2, ClassName: "business", Available: false},
		{RouteID: r.ID, SampledAt: monday.Add(24 * time.Hour), Weekday: int(time.Tuesday), TripClass: 1, Available: true, Price: 999},
	}
	if err := s.RecordSamples(ctx, samples); err != nil {
		t.Fatal(err)
	}

	all, err := s.Statistics(ctx, 1, r.ID, StatisticsFilter{Weekday: time.Monday})
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Monday samples = %d, want 3", len(all))
	}

	available := true
	onlyAvailable, _ := s.Statistics(ctx, 1, r.ID, StatisticsFilter{Weekday: time.Monday, Available: &available})
	if len(onlyAvailable) != 2 {
		t.Errorf("available Monday samples = %d, want 2", len(onlyAvailable))
	}

	if _, err := s.Statistics(ctx, 3, r.ID, StatisticsFilter{}); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("foreign Statistics() error = %v", err)
	}

	summary := Summarize(all)
	if len(summary) != 2 {
		t.Fatalf("Summarize() = %+v", summary)
	}
	econom := summary[0]
	if econom.Samples != 2 || econom.MinPrice != 300 || econom.MaxPrice != 500 || econom.AvgPrice != 400 || econom.AvgWaitSeconds != 90 {
		t.Errorf("econom summary = %+v", econom)
	}
	business := summary[1]
	if business.Unavailable != 1 || business.MinPrice != 0 {
		t.Errorf("business summary = %+v", business)
	}
}
