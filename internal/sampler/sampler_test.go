/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sampler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/farewatch/internal/events"
	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/store"
	"github.com/friendsincode/farewatch/internal/taxiapi"
)

const quote = `{"distance": 12000, "time": 1500, "options": [
  {"class_level": 50, "class_name": "econom", "class_text": "Economy", "price": 420, "waiting_time": 180},
  {"class_level": 70, "class_name": "business", "class_text": "Comfort", "price": 610}
]}`

type memoryStore struct {
	routes   map[int64]*models.Route
	requests []models.APIRequestLog
	samples  []models.TripSample
	failOn   string
}

func newMemoryStore() *memoryStore {
	r := &models.Route{ID: 9, ClientID: 1}
	r.SetEndpoints(models.Coordinate{Latitude: 55.7, Longitude: 37.6}, models.Coordinate{Latitude: 55.9, Longitude: 37.4})
	return &memoryStore{routes: map[int64]*models.Route{9: r}}
}

func (m *memoryStore) LoadRoute(_ context.Context, id int64) (*models.Route, error) {
	r, ok := m.routes[id]
	if !ok {
		return nil, store.ErrRouteNotFound
	}
	return r, nil
}

func (m *memoryStore) RecordRequest(_ context.Context, e *models.APIRequestLog) error {
	if m.failOn == "request" {
		return errors.New("db down")
	}
	e.ID = int64(len(m.requests) + 1)
	m.requests = append(m.requests, *e)
	return nil
}

func (m *memoryStore) RecordSamples(_ context.Context, s []models.TripSample) error {
	if m.failOn == "samples" {
		return errors.New("db down")
	}
	m.samples = append(m.samples, s...)
	return nil
}

type stubClient struct {
	resp  *taxiapi.Response
	err   error
	calls int
	from  models.Coordinate
}

func (c *stubClient) RouteInfo(_ context.Context, from, _ models.Coordinate) (*taxiapi.Response, error) {
	c.calls++
	c.from = from
	return c.resp, c.err
}

type stubArchive struct {
	keys []string
	err  error
}

func (a *stubArchive) Save(_ context.Context, routeID int64, _ time.Time, _ []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := "responses/test.json"
	a.keys = append(a.keys, key)
	return key, nil
}

var wednesday = time.Date(2024, 4, 17, 8, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return wednesday }

func TestExecuteRecordsSamples(t *testing.T) {
	st := newMemoryStore()
	client := &stubClient{resp: &taxiapi.Response{StatusCode: http.StatusOK, Params: map[string]string{"rll": "x"}, Body: []byte(quote)}}
	arch := &stubArchive{}
	bus := events.NewBus()
	recorded := bus.Subscribe(events.EventSampleRecorded)

	s := New(st, client, zerolog.Nop(), WithArchive(arch), WithPublisher(bus), WithNow(fixedNow))
	if err := s.Execute(context.Background(), 9); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if client.from.Latitude != 55.7 {
		t.Errorf("client called with %+v", client.from)
	}
	if len(st.requests) != 1 {
		t.Fatalf("requests = %d", len(st.requests))
	}
	req := st.requests[0]
	if req.ResponseCode != 200 || req.ResponseBody != quote || req.ArchiveKey != "responses/test.json" || !req.RequestedAt.Equal(wednesday) {
		t.Errorf("request log = %+v", req)
	}

	if len(st.samples) != 2 {
		t.Fatalf("samples = %d", len(st.samples))
	}
	for _, sm := range st.samples {
		if sm.APIRequestID != req.ID || sm.RouteID != 9 || sm.Weekday != int(time.Wednesday) {
			t.Errorf("sample = %+v", sm)
		}
	}
	if !st.samples[0].Available || st.samples[1].Available {
		t.Errorf("availability = %v, %v", st.samples[0].Available, st.samples[1].Available)
	}

	select {
	case p := <-recorded:
		if p["route_id"] != int64(9) || p["available"] != 1 || p["samples"] != 2 {
			t.Errorf("event payload = %v", p)
		}
	default:
		t.Error("sample.recorded not published")
	}
}

func TestExecuteNonOKLogsRequestOnly(t *testing.T) {
	st := newMemoryStore()
	client := &stubClient{resp: &taxiapi.Response{StatusCode: http.StatusForbidden, Body: []byte(`{"error":"key"}`)}}
	bus := events.NewBus()
	failed := bus.Subscribe(events.EventSampleFailed)

	err := New(st, client, zerolog.Nop(), WithPublisher(bus), WithNow(fixedNow)).Execute(context.Background(), 9)
	if !errors.Is(err, taxiapi.ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want ErrUnexpectedStatus", err)
	}
	if len(st.requests) != 1 || st.requests[0].ResponseCode != http.StatusForbidden {
		t.Errorf("requests = %+v", st.requests)
	}
	if len(st.samples) != 0 {
		t.Errorf("samples = %d, want 0", len(st.samples))
	}
	select {
	case <-failed:
	default:
		t.Error("sample.failed not published")
	}
}

func TestExecuteErrors(t *testing.T) {
	ok := &taxiapi.Response{StatusCode: http.StatusOK, Body: []byte(quote)}

	tests := []struct {
		name     string
		routeID  int64
		client   *stubClient
		failOn   string
		wantReqs int
		wantIs   error
	}{
		{name: "unknown route", routeID: 404, client: &stubClient{resp: ok}, wantIs: store.ErrRouteNotFound},
		{name: "transport", routeID: 9, client: &stubClient{err: errors.New("dial tcp: refused")}},
		{name: "request log", routeID: 9, client: &stubClient{resp: ok}, failOn: "request"},
		{name: "samples", routeID: 9, client: &stubClient{resp: ok}, failOn: "samples", wantReqs: 1},
		{name: "bad body", routeID: 9, client: &stubClient{resp: &taxiapi.Response{StatusCode: 200, Body: []byte("<html>")}}, wantReqs: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemoryStore()
			st.failOn = tt.failOn
			err := New(st, tt.client, zerolog.Nop(), WithNow(fixedNow)).Execute(context.Background(), tt.routeID)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
			if len(st.requests) != tt.wantReqs {
				t.Errorf("requests = %d, want %d", len(st.requests), tt.wantReqs)
			}
		})
	}
}

func TestExecuteArchiveFailureIsNotFatal(t *testing.T) {
	st := newMemoryStore()
	client := &stubClient{resp: &taxiapi.Response{StatusCode: http.StatusOK, Body: []byte(quote)}}
	arch := &stubArchive{err: errors.New("bucket missing")}

	if err := New(st, client, zerolog.Nop(), WithArchive(arch), WithNow(fixedNow)).Execute(context.Background(), 9); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if st.requests[0].ArchiveKey != "" {
		t.Errorf("archive key = %q", st.requests[0].ArchiveKey)
	}
	if len(st.samples) != 2 {
		t.Errorf("samples = %d", len(st.samples))
	}
}
