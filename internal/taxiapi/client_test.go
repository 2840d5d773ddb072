/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package taxiapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/friendsincode/farewatch/internal/models"
)

const sampleBody = `{
  "currency": "RUB",
  "distance": 61529.85,
  "time": 3114.2,
  "options": [
    {"class_level": 50, "class_name": "econom", "class_text": "Economy", "min_price": 99, "price": 1043, "waiting_time": 203.6},
    {"class_level": 70, "class_name": "business", "class_text": "Comfort", "min_price": 199, "price": 1400}
  ]
}`

func testRoute() (models.Coordinate, models.Coordinate) {
	return models.Coordinate{Latitude: 55.74, Longitude: 37.62}, models.Coordinate{Latitude: 55.97, Longitude: 37.41}
}

func TestRouteInfoRequest(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/taxi_info", ClientID: "clid-1", APIKey: "secret", Classes: "econom,business"}, srv.Client())
	from, dest := testRoute()
	resp, err := c.RouteInfo(context.Background(), from, dest)
	if err != nil {
		t.Fatalf("RouteInfo: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got.URL.Path != "/taxi_info" {
		t.Errorf("path = %q", got.URL.Path)
	}
	q := got.URL.Query()
	if rll := q.Get("rll"); rll != "37.62,55.74~37.41,55.97" {
		t.Errorf("rll = %q", rll)
	}
	if q.Get("clid") != "clid-1" || q.Get("apikey") != "secret" || q.Get("class") != "econom,business" {
		t.Errorf("query = %v", q)
	}
	if accept := got.Header.Get("Accept"); accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
	if _, ok := resp.Params["apikey"]; ok {
		t.Error("api key must not be kept in logged params")
	}
	if resp.Params["rll"] == "" {
		t.Error("rll missing from logged params")
	}
	if string(resp.Body) != sampleBody {
		t.Error("body not returned verbatim")
	}
}

func TestRouteInfoNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, srv.Client())
	from, dest := testRoute()
	resp, err := c.RouteInfo(context.Background(), from, dest)
	if err != nil {
		t.Fatalf("non-2xx should not be an error: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestRouteInfoTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second}, nil)
	from, dest := testRoute()
	if _, err := c.RouteInfo(context.Background(), from, dest); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestRouteInfoRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, RequestsPerSecond: 0.001}, srv.Client())
	from, dest := testRoute()
	if _, err := c.RouteInfo(context.Background(), from, dest); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.RouteInfo(ctx, from, dest)
	if err == nil {
		t.Fatal("expected rate limit wait to fail")
	}
}

func TestParseTrips(t *testing.T) {
	trips, err := ParseTrips([]byte(sampleBody))
	if err != nil {
		t.Fatalf("ParseTrips: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("len = %d", len(trips))
	}

	econom := trips[0]
	if !econom.Available() || econom.WaitingSeconds() != 203.6 {
		t.Errorf("econom available=%v waiting=%v", econom.Available(), econom.WaitingSeconds())
	}
	if econom.Distance != 61529.85 || econom.TravelSeconds != 3114.2 {
		t.Errorf("econom distance=%v time=%v", econom.Distance, econom.TravelSeconds)
	}

	business := trips[1]
	if business.Available() || business.WaitingSeconds() != 0 {
		t.Errorf("business should be unavailable")
	}
}

func TestParseTripsInvalid(t *testing.T) {
	if _, err := ParseTrips([]byte("<html>")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTripSample(t *testing.T) {
	trips, err := ParseTrips([]byte(sampleBody))
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 4, 16, 11, 50, 0, 0, time.UTC)

	s := trips[0].Sample(7, 3, at)
	if s.RouteID != 7 || s.APIRequestID != 3 || s.Weekday != int(time.Tuesday) {
		t.Errorf("sample ids = %+v", s)
	}
	if s.TripClass != 50 || s.ClassName != "econom" || !s.Available || s.Price != 1043 {
		t.Errorf("sample quote = %+v", s)
	}

	u := trips[1].Sample(7, 3, at)
	if u.Available || u.Price != 0 || u.WaitingSeconds != 0 {
		t.Errorf("unavailable sample = %+v", u)
	}

	var noName TripInfo
	noName.Option.ClassText = "Comfort+"
	if got := noName.Sample(1, 1, at).ClassName; got != "Comfort+" {
		t.Errorf("ClassName fallback = %q", got)
	}
}

func TestErrUnexpectedStatusWraps(t *testing.T) {
	err := StatusError(502)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatal("StatusError should wrap ErrUnexpectedStatus")
	}
}
