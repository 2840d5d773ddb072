/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Route is a trip between two points owned by one client.
type Route struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"route_id"`
	ClientID      int64     `gorm:"index;not null" json:"client_id"`
	FromLatitude  float64   `json:"-"`
	FromLongitude float64   `json:"-"`
	DestLatitude  float64   `json:"-"`
	DestLongitude float64   `json:"-"`
	Comment       string    `gorm:"type:text" json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// From returns the trip origin.
func (r Route) From() Coordinate {
	return Coordinate{Latitude: r.FromLatitude, Longitude: r.FromLongitude}
}

// Dest returns the trip destination.
func (r Route) Dest() Coordinate {
	return Coordinate{Latitude: r.DestLatitude, Longitude: r.DestLongitude}
}

// SetEndpoints stores both trip ends.
func (r *Route) SetEndpoints(from, dest Coordinate) {
	r.FromLatitude, r.FromLongitude = from.Latitude, from.Longitude
	r.DestLatitude, r.DestLongitude = dest.Latitude, dest.Longitude
}

// RouteSchedule is one stored sampling timetable for a route, in the weekday
// to "HH:MM" mapping form. A route may have several; they are merged on load.
type RouteSchedule struct {
	ID             int64               `gorm:"primaryKey;autoIncrement"`
	RouteID        int64               `gorm:"index;not null"`
	DayTimeMapping map[string][]string `gorm:"serializer:json;type:text"`
	CreatedAt      time.Time
}

// APIRequestLog keeps every request sent to the ride-pricing API together
// with the raw response.
type APIRequestLog struct {
	ID            int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	RouteID       int64             `gorm:"index;not null" json:"route_id"`
	RequestedAt   time.Time         `gorm:"index" json:"requested_at"`
	RequestParams map[string]string `gorm:"serializer:json;type:text" json:"request_params"`
	ResponseCode  int               `json:"response_code"`
	ResponseBody  string            `gorm:"type:text" json:"response_body"`
	ArchiveKey    string            `json:"archive_key,omitempty"`
}

// TripSample is one tariff option observed for a route at a point in time.
// Unavailable options carry only the class.
type TripSample struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RouteID        int64     `gorm:"index:idx_trip_samples_route_day;not null" json:"route_id"`
	APIRequestID   int64     `gorm:"index" json:"api_request_id"`
	SampledAt      time.Time `json:"sampled_at"`
	Weekday        int       `gorm:"index:idx_trip_samples_route_day" json:"weekday"`
	TripClass      int       `json:"trip_class"`
	ClassName      string    `gorm:"type:varchar(50)" json:"class_name"`
	Available      bool      `json:"available"`
	Price          float64   `json:"price"`
	Distance       float64   `json:"distance"`
	TravelSeconds  float64   `json:"travel_seconds"`
	WaitingSeconds float64   `json:"waiting_seconds"`
}
