/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package taxiapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/friendsincode/farewatch/internal/models"
)

// Option is one tariff class quote.
type Option struct {
	ClassLevel  int      `json:"class_level"`
	ClassName   string   `json:"class_name"`
	ClassText   string   `json:"class_text"`
	Price       float64  `json:"price"`
	MinPrice    float64  `json:"min_price"`
	WaitingTime *float64 `json:"waiting_time,omitempty"`
}

type routeInfo struct {
	Currency string   `json:"currency"`
	Distance float64  `json:"distance"`
	Time     float64  `json:"time"`
	Options  []Option `json:"options"`
}

// TripInfo is a quote for one class on a route.
type TripInfo struct {
	Distance      float64
	TravelSeconds float64
	Option        Option
}

// Available reports whether a car can be ordered in this class; the API
// omits the waiting time when none is available.
func (t TripInfo) Available() bool { return t.Option.WaitingTime != nil }

// WaitingSeconds returns the expected pickup wait, zero when unavailable.
func (t TripInfo) WaitingSeconds() float64 {
	if t.Option.WaitingTime == nil {
		return 0
	}
	return *t.Option.WaitingTime
}

// Sample converts the quote into a stored sample.
func (t TripInfo) Sample(routeID, requestID int64, at time.Time) models.TripSample {
	name := t.Option.ClassName
	if name == "" {
		name = t.Option.ClassText
	}
	s := models.TripSample{
		RouteID:        routeID,
		APIRequestID:   requestID,
		SampledAt:      at,
		Weekday:        int(at.Weekday()),
		TripClass:      t.Option.ClassLevel,
		ClassName:      name,
		Available:      t.Available(),
		Distance:       t.Distance,
		TravelSeconds:  t.TravelSeconds,
		WaitingSeconds: t.WaitingSeconds(),
	}
	if s.Available {
		s.Price = t.Option.Price
	}
	return s
}

// ParseTrips decodes a successful response into one TripInfo per option.
func ParseTrips(body []byte) ([]TripInfo, error) {
	var info routeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode route info: %w", err)
	}
	trips := make([]TripInfo, 0, len(info.Options))
	for _, opt := range info.Options {
		trips = append(trips, TripInfo{Distance: info.Distance, TravelSeconds: info.Time, Option: opt})
	}
	return trips, nil
}
