/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeslot models a weekly recurring timetable: seven days, each
// holding time-of-day slots bound to route identifiers.
package timeslot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownWeekday is returned for names outside Sunday..Saturday.
	ErrUnknownWeekday = errors.New("unknown weekday")
	// ErrInvalidTimeOfDay is returned when a clock value cannot be parsed.
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
)

// TimeOfDay is a wall-clock time without a date, stored as seconds since midnight.
type TimeOfDay int32

const secondsPerDay = 24 * 60 * 60

// Midnight is 00:00:00.
const Midnight TimeOfDay = 0

// NewTimeOfDay builds a TimeOfDay. It panics on out-of-range components,
// use ParseTimeOfDay for untrusted input.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		panic(fmt.Sprintf("timeslot: invalid time of day %02d:%02d:%02d", hour, minute, second))
	}
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// TimeOfDayOf extracts the clock part of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	v := strings.TrimSpace(value)
	layout := "15:04"
	if strings.Count(v, ":") == 2 {
		layout = "15:04:05"
	}
	parsed, err := time.Parse(layout, v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	return TimeOfDayOf(parsed), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }

// Second returns the second component.
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Valid reports whether t lies within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t < secondsPerDay }

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) * time.Second }

// On places t on the calendar date of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, t.Hour(), t.Minute(), t.Second(), 0, d.Location())
}

// HHMM formats the time as "HH:MM", dropping seconds.
func (t TimeOfDay) HHMM() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Weekdays lists the week in time.Weekday order, starting on Sunday.
var Weekdays = [7]time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// ParseWeekday maps an English weekday name ("Monday") to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	for _, wd := range Weekdays {
		if wd.String() == name {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
}
