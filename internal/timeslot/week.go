/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeslot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrMalformedEntry marks a schedule mapping entry that cannot be parsed.
var ErrMalformedEntry = errors.New("malformed schedule entry")

// MalformedEntryError describes the offending weekday/time pair.
type MalformedEntryError struct {
	Weekday string
	Value   string
	Err     error
}

func (e *MalformedEntryError) Error() string {
	switch {
	case e.Weekday == "":
		return fmt.Sprintf("%s: %v", ErrMalformedEntry, e.Err)
	case e.Value == "":
		return fmt.Sprintf("%s: weekday %q: %v", ErrMalformedEntry, e.Weekday, e.Err)
	}
	return fmt.Sprintf("%s: %s %q: %v", ErrMalformedEntry, e.Weekday, e.Value, e.Err)
}

func (e *MalformedEntryError) Unwrap() []error { return []error{ErrMalformedEntry, e.Err} }

// searchDays bounds Week.NextTimePoint: the starting date plus six more.
const searchDays = 7

// Week holds one Day per weekday. All seven days always exist.
type Week struct {
	days [7]*Day
}

// NewWeek returns a week of seven empty days.
func NewWeek() *Week {
	w := &Week{}
	for _, wd := range Weekdays {
		w.days[wd] = NewDay(wd)
	}
	return w
}

// Day returns the day for wd. The returned value is owned by the week.
func (w *Week) Day(wd time.Weekday) *Day {
	return w.days[wd]
}

// Days returns all seven days, Sunday first.
func (w *Week) Days() []*Day {
	out := make([]*Day, len(w.days))
	copy(out, w.days[:])
	return out
}

// Add merges day into the week's day of the same name.
func (w *Week) Add(day *Day) error {
	merged, err := w.days[day.Name()].Merge(day)
	if err != nil {
		return err
	}
	w.days[day.Name()] = merged
	return nil
}

// SlotCount returns the number of slots over the whole week.
func (w *Week) SlotCount() int {
	n := 0
	for _, d := range w.days {
		n += d.Len()
	}
	return n
}

// IsEmpty reports whether no day has any slot.
func (w *Week) IsEmpty() bool { return w.SlotCount() == 0 }

// NextTimePoint finds the first slot strictly after from, scanning from's
// date and the six following dates. Only the start date is strict: on the
// following dates the search begins at midnight inclusive, so a 00:00 slot
// is found. The result is expressed in from's location.
func (w *Week) NextTimePoint(from time.Time) (time.Time, []int64, bool) {
	t, ids, ok := w.days[from.Weekday()].NextTimePoint(TimeOfDayOf(from))
	if ok {
		return t.On(from), ids, true
	}
	cursor := from
	for advanced := 1; advanced < searchDays; advanced++ {
		y, m, d := cursor.Date()
		cursor = time.Date(y, m, d+1, 0, 0, 0, 0, from.Location())
		if t, ids, ok := w.days[cursor.Weekday()].nextFrom(Midnight); ok {
			return t.On(cursor), ids, true
		}
	}
	return time.Time{}, []int64{}, false
}

// Mapping renders the week's slot times as weekday name to sorted "HH:MM"
// strings. Identifiers are not part of the mapping and days without slots
// are omitted.
func (w *Week) Mapping() map[string][]string {
	out := make(map[string][]string)
	for _, d := range w.days {
		if d.Len() == 0 {
			continue
		}
		times := make([]string, 0, d.Len())
		for _, t := range d.Times() {
			times = append(times, t.HHMM())
		}
		sort.Strings(times)
		out[d.Name().String()] = times
	}
	return out
}

// WeekFromMapping builds a week of identifier-less slots from a mapping
// produced by Mapping.
func WeekFromMapping(mapping map[string][]string) (*Week, error) {
	w := NewWeek()
	for name, times := range mapping {
		wd, err := ParseWeekday(name)
		if err != nil {
			return nil, &MalformedEntryError{Weekday: name, Err: err}
		}
		day := NewDay(wd)
		for _, raw := range times {
			t, err := ParseTimeOfDay(raw)
			if err != nil {
				return nil, &MalformedEntryError{Weekday: name, Value: raw, Err: err}
			}
			day.AddTime(NewTimeOfDay(t.Hour(), t.Minute(), 0))
		}
		if err := w.Add(day); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// MarshalJSON encodes the week in its mapping form.
func (w *Week) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Mapping())
}

// UnmarshalJSON decodes the mapping form.
func (w *Week) UnmarshalJSON(data []byte) error {
	var mapping map[string][]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return err
	}
	parsed, err := WeekFromMapping(mapping)
	if err != nil {
		return err
	}
	*w = *parsed
	return nil
}

// Clone returns a deep copy.
func (w *Week) Clone() *Week {
	c := &Week{}
	for i, d := range w.days {
		c.days[i] = d.Clone()
	}
	return c
}

// Equal compares every day, identifiers included.
func (w *Week) Equal(other *Week) bool {
	if other == nil {
		return false
	}
	for i, d := range w.days {
		if !d.Equal(other.days[i]) {
			return false
		}
	}
	return true
}

// SameSlots compares slot times only, ignoring identifiers.
func (w *Week) SameSlots(other *Week) bool {
	if other == nil {
		return false
	}
	for i, d := range w.days {
		a, b := d.Times(), other.days[i].Times()
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}
