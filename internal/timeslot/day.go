/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeslot

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNameMismatch is returned when merging days with different weekday names.
var ErrNameMismatch = errors.New("cannot merge days with different names")

type slot struct {
	at  TimeOfDay
	ids []int64
}

// Day is the timetable of one weekday. Slots are kept sorted by time; each
// slot carries the route identifiers due at that time, duplicates included.
// A slot with no identifiers is a valid boundary marker.
type Day struct {
	name  time.Weekday
	slots []slot
}

// NewDay returns an empty day.
func NewDay(name time.Weekday) *Day {
	return &Day{name: name}
}

// Name returns the weekday this day describes.
func (d *Day) Name() time.Weekday { return d.name }

// Len returns the number of slots.
func (d *Day) Len() int { return len(d.slots) }

// search returns the index of the first slot at or after t.
func (d *Day) search(t TimeOfDay) int {
	return sort.Search(len(d.slots), func(i int) bool { return d.slots[i].at >= t })
}

func (d *Day) find(t TimeOfDay) (int, bool) {
	i := d.search(t)
	return i, i < len(d.slots) && d.slots[i].at == t
}

// ensure returns the index of the slot at t, inserting an empty one if needed.
func (d *Day) ensure(t TimeOfDay) int {
	i, ok := d.find(t)
	if ok {
		return i
	}
	d.slots = append(d.slots, slot{})
	copy(d.slots[i+1:], d.slots[i:])
	d.slots[i] = slot{at: t}
	return i
}

// AddTime makes sure a slot exists at t without attaching any identifier.
func (d *Day) AddTime(t TimeOfDay) {
	d.ensure(t)
}

// AddToSchedule appends id to the slot at every given time.
func (d *Day) AddToSchedule(id int64, times ...TimeOfDay) {
	for _, t := range times {
		i := d.ensure(t)
		d.slots[i].ids = append(d.slots[i].ids, id)
	}
}

// RemoveFromSchedule drops the first occurrence of id from each given slot.
// A slot left without identifiers is removed entirely.
func (d *Day) RemoveFromSchedule(id int64, times ...TimeOfDay) {
	for _, t := range times {
		i, ok := d.find(t)
		if !ok {
			continue
		}
		ids := d.slots[i].ids
		for j, v := range ids {
			if v == id {
				d.slots[i].ids = append(ids[:j:j], ids[j+1:]...)
				break
			}
		}
		if len(d.slots[i].ids) == 0 {
			d.slots = append(d.slots[:i], d.slots[i+1:]...)
		}
	}
}

// Merge returns a new day holding the slots of both days. Identifier lists
// of shared times are concatenated, receiver first. Neither input is modified.
func (d *Day) Merge(other *Day) (*Day, error) {
	if other.name != d.name {
		return nil, fmt.Errorf("%w: %s and %s", ErrNameMismatch, d.name, other.name)
	}
	merged := d.Clone()
	for _, s := range other.slots {
		i := merged.ensure(s.at)
		merged.slots[i].ids = append(merged.slots[i].ids, s.ids...)
	}
	return merged, nil
}

// NextTimePoint returns the earliest slot strictly after from.
func (d *Day) NextTimePoint(from TimeOfDay) (TimeOfDay, []int64, bool) {
	return d.nextFrom(from + 1)
}

// nextFrom returns the earliest slot at or after from.
func (d *Day) nextFrom(from TimeOfDay) (TimeOfDay, []int64, bool) {
	i := d.search(from)
	if i == len(d.slots) {
		return 0, []int64{}, false
	}
	return d.slots[i].at, cloneIDs(d.slots[i].ids), true
}

// Times returns the slot times in ascending order.
func (d *Day) Times() []TimeOfDay {
	out := make([]TimeOfDay, len(d.slots))
	for i, s := range d.slots {
		out[i] = s.at
	}
	return out
}

// IDs returns a copy of the identifiers bound to t.
func (d *Day) IDs(t TimeOfDay) ([]int64, bool) {
	i, ok := d.find(t)
	if !ok {
		return nil, false
	}
	return cloneIDs(d.slots[i].ids), true
}

// Clone returns a deep copy.
func (d *Day) Clone() *Day {
	c := &Day{name: d.name, slots: make([]slot, len(d.slots))}
	for i, s := range d.slots {
		c.slots[i] = slot{at: s.at, ids: cloneIDs(s.ids)}
	}
	return c
}

// Equal reports whether both days share a name and the same slots, comparing
// identifier lists as multisets.
func (d *Day) Equal(other *Day) bool {
	if other == nil || d.name != other.name || len(d.slots) != len(other.slots) {
		return false
	}
	for i, s := range d.slots {
		o := other.slots[i]
		if s.at != o.at || !sameMultiset(s.ids, o.ids) {
			return false
		}
	}
	return true
}

func sameMultiset(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[int64]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	return true
}

func cloneIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}
