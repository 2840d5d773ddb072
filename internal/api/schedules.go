/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"

	"github.com/friendsincode/farewatch/internal/events"
	"github.com/friendsincode/farewatch/internal/store"
	"github.com/friendsincode/farewatch/internal/timeslot"
)

type scheduleRequest struct {
	Schedule map[string][]string `json:"schedule"`
}

func (a *API) handleScheduleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := routeIDParam(w, r)
	if !ok {
		return
	}
	week, err := a.store.RouteSchedule(r.Context(), clientID(r), id)
	if err != nil {
		a.writeStoreError(w, err, "get schedule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"route_id": id, "schedule": week.Mapping()})
}

// handleScheduleAdd stores an additional schedule; it is merged with the
// route's existing ones.
func (a *API) handleScheduleAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := routeIDParam(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	week, err := timeslot.WeekFromMapping(req.Schedule)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_schedule", err.Error())
		return
	}

	cid := clientID(r)
	if _, err := a.store.AddSchedule(r.Context(), cid, id, week); err != nil {
		a.writeStoreError(w, err, "add schedule")
		return
	}
	merged, err := a.store.RouteSchedule(r.Context(), cid, id)
	if err != nil {
		a.writeStoreError(w, err, "get schedule")
		return
	}
	a.publish(events.EventScheduleChanged, events.Payload{"route_id": id, "action": "add"})
	writeJSON(w, http.StatusCreated, map[string]any{"route_id": id, "schedule": merged.Mapping()})
}

func (a *API) handleScheduleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := routeIDParam(w, r)
	if !ok {
		return
	}
	n, err := a.store.DeleteSchedule(r.Context(), clientID(r), id)
	if err != nil {
		a.writeStoreError(w, err, "delete schedule")
		return
	}
	a.publish(events.EventScheduleChanged, events.Payload{"route_id": id, "action": "delete"})
	writeJSON(w, http.StatusOK, map[string]any{"route_id": id, "deleted": n})
}

func (a *API) handleStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := routeIDParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	day, err := timeslot.ParseWeekday(q.Get("day"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_day", err.Error())
		return
	}
	filter := store.StatisticsFilter{Weekday: day}
	if raw := q.Get("available"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_available")
			return
		}
		filter.Available = &v
	}

	samples, err := a.store.Statistics(r.Context(), clientID(r), id, filter)
	if err != nil {
		a.writeStoreError(w, err, "statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"route_id": id,
		"day":      day.String(),
		"samples":  samples,
		"summary":  store.Summarize(samples),
	})
}
