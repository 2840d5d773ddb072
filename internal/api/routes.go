/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/friendsincode/farewatch/internal/events"
	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/timeslot"
)

type routeRequest struct {
	From     models.Coordinate   `json:"from"`
	Dest     models.Coordinate   `json:"dest"`
	Comment  string              `json:"comment"`
	Schedule map[string][]string `json:"schedule,omitempty"`
}

type routeResponse struct {
	RouteID   int64               `json:"route_id"`
	ClientID  int64               `json:"client_id"`
	From      models.Coordinate   `json:"from"`
	Dest      models.Coordinate   `json:"dest"`
	Comment   string              `json:"comment"`
	CreatedAt time.Time           `json:"created_at"`
	Schedule  map[string][]string `json:"schedule,omitempty"`
}

func toRouteResponse(r *models.Route) routeResponse {
	return routeResponse{
		RouteID:   r.ID,
		ClientID:  r.ClientID,
		From:      r.From(),
		Dest:      r.Dest(),
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

func (a *API) handleRoutesList(w http.ResponseWriter, r *http.Request) {
	cid := clientID(r)
	routes, err := a.store.ListRoutes(r.Context(), cid)
	if err != nil {
		a.writeStoreError(w, err, "list routes")
		return
	}
	out := make([]routeResponse, 0, len(routes))
	for i := range routes {
		out = append(out, toRouteResponse(&routes[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"client_id": cid, "routes": out})
}

// handleRoutesCreate creates a route and, when the body carries one, its
// first schedule.
func (a *API) handleRoutesCreate(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var week *timeslot.Week
	if len(req.Schedule) > 0 {
		parsed, err := timeslot.WeekFromMapping(req.Schedule)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid_schedule", err.Error())
			return
		}
		if parsed.IsEmpty() {
			writeError(w, http.StatusBadRequest, "empty_schedule")
			return
		}
		week = parsed
	}

	route := &models.Route{ClientID: clientID(r), Comment: req.Comment}
	route.SetEndpoints(req.From, req.Dest)
	if err := a.store.CreateRoute(r.Context(), route); err != nil {
		a.writeStoreError(w, err, "create route")
		return
	}
	a.publish(events.EventRouteCreated, events.Payload{"route_id": route.ID, "client_id": route.ClientID})

	resp := toRouteResponse(route)
	if week != nil {
		if _, err := a.store.AddSchedule(r.Context(), route.ClientID, route.ID, week); err != nil {
			a.writeStoreError(w, err, "add schedule")
			return
		}
		resp.Schedule = week.Mapping()
		a.publish(events.EventScheduleChanged, events.Payload{"route_id": route.ID, "action": "add"})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleRoutesGet(w http.ResponseWriter, r *http.Request) {
	id, ok := routeIDParam(w, r)
	if !ok {
		return
	}
	cid := clientID(r)
	route, err := a.store.GetRoute(r.Context(), cid, id)
	if err != nil {
		a.writeStoreError(w, err, "get route")
		return
	}
	week, err := a.store.RouteSchedule(r.Context(), cid, id)
	if err != nil {
		a.writeStoreError(w, err, "get schedule")
		return
	}
	resp := toRouteResponse(route)
	resp.Schedule = week.Mapping()
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRoutesDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := routeIDParam(w, r)
	if !ok {
		return
	}
	cid := clientID(r)
	if err := a.store.DeleteRoute(r.Context(), cid, id); err != nil {
		a.writeStoreError(w, err, "delete route")
		return
	}
	a.publish(events.EventRouteDeleted, events.Payload{"route_id": id, "client_id": cid})
	writeJSON(w, http.StatusOK, map[string]any{"route_id": id, "client_id": cid, "status": "deleted"})
}
