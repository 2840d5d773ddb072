/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/friendsincode/farewatch/internal/db"
	"github.com/friendsincode/farewatch/internal/scheduler/state"
)

type healthResponse struct {
	Status   string `json:"status"`
	Mode     string `json:"mode"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Mode: s.mode.String(), Database: "ok"}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx, s.db); err != nil {
		s.logger.Warn().Err(err).Msg("health check: database unreachable")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	if s.cache != nil {
		resp.Cache = "ok"
		if !s.cache.IsAvailable() {
			resp.Cache = "disabled"
		}
	}

	writeJSON(w, status, resp)
}

type schedulerStatus struct {
	Slots      int                 `json:"slots"`
	NextFiring *time.Time          `json:"next_firing,omitempty"`
	NextRoutes []int64             `json:"next_route_ids,omitempty"`
	LastFiring *state.Firing       `json:"last_firing,omitempty"`
	Recent     []state.Firing      `json:"recent"`
	Schedule   map[string][]string `json:"schedule"`
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	week := s.scheduler.Schedule()
	resp := schedulerStatus{
		Slots:    week.SlotCount(),
		Recent:   s.scheduler.History().Recent(),
		Schedule: week.Mapping(),
	}
	if last, ok := s.scheduler.History().Last(); ok {
		resp.LastFiring = &last
	}
	if at, ids, ok := s.scheduler.NextFiring(); ok {
		resp.NextFiring = &at
		resp.NextRoutes = ids
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
