/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/farewatch/internal/models"
	"github.com/friendsincode/farewatch/internal/timeslot"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Seed routes and their schedules from a YAML file",
	Long: `Seed routes and their schedules from a YAML file:

  client_id: 1
  routes:
    - comment: home to office
      from: {latitude: 55.7558, longitude: 37.6173}
      dest: {latitude: 55.7033, longitude: 37.5302}
      schedule:
        Monday: ["08:00", "18:30"]
        Friday: ["19:00"]

A route may override client_id. Every route is validated before anything is
written.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the file without writing")
}

type seedFile struct {
	ClientID int64       `yaml:"client_id"`
	Routes   []seedRoute `yaml:"routes"`
}

type seedRoute struct {
	ClientID int64               `yaml:"client_id"`
	Comment  string              `yaml:"comment"`
	From     seedCoordinate      `yaml:"from"`
	Dest     seedCoordinate      `yaml:"dest"`
	Schedule map[string][]string `yaml:"schedule"`
}

type seedCoordinate struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

func (c seedCoordinate) coordinate() models.Coordinate {
	return models.Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

// seedPlan is a validated route ready to be written.
type seedPlan struct {
	route *models.Route
	week  *timeslot.Week
}

// routeWriter is the part of the store used by imports.
type routeWriter interface {
	CreateRoute(ctx context.Context, route *models.Route) error
	AddSchedule(ctx context.Context, clientID, routeID int64, week *timeslot.Week) (*models.RouteSchedule, error)
}

func parseSeed(data []byte) ([]seedPlan, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Routes) == 0 {
		return nil, errors.New("seed file has no routes")
	}

	plans := make([]seedPlan, 0, len(seed.Routes))
	var errs error
	for i, r := range seed.Routes {
		clientID := r.ClientID
		if clientID == 0 {
			clientID = seed.ClientID
		}
		if clientID <= 0 {
			errs = errors.Join(errs, fmt.Errorf("route %d: client_id is required", i+1))
			continue
		}
		route := &models.Route{ClientID: clientID, Comment: r.Comment}
		route.SetEndpoints(r.From.coordinate(), r.Dest.coordinate())
		if !route.From().Valid() || !route.Dest().Valid() {
			errs = errors.Join(errs, fmt.Errorf("route %d: coordinates out of range", i+1))
			continue
		}

		var week *timeslot.Week
		if len(r.Schedule) > 0 {
			w, err := timeslot.WeekFromMapping(r.Schedule)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("route %d: %w", i+1, err))
				continue
			}
			if !w.IsEmpty() {
				week = w
			}
		}
		plans = append(plans, seedPlan{route: route, week: week})
	}
	if errs != nil {
		return nil, errs
	}
	return plans, nil
}

func applySeed(ctx context.Context, w routeWriter, plans []seedPlan) (int, error) {
	for i, p := range plans {
		if err := w.CreateRoute(ctx, p.route); err != nil {
			return i, fmt.Errorf("route %d: %w", i+1, err)
		}
		if p.week == nil {
			continue
		}
		if _, err := w.AddSchedule(ctx, p.route.ClientID, p.route.ID, p.week); err != nil {
			return i, fmt.Errorf("route %d schedule: %w", i+1, err)
		}
	}
	return len(plans), nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	plans, err := parseSeed(data)
	if err != nil {
		return err
	}

	if importDryRun {
		logger.Info().Int("routes", len(plans)).Str("file", args[0]).Msg("seed file is valid (dry run)")
		return nil
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := applySeed(cmd.Context(), st, plans)
	logger.Info().Int("routes", n).Str("file", args[0]).Msg("routes imported")
	return err
}
