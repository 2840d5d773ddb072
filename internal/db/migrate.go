/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/farewatch/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema with GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Route{},
		&models.RouteSchedule{},
		&models.APIRequestLog{},
		&models.TripSample{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
