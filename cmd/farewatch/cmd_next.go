/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/farewatch/internal/timeslot"
)

var nextFrom string

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Print the next sampling slot computed from storage",
	RunE:  runNext,
}

func init() {
	rootCmd.AddCommand(nextCmd)
	nextCmd.Flags().StringVar(&nextFrom, "from", "", "Reference time in RFC 3339 (default: now)")
}

func runNext(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	from := time.Now().In(cfg.Location)
	if nextFrom != "" {
		parsed, err := time.Parse(time.RFC3339, nextFrom)
		if err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
		from = parsed.In(cfg.Location)
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	week, err := st.LoadAllSchedules(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeNext(week, from))
	return nil
}

// describeNext renders the first slot strictly after from.
func describeNext(week *timeslot.Week, from time.Time) string {
	at, ids, ok := week.NextTimePoint(from)
	if !ok {
		return fmt.Sprintf("no sampling slot within a week of %s (%d slots scheduled)", from.Format(time.RFC3339), week.SlotCount())
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s %s in %s: routes %s",
		at.Weekday(), at.Format(time.RFC3339), at.Sub(from).Round(time.Second), strings.Join(parts, ", "))
}
