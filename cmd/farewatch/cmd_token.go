/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/farewatch/internal/auth"
)

var (
	tokenClientID int64
	tokenTTL      time.Duration
	tokenRoles    []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a client",
	Long:  "Issue a signed bearer token that identifies a client to the admin API. Routes are only visible to the client that created them.",
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Int64Var(&tokenClientID, "client-id", 0, "Client the token identifies (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "Roles to embed in the token")
	tokenCmd.MarkFlagRequired("client-id")
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if tokenClientID <= 0 {
		return fmt.Errorf("--client-id must be positive")
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{ClientID: tokenClientID, Roles: tokenRoles}, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
