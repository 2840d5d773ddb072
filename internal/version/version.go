/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build information.
package version

import (
	"fmt"
	"runtime"
)

// Version is set at build time via ldflags:
//
//	-X github.com/friendsincode/farewatch/internal/version.Version=X.Y.Z
var Version = "0.1.0-dev"

// Commit is the source revision, also set via ldflags.
var Commit = ""

// String renders version, commit and Go runtime for the CLI.
func String() string {
	if Commit == "" {
		return fmt.Sprintf("farewatch %s (%s)", Version, runtime.Version())
	}
	return fmt.Sprintf("farewatch %s (%s, %s)", Version, Commit, runtime.Version())
}
