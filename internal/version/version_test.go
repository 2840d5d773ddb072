/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Commit
	defer func() { Commit = old }()

	Commit = ""
	if got := String(); !strings.HasPrefix(got, "farewatch "+Version+" (go") {
		t.Errorf("String() = %q", got)
	}
	Commit = "abc123"
	if got := String(); !strings.Contains(got, "abc123") {
		t.Errorf("String() = %q, want commit", got)
	}
}
