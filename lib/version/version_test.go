// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfoUsesInjectedCommit(t *testing.T) {
	saved := GitCommit
	t.Cleanup(func() { GitCommit = saved })

	GitCommit = "abc1234"
	if got := Info(); !strings.HasPrefix(got, Version+" (abc1234, ") {
		t.Errorf("Info() = %q", got)
	}
	if full := Full(); !strings.Contains(full, "Go: ") || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q", full)
	}
}

func TestCommitFromSettings(t *testing.T) {
	commit, dirty := commitFromSettings([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
	})
	if commit != "0123456" || !dirty {
		t.Errorf("commitFromSettings = %q, %v; want 0123456, true", commit, dirty)
	}

	commit, dirty = commitFromSettings(nil)
	if commit != "unknown" || dirty {
		t.Errorf("commitFromSettings(nil) = %q, %v", commit, dirty)
	}
}
