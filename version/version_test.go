package version

import (
	"strings"
	"testing"
	"time"
)

func saveAndRestore() func() {
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	return func() {
		Version = origVersion
		GitCommit = origCommit
		BuildTime = origBuildTime
	}
}

func TestGetDefaults(t *testing.T) {
	defer saveAndRestore()()
	Version = "dev"
	GitCommit = ""
	BuildTime = ""

	info := Get()
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
	if info.IsRelease {
		t.Error("dev must not be a release")
	}
}

func TestGetWithLdflags(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.0"
	GitCommit = "abc1234"
	BuildTime = "2026-01-15T10:30:00Z"

	info := Get()
	if !info.IsRelease {
		t.Error("1.2.0 must be a release")
	}
	if info.GitCommit != "abc1234" {
		t.Errorf("GitCommit = %q", info.GitCommit)
	}
	want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	if !info.BuildDate.Equal(want) {
		t.Errorf("BuildDate = %v, want %v", info.BuildDate, want)
	}
}

func TestShort(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.0"
	GitCommit = "abc1234def5678"
	BuildTime = ""

	got := Short()
	if !strings.HasPrefix(got, "1.2.0-abc1234") {
		t.Errorf("Short() = %q", got)
	}
}

func TestFullIncludesVersion(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.0"
	GitCommit = ""
	BuildTime = ""

	if got := Full(); !strings.Contains(got, "1.2.0") {
		t.Errorf("Full() = %q", got)
	}
}
