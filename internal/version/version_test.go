package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFillFromVCS(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	var info Info
	fillFromVCS(&info, settings)
	if info.GitCommit != "0123456789ab" || info.BuildDate != "2026-03-01T10:00:00Z" || !info.Modified {
		t.Errorf("Unexpected info %+v", info)
	}

	stamped := Info{GitCommit: "abc", BuildDate: "today"}
	fillFromVCS(&stamped, settings)
	if stamped.GitCommit != "abc" || stamped.BuildDate != "today" {
		t.Errorf("VCS data overrode stamped values: %+v", stamped)
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "1.4.0", GitCommit: "abc", BuildDate: "today", Modified: true, GoVersion: "go1.24.11", Platform: "linux/arm64"}
	got := info.String()
	if !strings.HasPrefix(got, "1.4.0 ") || !strings.Contains(got, "abc-dirty") || !strings.Contains(got, "linux/arm64") {
		t.Errorf("Unexpected version line %q", got)
	}
}

func TestIsDev(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "dev"
	if !IsDev() {
		t.Error("dev build not detected")
	}
	Version = "1.0.0"
	if IsDev() {
		t.Error("release build reported as dev")
	}
}
