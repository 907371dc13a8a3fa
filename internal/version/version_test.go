package version

import (
	"runtime/debug"
	"testing"
)

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}

	var info Info
	fillFromBuildInfo(&info, bi)
	if info.Version != "v0.3.1" || info.Commit != "0123456789abcdef0123" || info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected info: %+v", info)
	}

	pinned := Info{Version: "v1.0.0", Commit: "abc"}
	fillFromBuildInfo(&pinned, bi)
	if pinned.Version != "v1.0.0" || pinned.Commit != "abc" {
		t.Fatalf("ldflags values must win, got %+v", pinned)
	}

	devel := Info{}
	fillFromBuildInfo(&devel, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if devel.Version != "" {
		t.Fatalf("(devel) must not be used as a version, got %q", devel.Version)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("got %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
