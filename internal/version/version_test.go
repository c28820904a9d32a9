package version

import (
	"runtime/debug"
	"testing"
)

func TestResolveFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Main:      debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}
	info := resolve(func() (*debug.BuildInfo, bool) { return bi, true })
	if info.Version != "v0.3.1" || info.GoVersion != "go1.26.0" || info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected info %+v", info)
	}
	if got, want := info.String(), "v0.3.1 (0123456789ab)"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestResolveDevFallback(t *testing.T) {
	info := resolve(func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
	})
	if info.Version != "dev" {
		t.Fatalf("got %q want dev", info.Version)
	}
	if info.String() != "dev" {
		t.Fatalf("got %q want dev", info.String())
	}
}

func TestShortCommit(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"", ""},
		{"abc", "abc"},
		{"0123456789abcdef", "0123456789ab"},
	}
	for _, tc := range tests {
		if got := shortCommit(tc.in); got != tc.want {
			t.Errorf("shortCommit(%q): got %q want %q", tc.in, got, tc.want)
		}
	}
}
