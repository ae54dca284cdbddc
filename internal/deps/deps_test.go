package deps

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"media-transcript-go/internal/config"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path == "" || results[0].Detail != "" {
		t.Fatalf("unexpected status for present binary: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("unexpected status for missing binary: %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

// TestRequireOnlyMandatory checks optional tools never block startup.
func TestRequireOnlyMandatory(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: true},
		{Name: "yt-dlp", Optional: true},
	}
	if err := Require(statuses); err != nil {
		t.Fatalf("Require() error = %v", err)
	}

	statuses[0].Available = false
	err := Require(statuses)
	if !errors.Is(err, ErrMissing) || !strings.Contains(err.Error(), "FFmpeg") {
		t.Fatalf("Require() error = %v", err)
	}
	if Available(statuses, "yt-dlp") || Available(statuses, "nope") {
		t.Fatal("Available() should be false")
	}
}

// TestRequirementsFromConfig checks configured binary names are used.
func TestRequirementsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpegBinary = "/opt/ffmpeg"
	reqs := Requirements(&cfg)
	if len(reqs) != 3 || reqs[0].Command != "/opt/ffmpeg" || reqs[0].Optional {
		t.Fatalf("requirements = %#v", reqs)
	}
	if !reqs[1].Optional || !reqs[2].Optional {
		t.Fatalf("ffprobe and yt-dlp should be optional: %#v", reqs)
	}
}
