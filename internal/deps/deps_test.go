package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckBinariesCapturesVersion(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := filepath.Join(binDir, "ffmpeg")
	script := "#!/bin/sh\necho 'ffmpeg version 7.1-static Copyright (c) 2000-2024'\necho 'built with gcc'\n"
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	broken := filepath.Join(binDir, "broken")
	if err := os.WriteFile(broken, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	results := CheckBinaries(context.Background(), []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, VersionFlag: "-version"},
		{Name: "Broken", Command: broken, VersionFlag: "-version"},
		{Name: "Missing", Command: "clearly-not-present-binary", Optional: true},
		{Name: "Unset", Command: "  "},
	})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if got := results[0]; !got.Available || got.Version != "7.1-static" || got.Path != ffmpeg || got.Detail != "" {
		t.Fatalf("unexpected ffmpeg status %#v", got)
	}
	if got := results[1]; !got.Available || got.Version != "" || !strings.Contains(got.Detail, "version probe") {
		t.Fatalf("unexpected broken status %#v", got)
	}
	if got := results[2]; got.Available || !got.Optional || !strings.Contains(got.Detail, "not found") {
		t.Fatalf("unexpected missing status %#v", got)
	}
	if got := results[3]; got.Available || got.Detail != "command not configured" {
		t.Fatalf("unexpected unset status %#v", got)
	}
}

func TestParseVersionFallsBackToFirstLine(t *testing.T) {
	if got := parseVersion([]byte("ffprobe version n6.1 Copyright\n")); got != "n6.1" {
		t.Fatalf("parseVersion = %q", got)
	}
	if got := parseVersion([]byte("  custom build 3  \nmore\n")); got != "custom build 3" {
		t.Fatalf("parseVersion = %q", got)
	}
	if got := parseVersion(nil); got != "" {
		t.Fatalf("parseVersion(nil) = %q", got)
	}
}

func TestResolveBinary(t *testing.T) {
	if got := ResolveBinary("  /opt/ffmpeg ", "ffmpeg"); got != "/opt/ffmpeg" {
		t.Fatalf("expected configured binary, got %q", got)
	}
	if got := ResolveBinary("", "ffprobe"); got != "ffprobe" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestCheckEncoder(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := filepath.Join(binDir, "ffmpeg")
	script := "#!/bin/sh\ncat <<'OUT'\nEncoders:\n ------\n V....D libx264              H.264\n V....D hevc_qsv             HEVC (Intel Quick Sync Video acceleration)\nOUT\n"
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	if status := CheckEncoder(context.Background(), ffmpeg, "hevc_qsv"); !status.Available {
		t.Fatalf("expected hevc_qsv available, got %#v", status)
	}
	missing := CheckEncoder(context.Background(), ffmpeg, "av1_qsv")
	if missing.Available || !strings.Contains(missing.Detail, "not compiled in") {
		t.Fatalf("expected av1_qsv missing, got %#v", missing)
	}
	absent := CheckEncoder(context.Background(), filepath.Join(binDir, "nope"), "hevc_qsv")
	if absent.Available || absent.Detail == "" {
		t.Fatalf("expected missing binary, got %#v", absent)
	}
}
