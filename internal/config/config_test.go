package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Video.Width != 640 || cfg.Video.Height != 480 {
		t.Fatalf("default dimensions = %dx%d, want 640x480", cfg.Video.Width, cfg.Video.Height)
	}
	if cfg.Recording.Container != "mkv" {
		t.Fatalf("default container = %q, want mkv", cfg.Recording.Container)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
video:
  width: 1280
  height: 720
  frame_rate: 24
recording:
  output_dir: /tmp/clips
  container: webm
  min_clip_duration: 5s
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Video.Width != 1280 || cfg.Video.Height != 720 {
		t.Fatalf("dimensions = %dx%d, want 1280x720", cfg.Video.Width, cfg.Video.Height)
	}
	if cfg.Recording.Container != "webm" {
		t.Fatalf("container = %q, want webm", cfg.Recording.Container)
	}
	if cfg.Recording.MinClipDuration != 5*time.Second {
		t.Fatalf("min_clip_duration = %v, want 5s", cfg.Recording.MinClipDuration)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q, want debug", cfg.Log.Level)
	}
	// Untouched fields keep their defaults.
	if cfg.Recording.JPEGQuality != 85 {
		t.Fatalf("jpeg_quality = %d, want default 85", cfg.Recording.JPEGQuality)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad container", "recording:\n  container: avi\n"},
		{"zero width", "video:\n  width: 0\n"},
		{"archive without endpoint", "storage:\n  archive:\n    enabled: true\n    bucket: clips\n"},
		{"metadata without host", "storage:\n  metadata:\n    enabled: true\n    database: clips\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
