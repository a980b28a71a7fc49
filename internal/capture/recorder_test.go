package capture

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/posecapture/internal/encoding"
	"github.com/mikeyg42/posecapture/internal/pose"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		OutputDir: t.TempDir(),
		Width:     64,
		Height:    48,
		FrameRate: 30,
	}
}

func testFrame() encoding.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return encoding.Frame{Image: img}
}

// gripSubject satisfies both start predicates and not the stop predicate.
func gripSubject() pose.LandmarkSet {
	return pose.LandmarkSet{
		pose.RightEar:   {X: 100, Y: 10},
		pose.RightHip:   {X: 100, Y: 60},
		pose.RightWrist: {X: 100, Y: 145},
		pose.LeftAnkle:  {X: 90, Y: 100},
		pose.RightAnkle: {X: 110, Y: 100},
	}
}

// raisedWristSubject satisfies the stop predicate.
func raisedWristSubject() pose.LandmarkSet {
	ls := gripSubject()
	ls[pose.RightWrist] = pose.Point{X: 100, Y: 25}
	return ls
}

func listClips(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewVideoRecorderValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
		{"unsupported container", func(c *Config) { c.Container = "avi" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			if _, err := NewVideoRecorder(cfg, zap.NewNop()); err == nil {
				t.Fatal("expected a configuration error")
			}
		})
	}
}

func TestSetDesiredStateIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	r, err := NewVideoRecorder(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVideoRecorder failed: %v", err)
	}
	defer r.Close()

	if err := r.SetDesiredState(pose.StateIdle); err != nil {
		t.Fatalf("idle->idle failed: %v", err)
	}

	if err := r.SetDesiredState(pose.StateRecording); err != nil {
		t.Fatalf("idle->recording failed: %v", err)
	}
	if err := r.SetDesiredState(pose.StateRecording); err != nil {
		t.Fatalf("recording->recording failed: %v", err)
	}

	if got := r.Metrics().SessionsStarted.Load(); got != 1 {
		t.Fatalf("SessionsStarted = %d, want 1", got)
	}
	if clips := listClips(t, cfg.OutputDir); len(clips) != 1 {
		t.Fatalf("output dir has %d clips, want 1: %v", len(clips), clips)
	}
}

func TestRecorderExecutesDecisions(t *testing.T) {
	cfg := testConfig(t)
	r, err := NewVideoRecorder(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVideoRecorder failed: %v", err)
	}
	defer r.Close()

	// No subject: stays idle, nothing appended.
	r.Process(testFrame(), nil)
	if got := r.State(); got != pose.StateIdle {
		t.Fatalf("state after empty frame = %v, want idle", got)
	}
	if got := r.Metrics().FramesAppended.Load(); got != 0 {
		t.Fatalf("FramesAppended while idle = %d, want 0", got)
	}

	// Grip posture: transitions to recording and the frame lands in the clip.
	f := testFrame()
	f.PTS = time.Second / 30
	r.Process(f, []pose.LandmarkSet{gripSubject()})
	if got := r.State(); got != pose.StateRecording {
		t.Fatalf("state after grip frame = %v, want recording", got)
	}
	if got := r.Metrics().FramesAppended.Load(); got != 1 {
		t.Fatalf("FramesAppended = %d, want 1", got)
	}

	// Raised wrist: stops the episode.
	f = testFrame()
	f.PTS = 2 * time.Second / 30
	r.Process(f, []pose.LandmarkSet{raisedWristSubject()})
	if got := r.State(); got != pose.StateIdle {
		t.Fatalf("state after raised wrist = %v, want idle", got)
	}
}

func TestRecorderKeepsLongEnoughClips(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinClipDuration = time.Second / 30
	r, err := NewVideoRecorder(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVideoRecorder failed: %v", err)
	}

	if err := r.SetDesiredState(pose.StateRecording); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		f := testFrame()
		f.PTS = time.Duration(i) * time.Second / 30
		r.Process(f, []pose.LandmarkSet{gripSubject()})
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := r.Metrics().SessionsCompleted.Load(); got != 1 {
		t.Fatalf("SessionsCompleted = %d, want 1", got)
	}
	if got := r.Metrics().SessionsDiscarded.Load(); got != 0 {
		t.Fatalf("SessionsDiscarded = %d, want 0", got)
	}

	clips := listClips(t, cfg.OutputDir)
	if len(clips) != 1 {
		t.Fatalf("output dir has %d clips, want 1: %v", len(clips), clips)
	}
	info, err := os.Stat(filepath.Join(cfg.OutputDir, clips[0]))
	if err != nil {
		t.Fatalf("stat clip: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("kept clip is empty")
	}
}

func TestRecorderDiscardsShortClips(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinClipDuration = time.Minute
	r, err := NewVideoRecorder(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVideoRecorder failed: %v", err)
	}

	if err := r.SetDesiredState(pose.StateRecording); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f := testFrame()
	r.Process(f, []pose.LandmarkSet{gripSubject()})
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := r.Metrics().SessionsDiscarded.Load(); got != 1 {
		t.Fatalf("SessionsDiscarded = %d, want 1", got)
	}
	if clips := listClips(t, cfg.OutputDir); len(clips) != 0 {
		t.Fatalf("discarded clip still present: %v", clips)
	}
}

func TestRecorderCloseFinalizesLiveSession(t *testing.T) {
	cfg := testConfig(t)
	r, err := NewVideoRecorder(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVideoRecorder failed: %v", err)
	}

	r.Process(testFrame(), []pose.LandmarkSet{gripSubject()})
	if got := r.State(); got != pose.StateRecording {
		t.Fatalf("state = %v, want recording", got)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.SetDesiredState(pose.StateRecording); err == nil {
		t.Fatal("SetDesiredState after Close should fail")
	}
	if got := r.Metrics().SessionsCompleted.Load(); got != 1 {
		t.Fatalf("SessionsCompleted = %d, want 1", got)
	}
}
