package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikeyg42/posecapture/internal/encoding"
	"github.com/mikeyg42/posecapture/internal/pose"
	"github.com/mikeyg42/posecapture/internal/storage"
)

// Config describes the recorder's fixed parameters. One recorder produces a
// sequence of clips into OutputDir, one per Recording episode.
type Config struct {
	OutputDir string
	Width     int
	Height    int
	FrameRate float64
	// RealTime selects drop-friendly queue sizing in the session.
	RealTime bool
	// Container is the clip file extension: "mkv" (default), "webm" or "mp4".
	Container string
	// MinClipDuration discards finished clips shorter than this. Zero keeps
	// everything.
	MinClipDuration time.Duration

	JPEGQuality int
	PoolSize    int
}

// Metrics tracks recorder activity.
type Metrics struct {
	FramesSeen        atomic.Uint64
	FramesAppended    atomic.Uint64
	FramesDropped     atomic.Uint64
	SessionsStarted   atomic.Uint64
	SessionsCompleted atomic.Uint64
	SessionsDiscarded atomic.Uint64
	Errors            atomic.Uint64
}

// Option configures optional recorder collaborators.
type Option func(*VideoRecorder)

// WithArchiver uploads kept clips to object storage after completion.
func WithArchiver(a *storage.Archiver) Option {
	return func(r *VideoRecorder) { r.archiver = a }
}

// WithMetadataStore persists per-clip lifecycle rows.
func WithMetadataStore(m storage.MetadataStore) Option {
	return func(r *VideoRecorder) { r.metadata = m }
}

// VideoRecorder executes capture decisions: it holds the current state and
// the live session, creates a session on Idle->Recording, finalizes it on
// Recording->Idle, and routes frames to the session while recording. It never
// decides on its own; pose.Next produces the transitions it executes.
//
// Process and SetDesiredState are safe for one producer goroutine; completion
// handling runs on dedicated goroutines and never blocks the producer.
type VideoRecorder struct {
	cfg     Config
	logger  *zap.Logger
	metrics Metrics

	archiver *storage.Archiver
	metadata storage.MetadataStore

	mu        sync.Mutex
	state     pose.State
	session   *encoding.Session
	sessionID string
	closed    bool

	wg sync.WaitGroup
}

// NewVideoRecorder validates the configuration and prepares the output
// directory.
func NewVideoRecorder(cfg Config, logger *zap.Logger, opts ...Option) (*VideoRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	switch cfg.Container {
	case "":
		cfg.Container = "mkv"
	case "mkv", "webm", "mp4":
	default:
		return nil, fmt.Errorf("unsupported container %q", cfg.Container)
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}

	r := &VideoRecorder{
		cfg:    cfg,
		logger: logger.Named("recorder"),
		state:  pose.StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State reports the current capture state.
func (r *VideoRecorder) State() pose.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Process applies the capture decision for one frame and routes the frame
// accordingly. The decision function runs exactly once per call; the frame is
// appended only while the resulting state is Recording.
func (r *VideoRecorder) Process(frame encoding.Frame, subjects []pose.LandmarkSet) {
	r.metrics.FramesSeen.Add(1)

	next := pose.Next(r.State(), subjects)
	if err := r.SetDesiredState(next); err != nil {
		r.metrics.Errors.Add(1)
		r.logger.Error("State transition failed", zap.Error(err))
		return
	}

	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session == nil {
		return
	}

	if session.Append(frame) {
		r.metrics.FramesAppended.Add(1)
	} else {
		r.metrics.FramesDropped.Add(1)
	}
}

// SetDesiredState moves the recorder to the given state. Setting the current
// state is a no-op; Idle->Recording starts a clip, Recording->Idle finalizes
// the live one.
func (r *VideoRecorder) SetDesiredState(s pose.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder is closed")
	}
	if s == r.state {
		return nil
	}

	switch s {
	case pose.StateRecording:
		return r.startSessionLocked()
	case pose.StateIdle:
		r.finalizeSessionLocked()
		return nil
	default:
		return fmt.Errorf("unknown state %v", s)
	}
}

func (r *VideoRecorder) startSessionLocked() error {
	id := uuid.New().String()
	now := time.Now()
	dest := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("capture_%s_%s.%s",
		now.Format("20060102_150405"), id[:8], r.cfg.Container))

	session, err := encoding.NewSession(encoding.SessionConfig{
		Destination: dest,
		Width:       r.cfg.Width,
		Height:      r.cfg.Height,
		FrameRate:   r.cfg.FrameRate,
		StartTime:   now,
		RealTime:    r.cfg.RealTime,
		JPEGQuality: r.cfg.JPEGQuality,
		PoolSize:    r.cfg.PoolSize,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	if r.metadata != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.metadata.SaveRecording(ctx, &storage.Recording{
			ID:        id,
			Status:    storage.StatusRecording,
			StartedAt: now,
			Location:  dest,
			Width:     r.cfg.Width,
			Height:    r.cfg.Height,
			FrameRate: r.cfg.FrameRate,
		})
		cancel()
		if err != nil {
			r.logger.Error("Failed to save recording metadata", zap.Error(err))
			r.metrics.Errors.Add(1)
		}
	}

	r.session = session
	r.sessionID = id
	r.state = pose.StateRecording
	r.metrics.SessionsStarted.Add(1)

	r.logger.Info("Recording started",
		zap.String("id", id),
		zap.String("destination", dest))
	return nil
}

func (r *VideoRecorder) finalizeSessionLocked() {
	session := r.session
	id := r.sessionID
	r.session = nil
	r.sessionID = ""
	r.state = pose.StateIdle

	if session == nil {
		return
	}

	r.wg.Add(1)
	session.Finalize(func(res encoding.Result) {
		defer r.wg.Done()
		r.handleCompletion(id, res)
	})
}

// handleCompletion runs on the session's completion goroutine, decoupled from
// frame delivery.
func (r *VideoRecorder) handleCompletion(id string, res encoding.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if res.Err != nil {
		r.metrics.Errors.Add(1)
		r.logger.Error("Recording failed",
			zap.String("id", id),
			zap.Error(res.Err))
		r.markDiscarded(ctx, id, res.Err.Error())
		return
	}

	if r.cfg.MinClipDuration > 0 && res.Duration < r.cfg.MinClipDuration {
		r.metrics.SessionsDiscarded.Add(1)
		r.logger.Info("Discarding short clip",
			zap.String("id", id),
			zap.Duration("duration", res.Duration),
			zap.Duration("minimum", r.cfg.MinClipDuration))
		if err := os.Remove(res.Location); err != nil {
			r.logger.Warn("Failed to remove discarded clip", zap.Error(err))
		}
		r.markDiscarded(ctx, id, "below minimum duration")
		return
	}

	r.metrics.SessionsCompleted.Add(1)
	r.logger.Info("Recording completed",
		zap.String("id", id),
		zap.String("location", res.Location),
		zap.Duration("duration", res.Duration))

	var objectKey string
	if r.archiver != nil {
		objectKey = fmt.Sprintf("clips/%s/%s%s",
			time.Now().Format("2006-01-02"), id, filepath.Ext(res.Location))
		if err := r.archiver.Upload(ctx, objectKey, res.Location, storage.ContentTypeFor(res.Location)); err != nil {
			r.metrics.Errors.Add(1)
			r.logger.Error("Clip upload failed",
				zap.String("id", id),
				zap.String("key", objectKey),
				zap.Error(err))
			objectKey = ""
		}
	}

	if r.metadata != nil {
		size := storage.Stat(res.Location)
		if err := r.metadata.MarkCompleted(ctx, id, res.Duration, objectKey, size); err != nil {
			r.metrics.Errors.Add(1)
			r.logger.Error("Failed to update recording metadata",
				zap.String("id", id),
				zap.Error(err))
		}
	}
}

func (r *VideoRecorder) markDiscarded(ctx context.Context, id, reason string) {
	if r.metadata == nil {
		return
	}
	if err := r.metadata.MarkDiscarded(ctx, id, reason); err != nil {
		r.logger.Error("Failed to mark recording discarded",
			zap.String("id", id),
			zap.Error(err))
	}
}

// Metrics exposes the recorder's counters.
func (r *VideoRecorder) Metrics() *Metrics { return &r.metrics }

// Close finalizes any live session and waits for outstanding completion
// handling.
func (r *VideoRecorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.finalizeSessionLocked()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Recorder closed")
		return nil
	case <-time.After(30 * time.Second):
		r.logger.Warn("Recorder close timeout")
		return fmt.Errorf("timed out waiting for completion handling")
	}
}
