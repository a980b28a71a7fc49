package encoding

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SessionConfig describes one create-to-finalize recording.
type SessionConfig struct {
	// Destination is the output file path. The extension selects the
	// container: .mkv/.webm for Matroska, .mp4 for MP4.
	Destination string
	Width       int
	Height      int
	FrameRate   float64
	// StartTime anchors the session; a zero value fails creation.
	StartTime time.Time
	// RealTime means frames arrive at capture rate and dropping is
	// preferred over queueing: the handoff queue is kept short.
	RealTime bool

	// Codec of pre-encoded sample input. Bitmap input always goes through
	// the built-in MJPEG encoder. Zero value: CodecMJPEG.
	Codec       Codec
	JPEGQuality int
	PoolSize    int
	QueueDepth  int
}

// Frame is one unit of input: exactly one of Image, Vector or Sample is
// set. Frames are consumed synchronously by Append and never retained.
type Frame struct {
	Image  image.Image
	Vector VectorSource
	Sample *Sample
	PTS    time.Duration
}

// Result is the session's terminal status, delivered exactly once to the
// finalize callback. On failure Err is set and no asset is reported.
type Result struct {
	Location string
	Duration time.Duration
	Err      error
}

const noPTS = math.MinInt64

// Session owns one container-writing lifecycle: accept frames, convert and
// hand them to a single writer goroutine, finalize on demand. Append must
// be called from one goroutine at a time (single-writer discipline); the
// orchestrator is the only caller.
type Session struct {
	cfg    SessionConfig
	logger *zap.Logger

	pool   *PixelBufferPool
	raster *Rasterizer
	enc    FrameEncoder
	sink   containerSink

	queue      chan Sample
	writerDone chan struct{}
	writeErr   error // set by the writer goroutine before writerDone closes

	finalized atomic.Bool
	firstPTS  atomic.Int64
	lastPTS   atomic.Int64
	appended  atomic.Uint64
	dropped   atomic.Uint64
}

// NewSession validates the configuration, opens the destination and starts
// the writer. Any failure is a *ConfigError and leaves nothing behind.
func NewSession(cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &ConfigError{Field: "dimensions", Reason: fmt.Sprintf("invalid %dx%d", cfg.Width, cfg.Height)}
	}
	if cfg.StartTime.IsZero() {
		return nil, &ConfigError{Field: "start_time", Reason: "must be a valid time"}
	}
	if cfg.Codec == "" {
		cfg.Codec = CodecMJPEG
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.QueueDepth <= 0 {
		if cfg.RealTime {
			cfg.QueueDepth = 8
		} else {
			cfg.QueueDepth = 32
		}
	}

	ext := strings.ToLower(filepath.Ext(cfg.Destination))
	switch ext {
	case ".mkv", ".webm", ".mp4":
	default:
		return nil, &ConfigError{Field: "destination", Reason: fmt.Sprintf("unsupported container extension %q", ext)}
	}

	file, err := os.Create(cfg.Destination)
	if err != nil {
		return nil, &ConfigError{Field: "destination", Reason: "cannot open for writing", Err: err}
	}

	var sink containerSink
	if ext == ".mp4" {
		sink, err = newMP4Sink(file, cfg.Codec, cfg.Width, cfg.Height, cfg.FrameRate)
	} else {
		sink, err = newMatroskaSink(file, cfg.Codec, cfg.Width, cfg.Height, cfg.FrameRate)
	}
	if err != nil {
		file.Close()
		os.Remove(cfg.Destination)
		if cfgErr, ok := err.(*ConfigError); ok {
			return nil, cfgErr
		}
		return nil, &ConfigError{Field: "container", Reason: "encoder rejected configuration", Err: err}
	}

	pool := NewPixelBufferPool(cfg.Width, cfg.Height, cfg.PoolSize)
	s := &Session{
		cfg:        cfg,
		logger:     logger.Named("session").With(zap.String("destination", cfg.Destination)),
		pool:       pool,
		raster:     NewRasterizer(pool),
		enc:        newJPEGEncoder(cfg.Width, cfg.Height, cfg.JPEGQuality),
		sink:       sink,
		queue:      make(chan Sample, cfg.QueueDepth),
		writerDone: make(chan struct{}),
	}
	s.firstPTS.Store(noPTS)
	s.lastPTS.Store(noPTS)

	go s.writeLoop()

	s.logger.Info("Session created",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Bool("real_time", cfg.RealTime),
		zap.String("codec", string(cfg.Codec)))
	return s, nil
}

// writeLoop is the session's single writer: it drains the handoff queue
// into the container sink, then finalizes the container when the queue is
// closed. Write failures are recorded once and surfaced through the
// finalize result, not per frame.
func (s *Session) writeLoop() {
	for sample := range s.queue {
		if s.writeErr != nil {
			continue
		}
		if err := s.sink.WriteSample(sample); err != nil {
			s.writeErr = err
			s.logger.Error("Container write failed, dropping remaining samples", zap.Error(err))
		}
	}
	if err := s.sink.Close(); err != nil && s.writeErr == nil {
		s.writeErr = err
	}
	close(s.writerDone)
}

// Append feeds one frame to the session. It returns false, with no side
// effects, when the writer is not ready for more data (backpressure:
// callers drop the frame and continue, they must not retry in a loop), and
// false when conversion or encoding rejects the frame. On success the
// frame's timestamp becomes the session's last presentation time.
//
// Calling Append after Finalize is a contract violation and panics.
func (s *Session) Append(f Frame) bool {
	if s.finalized.Load() {
		panic("encoding: Append called after Finalize")
	}
	if len(s.queue) == cap(s.queue) {
		s.dropped.Add(1)
		return false
	}

	var sample Sample
	switch {
	case f.Sample != nil:
		sample = *f.Sample
		sample.PTS = f.PTS
	case f.Image != nil:
		buf, err := s.raster.Rasterize(f.Image)
		if err != nil {
			s.logger.Warn("Frame rasterization failed", zap.Error(err))
			return false
		}
		sample, err = s.enc.Encode(buf, f.PTS)
		s.pool.Put(buf)
		if err != nil {
			s.logger.Warn("Frame encoding failed", zap.Error(err))
			return false
		}
	case f.Vector != nil:
		buf, err := s.raster.RasterizeVector(f.Vector)
		if err != nil {
			s.logger.Warn("Vector rasterization failed", zap.Error(err))
			return false
		}
		sample, err = s.enc.Encode(buf, f.PTS)
		s.pool.Put(buf)
		if err != nil {
			s.logger.Warn("Frame encoding failed", zap.Error(err))
			return false
		}
	default:
		s.logger.Warn("Empty frame dropped")
		return false
	}

	select {
	case s.queue <- sample:
	default:
		s.dropped.Add(1)
		return false
	}

	s.firstPTS.CompareAndSwap(noPTS, int64(f.PTS))
	s.lastPTS.Store(int64(f.PTS))
	s.appended.Add(1)
	return true
}

// Finalize marks the input stream finished and closes the container
// asynchronously. onDone is invoked exactly once, on a dedicated goroutine,
// after the writer reports terminal status. A second Finalize is a contract
// violation and panics; so is any Append issued afterwards.
func (s *Session) Finalize(onDone func(Result)) {
	if !s.finalized.CompareAndSwap(false, true) {
		panic("encoding: Finalize called twice on the same session")
	}
	close(s.queue)

	go func() {
		<-s.writerDone
		s.pool.Close()

		res := Result{}
		switch {
		case s.writeErr != nil:
			res.Err = fmt.Errorf("finalize: %w", s.writeErr)
			os.Remove(s.cfg.Destination)
		case s.appended.Load() == 0:
			res.Err = fmt.Errorf("finalize: no frames were appended")
			os.Remove(s.cfg.Destination)
		default:
			res.Location = s.cfg.Destination
			res.Duration = time.Duration(s.lastPTS.Load() - s.firstPTS.Load())
		}

		if res.Err != nil {
			s.logger.Error("Session finalize failed", zap.Error(res.Err))
		} else {
			s.logger.Info("Session finalized",
				zap.Duration("duration", res.Duration),
				zap.Uint64("frames", s.appended.Load()),
				zap.Uint64("dropped", s.dropped.Load()))
		}
		if onDone != nil {
			onDone(res)
		}
	}()
}

// LastPresentationTime reports the timestamp of the most recently accepted
// frame, and false if no frame has been accepted.
func (s *Session) LastPresentationTime() (time.Duration, bool) {
	v := s.lastPTS.Load()
	if v == noPTS {
		return 0, false
	}
	return time.Duration(v), true
}

// Pool exposes the session's pixel buffer pool.
func (s *Session) Pool() *PixelBufferPool { return s.pool }
