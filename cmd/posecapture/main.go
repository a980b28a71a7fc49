package main

import (
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/mikeyg42/posecapture/internal/capture"
	"github.com/mikeyg42/posecapture/internal/config"
	"github.com/mikeyg42/posecapture/internal/encoding"
	"github.com/mikeyg42/posecapture/internal/logging"
	"github.com/mikeyg42/posecapture/internal/pose"
	"github.com/mikeyg42/posecapture/internal/storage"
)

// Application holds all components.
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	recorder *capture.VideoRecorder
	metadata *storage.PostgresStore
}

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	tracePath := flag.String("trace", "", "landmark trace to replay (JSON lines)")
	outputDir := flag.String("output", "", "override clip output directory")
	flag.Parse()

	if *tracePath == "" {
		log.Fatal("a landmark trace is required: -trace <file>")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *outputDir != "" {
		cfg.Recording.OutputDir = *outputDir
	}

	app, err := NewApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	defer app.Cleanup()

	if err := app.Run(*tracePath); err != nil {
		app.logger.Fatal("Replay failed", zap.Error(err))
	}
}

func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	var opts []capture.Option
	var metadata *storage.PostgresStore

	if cfg.Storage.Archive.Enabled {
		archiver, err := storage.NewArchiver(storage.ArchiveConfig{
			Endpoint:        cfg.Storage.Archive.Endpoint,
			AccessKeyID:     cfg.Storage.Archive.AccessKeyID,
			SecretAccessKey: cfg.Storage.Archive.SecretAccessKey,
			UseSSL:          cfg.Storage.Archive.UseSSL,
			Bucket:          cfg.Storage.Archive.Bucket,
			Region:          cfg.Storage.Archive.Region,
			MaxRetries:      cfg.Storage.Archive.MaxRetries,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create archiver: %w", err)
		}
		opts = append(opts, capture.WithArchiver(archiver))
	}

	if cfg.Storage.Metadata.Enabled {
		metadata, err = storage.NewPostgresStore(storage.PostgresConfig{
			Host:     cfg.Storage.Metadata.Host,
			Port:     cfg.Storage.Metadata.Port,
			Database: cfg.Storage.Metadata.Database,
			Username: cfg.Storage.Metadata.Username,
			Password: cfg.Storage.Metadata.Password,
			SSLMode:  cfg.Storage.Metadata.SSLMode,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata store: %w", err)
		}
		opts = append(opts, capture.WithMetadataStore(metadata))
	}

	recorder, err := capture.NewVideoRecorder(capture.Config{
		OutputDir:       cfg.Recording.OutputDir,
		Width:           cfg.Video.Width,
		Height:          cfg.Video.Height,
		FrameRate:       cfg.Video.FrameRate,
		RealTime:        cfg.Recording.RealTime,
		Container:       cfg.Recording.Container,
		MinClipDuration: cfg.Recording.MinClipDuration,
		JPEGQuality:     cfg.Recording.JPEGQuality,
		PoolSize:        cfg.Recording.PoolSize,
	}, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	return &Application{
		config:   cfg,
		logger:   logger,
		recorder: recorder,
		metadata: metadata,
	}, nil
}

// Run replays a landmark trace through the recorder, rendering each frame's
// subjects as a skeleton overlay.
func (app *Application) Run(tracePath string) error {
	frames, err := pose.NewReplayReader(app.logger).ReadFile(tracePath)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("trace %s contains no frames", tracePath)
	}

	for i := range frames {
		subjects := frames[i].LandmarkSets()
		app.recorder.Process(encoding.Frame{
			Vector: skeletonFrame{subjects: subjects},
			PTS:    frames[i].PTS(),
		}, subjects)
	}

	m := app.recorder.Metrics()
	app.logger.Info("Replay finished",
		zap.Uint64("frames_seen", m.FramesSeen.Load()),
		zap.Uint64("frames_appended", m.FramesAppended.Load()),
		zap.Uint64("frames_dropped", m.FramesDropped.Load()),
		zap.Uint64("sessions_started", m.SessionsStarted.Load()),
		zap.Uint64("sessions_completed", m.SessionsCompleted.Load()),
		zap.Uint64("sessions_discarded", m.SessionsDiscarded.Load()))
	return nil
}

func (app *Application) Cleanup() {
	if app.recorder != nil {
		if err := app.recorder.Close(); err != nil {
			app.logger.Error("Recorder shutdown failed", zap.Error(err))
		}
	}
	if app.metadata != nil {
		app.metadata.Close()
	}
	if app.logger != nil {
		app.logger.Sync()
	}
}
