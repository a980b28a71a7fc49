// Package config holds the application configuration, loaded from YAML with
// sane defaults for everything but storage credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Video     VideoConfig     `yaml:"video"`
	Recording RecordingConfig `yaml:"recording"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

type VideoConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FrameRate float64 `yaml:"frame_rate"`
}

type RecordingConfig struct {
	OutputDir string `yaml:"output_dir"`
	// Container is the clip extension: mkv, webm or mp4.
	Container       string        `yaml:"container"`
	RealTime        bool          `yaml:"real_time"`
	MinClipDuration time.Duration `yaml:"min_clip_duration"`
	JPEGQuality     int           `yaml:"jpeg_quality"`
	PoolSize        int           `yaml:"pool_size"`
}

type StorageConfig struct {
	// Archive and Metadata are optional; leaving either disabled keeps clips
	// on local disk only.
	Archive  ArchiveConfig  `yaml:"archive"`
	Metadata MetadataConfig `yaml:"metadata"`
}

type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	MaxRetries      int    `yaml:"max_retries"`
}

type MetadataConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Video: VideoConfig{
			Width:     640,
			Height:    480,
			FrameRate: 30,
		},
		Recording: RecordingConfig{
			OutputDir:       "recordings",
			Container:       "mkv",
			RealTime:        true,
			MinClipDuration: 2 * time.Second,
			JPEGQuality:     85,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("invalid video dimensions: %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.FrameRate <= 0 {
		return fmt.Errorf("invalid frame rate: %g", c.Video.FrameRate)
	}
	if c.Recording.OutputDir == "" {
		return fmt.Errorf("recording.output_dir is required")
	}
	switch c.Recording.Container {
	case "mkv", "webm", "mp4":
	default:
		return fmt.Errorf("unsupported container %q", c.Recording.Container)
	}
	if c.Recording.JPEGQuality < 0 || c.Recording.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be within 0..100")
	}

	if c.Storage.Archive.Enabled {
		if c.Storage.Archive.Endpoint == "" {
			return fmt.Errorf("storage.archive.endpoint is required when archiving is enabled")
		}
		if c.Storage.Archive.Bucket == "" {
			return fmt.Errorf("storage.archive.bucket is required when archiving is enabled")
		}
	}
	if c.Storage.Metadata.Enabled {
		if c.Storage.Metadata.Host == "" {
			return fmt.Errorf("storage.metadata.host is required when metadata is enabled")
		}
		if c.Storage.Metadata.Database == "" {
			return fmt.Errorf("storage.metadata.database is required when metadata is enabled")
		}
	}
	return nil
}
