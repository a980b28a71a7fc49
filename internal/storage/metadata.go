package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// Recording statuses.
const (
	StatusRecording = "recording"
	StatusCompleted = "completed"
	StatusDiscarded = "discarded"
	StatusFailed    = "failed"
)

// Recording is one capture session's metadata row.
type Recording struct {
	ID              string          `db:"id"`
	Status          string          `db:"status"`
	StartedAt       time.Time       `db:"started_at"`
	EndedAt         sql.NullTime    `db:"ended_at"`
	DurationSeconds sql.NullFloat64 `db:"duration_seconds"`

	Location  string         `db:"location"`
	ObjectKey sql.NullString `db:"object_key"`
	SizeBytes sql.NullInt64  `db:"size_bytes"`

	Width     int     `db:"width"`
	Height    int     `db:"height"`
	FrameRate float64 `db:"frame_rate"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// MetadataStore persists recording lifecycle state.
type MetadataStore interface {
	SaveRecording(ctx context.Context, rec *Recording) error
	MarkCompleted(ctx context.Context, id string, duration time.Duration, objectKey string, sizeBytes int64) error
	MarkDiscarded(ctx context.Context, id string, reason string) error
	GetRecording(ctx context.Context, id string) (*Recording, error)
}

// PostgresConfig contains PostgreSQL configuration.
type PostgresConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string // disable, require, verify-ca, verify-full
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore implements MetadataStore using PostgreSQL.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
	config PostgresConfig
}

// NewPostgresStore connects, verifies the connection and initializes the
// schema.
func NewPostgresStore(config PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "require"
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 2
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = 5 * time.Minute
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:     db,
		logger: logger.Named("metadata-store"),
		config: config,
	}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS recordings (
		id UUID PRIMARY KEY,
		status VARCHAR(20) NOT NULL CHECK (status IN ('recording', 'completed', 'discarded', 'failed')),

		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		duration_seconds FLOAT,

		location VARCHAR(500) NOT NULL,
		object_key VARCHAR(500),
		size_bytes BIGINT,

		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		frame_rate FLOAT NOT NULL,

		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_started_at ON recordings(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_recordings_status ON recordings(status);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

// SaveRecording inserts a new row at session start.
func (s *PostgresStore) SaveRecording(ctx context.Context, rec *Recording) error {
	const q = `
	INSERT INTO recordings (id, status, started_at, location, width, height, frame_rate)
	VALUES (:id, :status, :started_at, :location, :width, :height, :frame_rate)`

	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("save recording %s: %w", rec.ID, err)
	}

	s.logger.Debug("Recording metadata saved", zap.String("id", rec.ID))
	return nil
}

// MarkCompleted closes a row for a clip that was kept.
func (s *PostgresStore) MarkCompleted(ctx context.Context, id string, duration time.Duration, objectKey string, sizeBytes int64) error {
	const q = `
	UPDATE recordings
	SET status = $2, ended_at = NOW(), duration_seconds = $3,
	    object_key = NULLIF($4, ''), size_bytes = $5, updated_at = NOW()
	WHERE id = $1`

	res, err := s.db.ExecContext(ctx, q, id, StatusCompleted, duration.Seconds(), objectKey, sizeBytes)
	if err != nil {
		return fmt.Errorf("mark completed %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark completed %s: recording not found", id)
	}
	return nil
}

// MarkDiscarded closes a row for a clip that was dropped.
func (s *PostgresStore) MarkDiscarded(ctx context.Context, id string, reason string) error {
	const q = `
	UPDATE recordings
	SET status = $2, ended_at = NOW(), updated_at = NOW()
	WHERE id = $1`

	res, err := s.db.ExecContext(ctx, q, id, StatusDiscarded)
	if err != nil {
		return fmt.Errorf("mark discarded %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark discarded %s: recording not found", id)
	}

	s.logger.Debug("Recording discarded", zap.String("id", id), zap.String("reason", reason))
	return nil
}

// GetRecording fetches one row by id.
func (s *PostgresStore) GetRecording(ctx context.Context, id string) (*Recording, error) {
	var rec Recording
	if err := s.db.GetContext(ctx, &rec, `SELECT * FROM recordings WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("recording %s not found", id)
		}
		return nil, fmt.Errorf("get recording %s: %w", id, err)
	}
	return &rec, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
