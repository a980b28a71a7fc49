package pose

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// ReplayFrame is one analyzed frame from an estimator trace: an ordered list
// of detected subjects plus the frame's presentation timestamp.
type ReplayFrame struct {
	TimestampMs int64              `json:"timestamp_ms"`
	Subjects    []map[string]Point `json:"subjects"`
}

// PTS returns the frame's presentation timestamp.
func (f *ReplayFrame) PTS() time.Duration {
	return time.Duration(f.TimestampMs) * time.Millisecond
}

// LandmarkSets converts the raw joint maps into typed landmark sets,
// preserving subject order.
func (f *ReplayFrame) LandmarkSets() []LandmarkSet {
	if len(f.Subjects) == 0 {
		return nil
	}
	sets := make([]LandmarkSet, 0, len(f.Subjects))
	for _, subj := range f.Subjects {
		ls := make(LandmarkSet, len(subj))
		for name, pt := range subj {
			ls[Joint(name)] = pt
		}
		sets = append(sets, ls)
	}
	return sets
}

// ReplayReader reads estimator traces written as one JSON frame per line.
// Malformed lines are skipped with a warning so a partially corrupt trace
// still replays.
type ReplayReader struct {
	logger *zap.Logger
}

// NewReplayReader creates a reader. A nil logger disables logging.
func NewReplayReader(logger *zap.Logger) *ReplayReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayReader{logger: logger.Named("replay")}
}

// ReadFile parses all frames from the trace at path.
func (r *ReplayReader) ReadFile(path string) ([]ReplayFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer file.Close()

	var frames []ReplayFrame
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var frame ReplayFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			r.logger.Warn("Skipping malformed trace frame",
				zap.String("path", path),
				zap.Int("line", line),
				zap.Error(err))
			continue
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return frames, fmt.Errorf("read trace: %w", err)
	}

	r.logger.Info("Read landmark trace",
		zap.String("path", path),
		zap.Int("frames", len(frames)))
	return frames, nil
}
