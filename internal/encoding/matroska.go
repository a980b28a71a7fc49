package encoding

import (
	"fmt"
	"os"
	"time"

	"github.com/at-wat/ebml-go/webm"
)

// containerSink abstracts the container being written. Sinks are driven by
// the session's single writer goroutine and need no internal locking.
type containerSink interface {
	// WriteSample appends one encoded frame to the container.
	WriteSample(s Sample) error
	// Close finalizes the container and the underlying file.
	Close() error
}

const videoTrackUID = 12345

// matroskaSink writes samples into a Matroska/WebM container. Close rewrites
// the segment metadata, which is what makes the output seekable.
type matroskaSink struct {
	block webm.BlockWriteCloser
}

func newMatroskaSink(file *os.File, codec Codec, width, height int, frameRate float64) (*matroskaSink, error) {
	if frameRate <= 0 {
		frameRate = 30
	}
	writers, err := webm.NewSimpleBlockWriter(file,
		[]webm.TrackEntry{
			{
				Name:            "Video",
				TrackNumber:     1,
				TrackUID:        videoTrackUID,
				CodecID:         string(codec),
				TrackType:       1,
				DefaultDuration: uint64(float64(time.Second) / frameRate),
				Video: &webm.Video{
					PixelWidth:  uint64(width),
					PixelHeight: uint64(height),
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create matroska writer: %w", err)
	}
	return &matroskaSink{block: writers[0]}, nil
}

func (s *matroskaSink) WriteSample(sample Sample) error {
	_, err := s.block.Write(sample.Keyframe, sample.PTS.Milliseconds(), sample.Data)
	return err
}

func (s *matroskaSink) Close() error {
	return s.block.Close()
}
