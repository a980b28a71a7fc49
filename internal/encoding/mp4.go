package encoding

import (
	"fmt"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// mp4Timescale is the track timescale in units per second.
const mp4Timescale = 90000

// mp4Sink writes samples into a progressive MP4. Matroska can stream blocks
// as they arrive, but MP4 needs the sample table up front, so samples are
// buffered and the container is emitted in one pass at Close.
type mp4Sink struct {
	file      *os.File
	width     int
	height    int
	frameRate float64
	samples   []Sample
}

func newMP4Sink(file *os.File, codec Codec, width, height int, frameRate float64) (*mp4Sink, error) {
	// Only the built-in MJPEG frames carry enough information to build a
	// sample entry without a codec config record.
	if codec != CodecMJPEG {
		return nil, &ConfigError{
			Field:  "codec",
			Reason: fmt.Sprintf("codec %s is not supported for .mp4 destinations, use .mkv", codec),
		}
	}
	if frameRate <= 0 {
		frameRate = 30
	}
	return &mp4Sink{
		file:      file,
		width:     width,
		height:    height,
		frameRate: frameRate,
	}, nil
}

func (s *mp4Sink) WriteSample(sample Sample) error {
	s.samples = append(s.samples, sample)
	return nil
}

func (s *mp4Sink) Close() error {
	defer s.file.Close()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(mp4Timescale, "video", "en")

	trak := init.Moov.Trak
	entry := mp4.CreateVisualSampleEntryBox("jpeg", uint16(s.width), uint16(s.height), nil)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(entry)
	trak.Tkhd.Width = mp4.Fixed32(s.width << 16)
	trak.Tkhd.Height = mp4.Fixed32(s.height << 16)

	frag, err := mp4.CreateFragment(1, 1)
	if err != nil {
		return fmt.Errorf("create fragment: %w", err)
	}

	defaultDur := uint32(mp4Timescale / s.frameRate)
	for i, sample := range s.samples {
		dur := defaultDur
		if i < len(s.samples)-1 {
			next := s.samples[i+1].PTS
			if d := uint32((next - sample.PTS).Seconds() * mp4Timescale); d > 0 {
				dur = d
			}
		}

		flags := mp4.NonSyncSampleFlags
		if sample.Keyframe {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(sample.Data)),
				Dur:   dur,
			},
			DecodeTime: uint64(sample.PTS.Seconds() * mp4Timescale),
			Data:       sample.Data,
		})
	}

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "mp41"})
	if err := ftyp.Encode(s.file); err != nil {
		return fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(s.file); err != nil {
		return fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(s.file); err != nil {
		return fmt.Errorf("encode fragment: %w", err)
	}
	return s.file.Sync()
}
