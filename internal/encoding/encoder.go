package encoding

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Codec identifies the compressed format of samples fed to the container.
// Values are Matroska codec IDs; the MP4 sink maps them to sample entries.
type Codec string

const (
	CodecMJPEG Codec = "V_MJPEG"
	CodecVP8   Codec = "V_VP8"
	CodecAVC   Codec = "V_MPEG4/ISO/AVC"
	CodecAV1   Codec = "V_AV1"
)

// Sample is one ready-to-append encoded frame.
type Sample struct {
	Data     []byte
	PTS      time.Duration
	Keyframe bool
}

// FrameEncoder compresses pooled pixel buffers into container samples.
// Pre-encoded samples bypass it entirely.
type FrameEncoder interface {
	Codec() Codec
	Encode(buf *PixelBuffer, pts time.Duration) (Sample, error)
}

// jpegEncoder is the built-in intra-only encoder for bitmap input. Every
// frame is a keyframe, which keeps the container seekable at any sample.
type jpegEncoder struct {
	quality int
	scratch *image.RGBA
	out     bytes.Buffer
}

func newJPEGEncoder(width, height, quality int) *jpegEncoder {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &jpegEncoder{
		quality: quality,
		scratch: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

func (e *jpegEncoder) Codec() Codec { return CodecMJPEG }

// Encode compresses one locked-and-copied pixel buffer. The buffer lock is
// held only for the BGRA->RGBA copy; the buffer itself is never retained.
func (e *jpegEncoder) Encode(buf *PixelBuffer, pts time.Duration) (Sample, error) {
	pix, err := buf.Lock()
	if err != nil {
		return Sample{}, fmt.Errorf("lock pixel buffer: %w", err)
	}

	w, h := buf.Width(), buf.Height()
	stride := buf.Stride()
	for y := 0; y < h; y++ {
		srcRow := pix[y*stride : y*stride+w*4]
		dstRow := e.scratch.Pix[y*e.scratch.Stride : y*e.scratch.Stride+w*4]
		for x := 0; x < w; x++ {
			dstRow[x*4+0] = srcRow[x*4+2] // R
			dstRow[x*4+1] = srcRow[x*4+1] // G
			dstRow[x*4+2] = srcRow[x*4+0] // B
			dstRow[x*4+3] = srcRow[x*4+3] // A
		}
	}
	buf.Unlock()

	e.out.Reset()
	if err := jpeg.Encode(&e.out, e.scratch, &jpeg.Options{Quality: e.quality}); err != nil {
		return Sample{}, fmt.Errorf("encode JPEG frame: %w", err)
	}

	data := make([]byte, e.out.Len())
	copy(data, e.out.Bytes())
	return Sample{Data: data, PTS: pts, Keyframe: true}, nil
}
