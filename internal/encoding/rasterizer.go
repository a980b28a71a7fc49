package encoding

import (
	"fmt"
	"image"
	"sync"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// VectorSource is a frame source without a bitmap backing. It is rendered
// through one process-wide reusable drawing context; each Render call must
// be self-contained because the context is shared across sessions.
type VectorSource interface {
	Render(dc *gg.Context)
}

// sharedRenderer is the single lazily-initialized, internally-synchronized
// drawing context used for vector sources. It carries no per-session state
// and is never exposed outside this package.
var sharedRenderer struct {
	mu sync.Mutex
	dc *gg.Context
}

// renderVector rasterizes v at the given size and hands the resulting RGBA
// to fill while still holding the renderer lock, so the shared context's
// pixels cannot be overwritten by a concurrent render before they are
// copied out.
func renderVector(v VectorSource, width, height int, fill func(*image.RGBA) error) error {
	sharedRenderer.mu.Lock()
	defer sharedRenderer.mu.Unlock()

	dc := sharedRenderer.dc
	if dc == nil || dc.Width() != width || dc.Height() != height {
		dc = gg.NewContext(width, height)
		sharedRenderer.dc = dc
	}
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	v.Render(dc)

	rgba, ok := dc.Image().(*image.RGBA)
	if !ok {
		return fmt.Errorf("unexpected render context image type %T", dc.Image())
	}
	return fill(rgba)
}

// Rasterizer converts arbitrary frame sources into pooled pixel buffers of
// the pool's fixed BGRA format. It reuses one scratch image for scaling and
// is not safe for concurrent use; the session's single-writer discipline
// serializes calls.
type Rasterizer struct {
	pool    *PixelBufferPool
	scratch *image.RGBA
}

// NewRasterizer creates a rasterizer drawing into buffers from pool.
func NewRasterizer(pool *PixelBufferPool) *Rasterizer {
	return &Rasterizer{pool: pool}
}

// Rasterize converts src into a pooled buffer. On any failure the acquired
// buffer is returned to the pool before the error propagates; on success
// ownership of the buffer passes to the caller.
func (r *Rasterizer) Rasterize(src image.Image) (*PixelBuffer, error) {
	buf, err := r.pool.Get()
	if err != nil {
		return nil, err
	}

	rgba, ok := src.(*image.RGBA)
	if ok && src.Bounds().Dx() == buf.Width() && src.Bounds().Dy() == buf.Height() {
		if err := fillFromRGBA(buf, rgba); err != nil {
			r.pool.Put(buf)
			return nil, err
		}
		return buf, nil
	}

	r.ensureScratch(buf.Width(), buf.Height())
	if src.Bounds().Dx() == buf.Width() && src.Bounds().Dy() == buf.Height() {
		xdraw.Draw(r.scratch, r.scratch.Bounds(), src, src.Bounds().Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(r.scratch, r.scratch.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}
	if err := fillFromRGBA(buf, r.scratch); err != nil {
		r.pool.Put(buf)
		return nil, err
	}
	return buf, nil
}

// RasterizeVector renders a bitmap-free source through the shared drawing
// context and converts the result into a pooled buffer.
func (r *Rasterizer) RasterizeVector(v VectorSource) (*PixelBuffer, error) {
	buf, err := r.pool.Get()
	if err != nil {
		return nil, err
	}
	err = renderVector(v, buf.Width(), buf.Height(), func(rgba *image.RGBA) error {
		return fillFromRGBA(buf, rgba)
	})
	if err != nil {
		r.pool.Put(buf)
		return nil, err
	}
	return buf, nil
}

func (r *Rasterizer) ensureScratch(width, height int) {
	if r.scratch == nil || r.scratch.Bounds().Dx() != width || r.scratch.Bounds().Dy() != height {
		r.scratch = image.NewRGBA(image.Rect(0, 0, width, height))
	}
}

// fillFromRGBA copies an RGBA image into a pixel buffer with the channel
// swap the buffer's BGRA layout requires. The buffer lock is held for the
// duration of the copy and released on every exit path.
func fillFromRGBA(buf *PixelBuffer, src *image.RGBA) error {
	pix, err := buf.Lock()
	if err != nil {
		return fmt.Errorf("lock pixel buffer: %w", err)
	}
	defer buf.Unlock()

	w, h := buf.Width(), buf.Height()
	if src.Bounds().Dx() < w {
		w = src.Bounds().Dx()
	}
	if src.Bounds().Dy() < h {
		h = src.Bounds().Dy()
	}
	if buf.Stride() < w*4 {
		return fmt.Errorf("buffer stride %d too small for %d pixels", buf.Stride(), w)
	}

	for y := 0; y < h; y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		dstRow := pix[y*buf.Stride() : y*buf.Stride()+w*4]
		for x := 0; x < w; x++ {
			dstRow[x*4+0] = srcRow[x*4+2] // B
			dstRow[x*4+1] = srcRow[x*4+1] // G
			dstRow[x*4+2] = srcRow[x*4+0] // R
			dstRow[x*4+3] = srcRow[x*4+3] // A
		}
	}
	return nil
}
