package encoding

import (
	"sync/atomic"
)

// bytesPerPixel is fixed by the pool's BGRA 8-bit format.
const bytesPerPixel = 4

// PixelBuffer is one reusable fixed-format pixel buffer: BGRA, 8 bits per
// channel, premultiplied alpha. Dimensions and stride are fixed at pool
// creation. Access to the pixel bytes goes through Lock/Unlock so that no
// pointer into the buffer outlives the call that acquired it.
type PixelBuffer struct {
	pix    []byte
	width  int
	height int
	stride int
	locked bool
}

func (b *PixelBuffer) Width() int  { return b.width }
func (b *PixelBuffer) Height() int { return b.height }
func (b *PixelBuffer) Stride() int { return b.stride }

// Lock grants access to the buffer's pixel bytes. Callers must Unlock on
// every exit path, typically via defer.
func (b *PixelBuffer) Lock() ([]byte, error) {
	if b.locked {
		return nil, &ConfigError{Field: "buffer", Reason: "already locked"}
	}
	b.locked = true
	return b.pix, nil
}

// Unlock releases access granted by Lock.
func (b *PixelBuffer) Unlock() {
	b.locked = false
}

// PixelBufferPool manages a small bounded pool of reusable pixel buffers.
// Buffers are allocated lazily up to the fixed capacity; once every buffer
// is checked out, Get fails with ErrPoolExhausted rather than allocating
// more.
type PixelBufferPool struct {
	free     chan *PixelBuffer
	width    int
	height   int
	stride   int
	capacity int32

	allocated atomic.Int32
	inUse     atomic.Int32
	closed    atomic.Bool

	// Metrics
	gets      atomic.Uint64
	puts      atomic.Uint64
	exhausted atomic.Uint64
}

// NewPixelBufferPool creates a pool of BGRA buffers with the given
// dimensions. A non-positive capacity defaults to 4.
func NewPixelBufferPool(width, height, capacity int) *PixelBufferPool {
	if capacity <= 0 {
		capacity = 4
	}
	return &PixelBufferPool{
		free:     make(chan *PixelBuffer, capacity),
		width:    width,
		height:   height,
		stride:   width * bytesPerPixel,
		capacity: int32(capacity),
	}
}

// Get retrieves a buffer from the pool, allocating lazily while under
// capacity. Returns ErrPoolExhausted when all buffers are checked out and
// ErrPoolClosed after Close.
func (p *PixelBufferPool) Get() (*PixelBuffer, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	p.gets.Add(1)

	select {
	case buf := <-p.free:
		p.inUse.Add(1)
		return buf, nil
	default:
	}

	if p.allocated.Add(1) > p.capacity {
		p.allocated.Add(-1)
		p.exhausted.Add(1)
		return nil, ErrPoolExhausted
	}
	p.inUse.Add(1)
	return &PixelBuffer{
		pix:    make([]byte, p.height*p.stride),
		width:  p.width,
		height: p.height,
		stride: p.stride,
	}, nil
}

// Put returns a buffer to the pool. Nil buffers and buffers returned after
// Close are dropped.
func (p *PixelBufferPool) Put(buf *PixelBuffer) {
	if buf == nil {
		return
	}
	buf.locked = false
	p.puts.Add(1)
	p.inUse.Add(-1)

	if p.closed.Load() {
		p.allocated.Add(-1)
		return
	}
	select {
	case p.free <- buf:
	default:
		p.allocated.Add(-1)
	}
}

// Close releases pooled buffers. Outstanding buffers are dropped when
// returned.
func (p *PixelBufferPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for {
		select {
		case <-p.free:
			p.allocated.Add(-1)
		default:
			return
		}
	}
}

// InUse reports how many buffers are currently checked out.
func (p *PixelBufferPool) InUse() int {
	return int(p.inUse.Load())
}

// Metrics returns pool statistics.
func (p *PixelBufferPool) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"capacity":  p.capacity,
		"allocated": p.allocated.Load(),
		"in_use":    p.inUse.Load(),
		"gets":      p.gets.Load(),
		"puts":      p.puts.Load(),
		"exhausted": p.exhausted.Load(),
	}
}
