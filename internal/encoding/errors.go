// Package encoding owns the frame-to-video pipeline: a bounded pool of
// reusable pixel buffers, rasterization of arbitrary frame sources into the
// pool's fixed format, and the muxer session that turns accepted samples
// into a finished, seekable container file.
package encoding

import "fmt"

// ConfigError reports input the session cannot accept: invalid dimensions,
// an unwritable destination, an unsupported container, or an invalid start
// time. Creation failures are fatal and never retried automatically.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrPoolExhausted is returned by PixelBufferPool.Get when every buffer is
// checked out. Buffers are released on every exit path of the call that
// acquired them, so this is never expected in steady state.
var ErrPoolExhausted = &ConfigError{Field: "pool", Reason: "all pixel buffers checked out"}

// ErrPoolClosed is returned by Get after the pool has been closed.
var ErrPoolClosed = &ConfigError{Field: "pool", Reason: "pool is closed"}
