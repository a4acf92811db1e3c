// Package frame provides camera frame sources for the capture loop.
//
// A Source is acquired once with Open, sampled with Capture, and released
// with Close. Sources are not assumed to be safe for concurrent Capture
// calls; the capture loop never overlaps them.
package frame

import (
	"context"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrNoFrame means the source is healthy but has nothing to hand out yet.
	// The capture loop skips the tick silently.
	ErrNoFrame = errors.New("no frame available")

	// ErrClosed is returned by a released source.
	ErrClosed = errors.New("frame source closed")

	// ErrNotOpen is returned when Capture is called before Open.
	ErrNotOpen = errors.New("frame source not open")
)

// Frame is one encoded still image.
type Frame struct {
	Data        []byte
	ContentType string
	CapturedAt  time.Time
	Seq         uint64
}

// Base64 returns the image as plain base64, without a data URL prefix.
func (f *Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// Source is a live camera feed.
type Source interface {
	// Open acquires the device. An error means the camera is unavailable.
	Open(ctx context.Context) error
	// Capture returns the current frame.
	Capture(ctx context.Context) (*Frame, error)
	// Close releases the device.
	Close() error
}
