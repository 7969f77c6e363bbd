// Package camera abstracts the video device and the preview window driven by
// the capture and recognition loops.
package camera

import (
	"errors"
	"image"
)

// NoKey is returned by Preview.Key when no key was pressed.
const NoKey = -1

// ErrNoDevice is returned when a video device cannot be opened.
var ErrNoDevice = errors.New("camera device not available")

// Frame is one captured image.
type Frame struct {
	Seq    int    // 1-based read counter per device
	JPEG   []byte // encoded frame as written to the dataset
	Width  int
	Height int
}

// Overlay is a labeled box drawn over a frame.
type Overlay struct {
	Rect  image.Rectangle
	Label string
	Known bool
}

// Device yields frames. Read reports false on a failed read.
type Device interface {
	Read() (*Frame, bool)
	Close() error
}

// Finite is implemented by devices that run out of frames, such as a replay.
// Exhausted reports whether a failed read means no frame will ever follow.
type Finite interface {
	Exhausted() bool
}

// Preview shows frames to the operator and reports key presses.
type Preview interface {
	Show(frame *Frame, overlays []Overlay) error
	// Key polls for a key press, returning NoKey when none is pending.
	Key() int
	Close() error
}

// Source opens the video device. Each loop invocation opens its own device.
type Source interface {
	Open() (Device, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Device, error)

// Open calls f.
func (f SourceFunc) Open() (Device, error) { return f() }

// Display opens preview windows.
type Display interface {
	Open(title string) (Preview, error)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(title string) (Preview, error)

// Open calls f.
func (f DisplayFunc) Open(title string) (Preview, error) { return f(title) }
