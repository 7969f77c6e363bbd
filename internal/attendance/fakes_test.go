package attendance

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// fakeExtractor maps image contents to detections. Unknown contents have no
// face; contents listed in broken fail to decode.
type fakeExtractor struct {
	faces  map[string][]fingerprint.Detection
	broken map[string]bool
	panic  bool
	calls  int
	model  string // overrides "fake-model"
}

func (f *fakeExtractor) Detect(ctx context.Context, img []byte) ([]fingerprint.Detection, error) {
	f.calls++
	if f.panic {
		panic("extractor exploded")
	}
	if f.broken[string(img)] {
		return nil, errors.New("image: unknown format")
	}
	return f.faces[string(img)], nil
}

func (f *fakeExtractor) Model() string {
	if f.model != "" {
		return f.model
	}
	return "fake-model"
}

func (f *fakeExtractor) Close() error { return nil }

func face(x int, emb ...float32) fingerprint.Detection {
	return fingerprint.Detection{BBox: image.Rect(x, 10, x+40, 60), Embedding: emb}
}

// fakeDevice returns scripted frames; a nil entry is a failed read. Reads
// past the script fail.
type fakeDevice struct {
	mu     sync.Mutex
	frames []*camera.Frame
	next   int
	closed bool
}

func (d *fakeDevice) Read() (*camera.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.frames) {
		return nil, false
	}
	f := d.frames[d.next]
	d.next++
	return f, f != nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// loopDevice returns the same frame forever.
type loopDevice struct {
	frame  *camera.Frame
	reads  int
	closed bool
}

func (d *loopDevice) Read() (*camera.Frame, bool) {
	d.reads++
	f := *d.frame
	f.Seq = d.reads
	return &f, true
}

func (d *loopDevice) Close() error {
	d.closed = true
	return nil
}

type fakeSource struct {
	dev    camera.Device
	err    error
	opened int
}

func (s *fakeSource) Open() (camera.Device, error) {
	s.opened++
	if s.err != nil {
		return nil, s.err
	}
	return s.dev, nil
}

// fakePreview records what was shown and returns scripted keys, NoKey once
// the script runs out.
type fakePreview struct {
	title    string
	keys     []int
	shown    [][]camera.Overlay
	closed   bool
	cancelAt int // cancel after this many frames, if set
	cancel   context.CancelFunc
}

func (p *fakePreview) Show(frame *camera.Frame, overlays []camera.Overlay) error {
	p.shown = append(p.shown, overlays)
	if p.cancel != nil && len(p.shown) == p.cancelAt {
		p.cancel()
	}
	return nil
}

func (p *fakePreview) Key() int {
	if len(p.keys) == 0 {
		return camera.NoKey
	}
	k := p.keys[0]
	p.keys = p.keys[1:]
	return k
}

func (p *fakePreview) Close() error {
	p.closed = true
	return nil
}

type fakeDisplay struct {
	preview *fakePreview
	opened  int
}

func (d *fakeDisplay) Open(title string) (camera.Preview, error) {
	d.opened++
	d.preview.title = title
	return d.preview, nil
}

func frames(contents ...string) []*camera.Frame {
	out := make([]*camera.Frame, len(contents))
	for i, c := range contents {
		if c == "" {
			continue
		}
		out[i] = &camera.Frame{Seq: i + 1, JPEG: []byte(c), Width: 640, Height: 480}
	}
	return out
}

// fixedClock returns a settable clock.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }
