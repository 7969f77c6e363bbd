package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	boxColor   = color.RGBA{G: 255, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const boxThickness = 2

// Headless is a Preview without a window. It renders overlays in memory and,
// when a snapshot path is set, writes the last annotated frame there on
// Close. It never reports a key press; stop it by cancelling the context.
type Headless struct {
	mu       sync.Mutex
	snapshot string
	last     *image.RGBA
	shown    int
}

// NewHeadless returns a headless preview. snapshot may be empty.
func NewHeadless(snapshot string) *Headless {
	return &Headless{snapshot: snapshot}
}

// HeadlessDisplay returns a Display producing Headless previews.
func HeadlessDisplay(snapshot string) Display {
	return DisplayFunc(func(string) (Preview, error) {
		return NewHeadless(snapshot), nil
	})
}

// Show decodes the frame and draws the overlays on it.
func (h *Headless) Show(frame *Frame, overlays []Overlay) error {
	if frame == nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(frame.JPEG))
	if err != nil {
		return fmt.Errorf("decoding frame %d: %w", frame.Seq, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = Annotate(img, overlays)
	h.shown++
	return nil
}

// Key always returns NoKey.
func (h *Headless) Key() int {
	return NoKey
}

// Last returns the most recent annotated frame, nil before the first Show.
func (h *Headless) Last() *image.RGBA {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Shown returns how many frames were rendered.
func (h *Headless) Shown() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shown
}

// Close writes the snapshot if configured.
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.snapshot == "" || h.last == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, h.last, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(h.snapshot, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Annotate copies img and draws a box and a label for each overlay, the
// label placed just above the box.
func Annotate(img image.Image, overlays []Overlay) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	for _, o := range overlays {
		drawBox(dst, o.Rect.Intersect(b))
		drawLabel(dst, o.Label, image.Pt(o.Rect.Min.X, o.Rect.Min.Y-10))
	}
	return dst
}

func drawBox(dst *image.RGBA, r image.Rectangle) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(boxColor)
	t := boxThickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

func drawLabel(dst *image.RGBA, label string, at image.Point) {
	if label == "" {
		return
	}
	face := basicfont.Face7x13
	// Keep the baseline inside the image when the box touches the top edge.
	if at.Y < face.Ascent {
		at.Y = face.Ascent
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(label)
}
