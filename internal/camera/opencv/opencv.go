// Package opencv implements the camera device and preview window with
// OpenCV through gocv. It needs cgo and an OpenCV installation.
package opencv

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attendance/internal/camera"
)

var (
	knownColor   = color.RGBA{G: 255, A: 255}
	unknownColor = color.RGBA{R: 255, A: 255}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Camera reads frames from a video capture device.
type Camera struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
	seq int
}

// Open opens the video capture device with the given index.
func Open(device int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", camera.ErrNoDevice, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", camera.ErrNoDevice, device)
	}
	return &Camera{cap: vc, mat: gocv.NewMat()}, nil
}

// Source returns a camera.Source opening device on every Open.
func Source(device int) camera.Source {
	return camera.SourceFunc(func() (camera.Device, error) {
		return Open(device)
	})
}

// Read grabs one frame and encodes it as JPEG.
func (c *Camera) Read() (*camera.Frame, bool) {
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, false
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.mat)
	if err != nil {
		return nil, false
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	c.seq++
	return &camera.Frame{Seq: c.seq, JPEG: data, Width: c.mat.Cols(), Height: c.mat.Rows()}, true
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mat.Close()
	if err := c.cap.Close(); err != nil {
		return fmt.Errorf("closing video capture: %w", err)
	}
	return nil
}

// Window is a HighGUI preview window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a preview window with the given title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Display returns a camera.Display opening HighGUI windows.
func Display() camera.Display {
	return camera.DisplayFunc(func(title string) (camera.Preview, error) {
		return NewWindow(title), nil
	})
}

// Show decodes the frame, draws the overlays and displays it.
func (w *Window) Show(frame *camera.Frame, overlays []camera.Overlay) error {
	if frame == nil {
		return nil
	}
	mat, err := gocv.IMDecode(frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("decoding frame %d: %w", frame.Seq, err)
	}
	defer mat.Close()

	for _, o := range overlays {
		c := unknownColor
		if o.Known {
			c = knownColor
		}
		gocv.Rectangle(&mat, o.Rect, c, 2)
		gocv.PutText(&mat, o.Label, image.Pt(o.Rect.Min.X, o.Rect.Min.Y-10), gocv.FontHersheySimplex, 0.7, textColor, 2)
	}

	w.win.IMShow(mat)
	return nil
}

// Key pumps the window event loop for 1ms and returns the pressed key.
func (w *Window) Key() int {
	k := w.win.WaitKey(1)
	if k < 0 {
		return camera.NoKey
	}
	return k & 0xFF
}

// Close destroys the window.
func (w *Window) Close() error {
	if err := w.win.Close(); err != nil {
		return fmt.Errorf("closing window: %w", err)
	}
	return nil
}

var (
	_ camera.Device  = (*Camera)(nil)
	_ camera.Preview = (*Window)(nil)
)
