package attendance

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/camera"
)

const captureTitle = "Capturing Face Images - Press Q to Quit"

// CaptureInput names the person to enroll and how many frames to write.
type CaptureInput struct {
	Name   string
	Frames int // defaults to DefaultFrames
}

// CaptureResult lists the images written. Fewer than the requested frames is
// not an error; Stopped tells whether the operator ended the session early and
// Exhausted whether a finite source ran out of frames.
type CaptureResult struct {
	Name        string
	Paths       []string
	Requested   int
	Stopped     bool
	Exhausted   bool
	FailedReads int
}

// Capture opens the camera and writes frames to the person's dataset
// directory as 0.jpg, 1.jpg, ... until the requested count is reached, the
// stop key is pressed or ctx is cancelled. A failed read is retried on the
// next iteration.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (res *CaptureResult, err error) {
	if s.store == nil || s.camera == nil || s.display == nil {
		return nil, errNotConfigured("image store or camera")
	}
	frames := in.Frames
	if frames <= 0 {
		frames = DefaultFrames
	}
	if _, err := s.store.Ensure(in.Name); err != nil {
		return nil, err
	}

	res = &CaptureResult{Name: in.Name, Requested: frames}

	dev, err := s.camera.Open()
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing camera: %w", cerr)
		}
	}()

	preview, err := s.display.Open(captureTitle)
	if err != nil {
		return res, fmt.Errorf("opening preview: %w", err)
	}
	defer preview.Close()

	failedInARow := 0
	for len(res.Paths) < frames {
		if ctx.Err() != nil {
			res.Stopped = true
			break
		}

		frame, ok := dev.Read()
		if !ok {
			if finite, isFinite := dev.(camera.Finite); isFinite && finite.Exhausted() {
				res.Exhausted = true
				break
			}
			res.FailedReads++
			failedInARow++
			if failedInARow >= maxConsecutiveFailedReads {
				return res, fmt.Errorf("%w: %d failed reads in a row", ErrNoCamera, failedInARow)
			}
			continue
		}
		failedInARow = 0

		if err := preview.Show(frame, nil); err != nil {
			return res, fmt.Errorf("showing frame %d: %w", frame.Seq, err)
		}
		path, err := s.store.Save(in.Name, len(res.Paths), frame.JPEG)
		if err != nil {
			return res, err
		}
		res.Paths = append(res.Paths, path)

		if preview.Key() == s.stopKey {
			res.Stopped = len(res.Paths) < frames
			break
		}
	}

	return res, nil
}
