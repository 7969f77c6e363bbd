package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ResizeImage resizes an image to fit within maxSize while keeping aspect ratio.
// Returns JPEG-encoded bytes, or data unchanged when it already fits.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	out, _, err := resizeWithScale(data, maxSize)
	return out, err
}

// resizeWithScale is ResizeImage that also reports the factor applied to
// both axes (1 when unchanged), so coordinates found in the result can be
// mapped back to the original.
func resizeWithScale(data []byte, maxSize int) ([]byte, float64, error) {
	if maxSize <= 0 {
		return data, 1, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= maxSize && cfg.Height <= maxSize {
		return data, 1, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, 0, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), float64(newWidth) / float64(width), nil
}

// bboxToRect converts an [x1, y1, x2, y2] pixel box found in an image scaled
// by scale back to a rectangle in original image coordinates.
func bboxToRect(bbox []float64, scale float64) image.Rectangle {
	if len(bbox) != 4 || scale <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Round(bbox[0]/scale)),
		int(math.Round(bbox[1]/scale)),
		int(math.Round(bbox[2]/scale)),
		int(math.Round(bbox[3]/scale)),
	)
}
