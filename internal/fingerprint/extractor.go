// Package fingerprint turns face images into embedding vectors.
package fingerprint

import (
	"context"
	"image"
)

// Detection is one face found in an image.
type Detection struct {
	BBox      image.Rectangle // pixel coordinates in the input image
	Embedding []float32
	Score     float64 // detector confidence, 0 when the backend does not report one
}

// Extractor detects faces and computes one embedding per face. Detections
// are returned in detector order.
type Extractor interface {
	Detect(ctx context.Context, img []byte) ([]Detection, error)
	// Model names the embedding model, stored alongside trained encodings.
	// It is empty while the model is not known.
	Model() string
	Close() error
}

// First returns the embedding of the first detected face, or nil when the
// image has no face. It does not pick the largest face.
func First(ctx context.Context, ex Extractor, img []byte) ([]float32, error) {
	dets, err := ex.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	for _, d := range dets {
		if len(d.Embedding) > 0 {
			return d.Embedding, nil
		}
	}
	return nil, nil
}
