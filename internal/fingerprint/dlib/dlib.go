// Package dlib extracts 128-d face descriptors with dlib's ResNet model via
// go-face. It needs cgo and the dlib model files (shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat, mmod_human_face_detector.dat).
package dlib

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// ModelName is recorded with encodings trained by this extractor.
const ModelName = "dlib_face_recognition_resnet_model_v1"

// Extractor wraps a go-face recognizer. The recognizer is not safe for
// concurrent use, so calls are serialized.
type Extractor struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// New loads the dlib models from modelsDir.
func New(modelsDir string) (*Extractor, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("loading dlib models from %s: %w", modelsDir, err)
	}
	return &Extractor{rec: rec}, nil
}

// Detect finds every face in a JPEG image and computes its descriptor.
func (e *Extractor) Detect(ctx context.Context, img []byte) ([]fingerprint.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	faces, err := e.rec.Recognize(img)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("recognizing faces: %w", err)
	}

	dets := make([]fingerprint.Detection, 0, len(faces))
	for _, f := range faces {
		emb := make([]float32, len(f.Descriptor))
		copy(emb, f.Descriptor[:])
		dets = append(dets, fingerprint.Detection{BBox: f.Rectangle, Embedding: emb})
	}
	return dets, nil
}

// Model returns ModelName.
func (e *Extractor) Model() string {
	return ModelName
}

// Close frees the native recognizer.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return nil
}

var _ fingerprint.Extractor = (*Extractor)(nil)
