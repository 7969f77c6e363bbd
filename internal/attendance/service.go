// Package attendance holds the actions behind every command: capturing face
// images, training encodings, running live recognition and reading the
// attendance ledger. Each action takes typed input, uses only the injected
// collaborators and returns a structured result.
package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
)

// DefaultFrames is the number of images a capture session writes.
const DefaultFrames = 10

// DefaultStopKey stops capture and recognition when pressed in the preview.
const DefaultStopKey = 'q'

// maxConsecutiveFailedReads aborts capture on a camera that stopped
// delivering frames.
const maxConsecutiveFailedReads = 500

var (
	// ErrEmptyName is returned by Capture for blank person names.
	ErrEmptyName = imagestore.ErrEmptyName
	// ErrInvalidName is returned by Capture for names with path separators.
	ErrInvalidName = imagestore.ErrInvalidName
	// ErrNoCamera is returned when the video device cannot be opened or
	// stops delivering frames during capture.
	ErrNoCamera = errors.New("camera not available")
	// ErrNotTrained is returned by Recognize before any training run.
	ErrNotTrained = database.ErrNotTrained
	// ErrModelMismatch is returned by Recognize when the encodings were
	// trained with another embedding model than the configured extractor.
	ErrModelMismatch = errors.New("encodings were trained with a different face model")
)

// Deps are the collaborators of a Service. Store, Extractor, Encodings and
// Ledger are required by the actions that use them; Camera and Display by
// Capture and Recognize.
type Deps struct {
	Store     *imagestore.Store
	Extractor fingerprint.Extractor
	Encodings database.EncodingStore
	Ledger    database.Ledger
	Camera    camera.Source
	Display   camera.Display
	Matcher   *facematch.Matcher

	StopKey   int              // defaults to DefaultStopKey
	Now       func() time.Time // defaults to time.Now
	IndexPath string           // optional HNSW cache for the closest tie-break
}

// Service runs the attendance actions.
type Service struct {
	store     *imagestore.Store
	extractor fingerprint.Extractor
	encodings database.EncodingStore
	ledger    database.Ledger
	camera    camera.Source
	display   camera.Display
	matcher   *facematch.Matcher
	stopKey   int
	now       func() time.Time
	indexPath string
}

// NewService creates a service, filling in defaults for optional fields.
func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		extractor: d.Extractor,
		encodings: d.Encodings,
		ledger:    d.Ledger,
		camera:    d.Camera,
		display:   d.Display,
		matcher:   d.Matcher,
		stopKey:   d.StopKey,
		now:       d.Now,
		indexPath: d.IndexPath,
	}
	if s.stopKey == 0 {
		s.stopKey = DefaultStopKey
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.matcher == nil {
		s.matcher = &facematch.Matcher{
			Tolerance: facematch.DefaultTolerance(facematch.MetricEuclidean),
			TieBreak:  facematch.TieBreakFirst,
			Metric:    facematch.MetricEuclidean,
		}
	}
	return s
}

// Matcher returns the configured matcher.
func (s *Service) Matcher() *facematch.Matcher {
	return s.matcher
}

// errNotConfigured guards actions called on a partially wired service.
func errNotConfigured(what string) error {
	return fmt.Errorf("attendance: %s not configured", what)
}
