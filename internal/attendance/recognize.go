package attendance

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

const recognizeTitle = "Face Attendance System - Press Q to Quit"

// StopReason tells why a recognition run ended.
type StopReason string

const (
	StopKey         StopReason = "stop_key"
	StopEndOfStream StopReason = "end_of_stream"
	StopCancelled   StopReason = "cancelled"
	StopMaxFrames   StopReason = "max_frames"
)

// RecognizeOptions controls a recognition run.
type RecognizeOptions struct {
	// MaxFrames ends the run after this many frames; 0 means no limit.
	MaxFrames int
	// OnFrame is called after each processed frame, if set.
	OnFrame func(FrameReport)
}

// FaceResult is one face found in a frame.
type FaceResult struct {
	BBox     image.Rectangle
	Match    facematch.Match
	Recorded bool // a new ledger row was written for this face
}

// FrameReport describes one processed frame.
type FrameReport struct {
	Seq   int
	Faces []FaceResult
}

// RecognizeResult summarizes a recognition run.
type RecognizeResult struct {
	RunID     string
	Frames    int
	Faces     int
	Recorded  []database.AttendanceRecord
	FirstSeen map[string]time.Time
	Reason    StopReason
}

// Recognize loads the encodings, then reads frames from the camera,
// identifies every face and records known people in the ledger once per day.
// It returns ErrNotTrained without opening the camera when no encodings
// exist. A failed read ends the run. The camera and preview are released on
// every exit path.
func (s *Service) Recognize(ctx context.Context, opts RecognizeOptions) (res *RecognizeResult, err error) {
	if s.encodings == nil || s.ledger == nil || s.extractor == nil || s.camera == nil || s.display == nil {
		return nil, errNotConfigured("recognition collaborators")
	}

	db, err := s.encodings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkModel(db, s.extractor.Model()); err != nil {
		return nil, err
	}
	matcher := s.indexedMatcher(db)

	if in, ok := s.ledger.(interface{ Init() error }); ok {
		if err := in.Init(); err != nil {
			return nil, fmt.Errorf("initializing ledger: %w", err)
		}
	}

	res = &RecognizeResult{
		RunID:     uuid.New().String(),
		FirstSeen: make(map[string]time.Time),
	}

	dev, err := s.camera.Open()
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing camera: %w", cerr)
		}
	}()

	preview, err := s.display.Open(recognizeTitle)
	if err != nil {
		return res, fmt.Errorf("opening preview: %w", err)
	}
	defer preview.Close()

	for {
		if ctx.Err() != nil {
			res.Reason = StopCancelled
			return res, nil
		}
		if opts.MaxFrames > 0 && res.Frames >= opts.MaxFrames {
			res.Reason = StopMaxFrames
			return res, nil
		}

		frame, ok := dev.Read()
		if !ok {
			res.Reason = StopEndOfStream
			return res, nil
		}
		res.Frames++

		report, err := s.processFrame(ctx, matcher, db, frame, res)
		if err != nil {
			if ctx.Err() != nil {
				res.Reason = StopCancelled
				return res, nil
			}
			return res, err
		}

		overlays := make([]camera.Overlay, 0, len(report.Faces))
		for _, f := range report.Faces {
			overlays = append(overlays, camera.Overlay{Rect: f.BBox, Label: f.Match.Name, Known: f.Match.Known})
		}
		if err := preview.Show(frame, overlays); err != nil {
			return res, fmt.Errorf("showing frame %d: %w", frame.Seq, err)
		}
		if opts.OnFrame != nil {
			opts.OnFrame(report)
		}

		if preview.Key() == s.stopKey {
			res.Reason = StopKey
			return res, nil
		}
	}
}

func (s *Service) processFrame(ctx context.Context, matcher *facematch.Matcher, db *database.EncodingDatabase, frame *camera.Frame, res *RecognizeResult) (FrameReport, error) {
	report := FrameReport{Seq: frame.Seq}

	dets, err := s.extractor.Detect(ctx, frame.JPEG)
	if err != nil {
		return report, fmt.Errorf("detecting faces in frame %d: %w", frame.Seq, err)
	}

	for _, det := range dets {
		m := matcher.Match(db, det.Embedding)
		face := FaceResult{BBox: det.BBox, Match: m}

		if m.Known {
			now := s.now()
			rec, added, err := s.ledger.Record(ctx, m.Name, now)
			if err != nil {
				return report, fmt.Errorf("recording attendance for %s: %w", m.Name, err)
			}
			if added {
				face.Recorded = true
				res.Recorded = append(res.Recorded, rec)
			}
			if _, seen := res.FirstSeen[m.Name]; !seen {
				res.FirstSeen[m.Name] = now
			}
		}

		res.Faces++
		report.Faces = append(report.Faces, face)
	}
	return report, nil
}

// checkModel rejects encodings from another embedding model. An empty name on
// either side means the model is not known yet and is not checked.
func checkModel(db *database.EncodingDatabase, current string) error {
	if db.Len() == 0 || db.Model == "" || current == "" || db.Model == current {
		return nil
	}
	return fmt.Errorf("%w: trained with %s, extractor is %s", ErrModelMismatch, db.Model, current)
}

// indexedMatcher returns the matcher to use for db. The closest policy gets
// an HNSW index over db; on failure the plain linear scan is used.
func (s *Service) indexedMatcher(db *database.EncodingDatabase) *facematch.Matcher {
	if s.matcher.TieBreak != facematch.TieBreakClosest || db.Len() == 0 {
		return s.matcher
	}
	idx, err := database.EnsureIndex(db, string(s.matcher.Metric), s.indexPath)
	if err != nil {
		return s.matcher
	}
	m := *s.matcher
	m.UseIndex(idx)
	return &m
}
