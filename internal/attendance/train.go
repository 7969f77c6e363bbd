package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
)

// TrainOptions controls a training run.
type TrainOptions struct {
	// Sorted processes people and images in lexical order instead of the
	// order the filesystem lists them in.
	Sorted bool
	// Progress is called after each image, if set.
	Progress func(TrainProgress)
}

// TrainProgress reports one processed image.
type TrainProgress struct {
	Person string
	Path   string
	Done   int
	Total  int
	Status ImageStatus
}

// ImageStatus is the outcome for one dataset image.
type ImageStatus string

const (
	ImageEncoded    ImageStatus = "encoded"
	ImageNoFace     ImageStatus = "no_face"
	ImageUnreadable ImageStatus = "unreadable"
)

// SkippedImage is an image that contributed no embedding.
type SkippedImage struct {
	Path   string
	Status ImageStatus
	Err    error
}

// TrainResult summarizes a training run.
type TrainResult struct {
	People     int
	Images     int
	Encoded    int
	NoFace     int
	Unreadable int
	PerPerson  map[string]int
	Skipped    []SkippedImage
	Model      string
	Dim        int
	TrainedAt  time.Time
	Duration   time.Duration
}

type datasetImage struct {
	person string
	path   string
}

// Train rebuilds the encoding database from every image in the dataset and
// saves it, replacing the previous one. Each image contributes the embedding
// of its first detected face; images without a face or that cannot be
// decoded are skipped and counted.
func (s *Service) Train(ctx context.Context, opts TrainOptions) (*TrainResult, error) {
	if s.encodings == nil {
		return nil, errNotConfigured("encoding store")
	}
	db, res, err := s.Build(ctx, opts)
	if err != nil {
		return res, err
	}
	if err := s.encodings.Save(ctx, db); err != nil {
		return res, fmt.Errorf("saving encodings: %w", err)
	}

	// Refresh the cached graph so the next recognition run can load it.
	if s.indexPath != "" && s.matcher.TieBreak == facematch.TieBreakClosest && db.Len() > 0 {
		if _, err := database.EnsureIndex(db, string(s.matcher.Metric), s.indexPath); err != nil {
			return res, fmt.Errorf("building HNSW index: %w", err)
		}
	}
	return res, nil
}

// Build computes the encoding database without saving it.
func (s *Service) Build(ctx context.Context, opts TrainOptions) (*database.EncodingDatabase, *TrainResult, error) {
	start := time.Now()
	res := &TrainResult{PerPerson: make(map[string]int)}
	if s.store == nil || s.extractor == nil {
		return nil, res, errNotConfigured("image store or extractor")
	}

	store := s.store
	if opts.Sorted {
		store = imagestore.New(s.store.Root(), imagestore.Sorted())
	}

	images, people, err := collectImages(store)
	if err != nil {
		return nil, res, err
	}
	res.People = people
	res.Images = len(images)

	db := &database.EncodingDatabase{}
	var lastErr error
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, res, err
		}

		status, err := s.encodeImage(ctx, store, db, img)
		if err != nil && ctx.Err() != nil {
			return nil, res, ctx.Err()
		}
		switch status {
		case ImageEncoded:
			res.Encoded++
			res.PerPerson[img.person]++
		case ImageNoFace:
			res.NoFace++
			res.Skipped = append(res.Skipped, SkippedImage{Path: img.path, Status: status})
		case ImageUnreadable:
			res.Unreadable++
			res.Skipped = append(res.Skipped, SkippedImage{Path: img.path, Status: status, Err: err})
			lastErr = err
		}

		if opts.Progress != nil {
			opts.Progress(TrainProgress{Person: img.person, Path: img.path, Done: i + 1, Total: len(images), Status: status})
		}
	}

	// Every image failing points at the extractor, not the dataset.
	if res.Images > 0 && res.Unreadable == res.Images {
		return nil, res, fmt.Errorf("no image could be processed: %w", lastErr)
	}

	db.Model = s.extractor.Model()
	// PostgreSQL keeps microseconds; the cached HNSW index is keyed on this.
	db.TrainedAt = s.now().Truncate(time.Microsecond)
	res.Model = db.Model
	res.Dim = db.Dim
	res.TrainedAt = db.TrainedAt
	res.Duration = time.Since(start)
	return db, res, nil
}

func (s *Service) encodeImage(ctx context.Context, store *imagestore.Store, db *database.EncodingDatabase, img datasetImage) (ImageStatus, error) {
	data, err := store.Read(img.path)
	if err != nil {
		return ImageUnreadable, err
	}
	emb, err := fingerprint.First(ctx, s.extractor, data)
	if err != nil {
		return ImageUnreadable, err
	}
	if emb == nil {
		return ImageNoFace, nil
	}
	if db.Dim != 0 && len(emb) != db.Dim {
		return ImageUnreadable, fmt.Errorf("embedding has dimension %d, expected %d", len(emb), db.Dim)
	}
	db.Add(img.person, img.path, emb)
	return ImageEncoded, nil
}

func collectImages(store *imagestore.Store) ([]datasetImage, int, error) {
	people, err := store.People()
	if err != nil {
		return nil, 0, fmt.Errorf("listing people: %w", err)
	}

	var images []datasetImage
	for _, person := range people {
		paths, err := store.Images(person)
		if err != nil {
			return nil, 0, fmt.Errorf("listing images of %s: %w", person, err)
		}
		for _, p := range paths {
			images = append(images, datasetImage{person: person, path: p})
		}
	}
	return images, len(people), nil
}
