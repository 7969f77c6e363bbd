package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/camera/opencv"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/local"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/fingerprint/dlib"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
)

// backends opens the storage, extractor and camera collaborators selected by
// the configuration. Everything opened is released by Close.
type backends struct {
	cfg     *config.Config
	pg      *postgres.Pool
	closers []func() error
}

func newBackends(cfg *config.Config) *backends {
	return &backends{cfg: cfg}
}

// Close releases everything in reverse opening order.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}
	b.closers = nil
}

func (b *backends) onClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

// postgres opens the shared PostgreSQL pool once and runs migrations.
func (b *backends) pgPool(ctx context.Context) (*postgres.Pool, error) {
	if b.pg != nil {
		return b.pg, nil
	}
	pool, err := postgres.Open(ctx, &b.cfg.Database)
	if err != nil {
		return nil, err
	}
	b.pg = pool
	b.onClose(pool.Close)
	return pool, nil
}

func (b *backends) extractor() (fingerprint.Extractor, error) {
	var ex fingerprint.Extractor
	switch b.cfg.Recognition.Extractor {
	case config.ExtractorDlib:
		d, err := dlib.New(b.cfg.Recognition.ModelsDir)
		if err != nil {
			return nil, err
		}
		ex = d
	case config.ExtractorHTTP:
		ex = fingerprint.NewEmbeddingClient(b.cfg.Embedding.URL, b.cfg.Recognition.MaxImageSize)
	default:
		return nil, fmt.Errorf("unknown extractor %q", b.cfg.Recognition.Extractor)
	}
	b.onClose(ex.Close)
	return ex, nil
}

func (b *backends) encodings(ctx context.Context) (database.EncodingStore, error) {
	switch b.cfg.Storage.Encodings {
	case config.BackendFile:
		return local.NewEncodingFile(b.cfg.Paths.Encodings), nil
	case config.BackendPostgres:
		pool, err := b.pgPool(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewEncodingRepository(pool), nil
	default:
		return nil, fmt.Errorf("unknown encodings backend %q", b.cfg.Storage.Encodings)
	}
}

func (b *backends) ledger(ctx context.Context) (database.Ledger, error) {
	switch b.cfg.Storage.Ledger {
	case config.BackendCSV:
		return local.NewCSVLedger(b.cfg.Paths.Ledger), nil
	case config.BackendPostgres:
		pool, err := b.pgPool(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewLedgerRepository(pool), nil
	case config.BackendMariaDB:
		pool, err := mariadb.NewPool(b.cfg.MariaDB.DSN)
		if err != nil {
			return nil, err
		}
		b.onClose(pool.Close)
		if err := pool.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return mariadb.NewLedger(pool), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", b.cfg.Storage.Ledger)
	}
}

func (b *backends) matcher() (*facematch.Matcher, error) {
	return facematch.NewMatcher(
		b.cfg.Recognition.Tolerance,
		facematch.TieBreak(b.cfg.Recognition.TieBreak),
		facematch.Metric(b.cfg.Recognition.Metric),
	)
}

// videoFlags are shared by capture and attend.
type videoFlags struct {
	device   int
	replay   string
	headless bool
	snapshot string
}

func addVideoFlags(cmd *cobra.Command) {
	cmd.Flags().Int("device", -1, "Camera device index (default from CAMERA_DEVICE)")
	cmd.Flags().String("replay", "", "Read frames from JPEG files in this directory instead of a camera")
	cmd.Flags().Bool("headless", false, "Do not open a preview window")
	cmd.Flags().String("snapshot", "", "With --headless, write the last annotated frame to this JPEG file")
}

func readVideoFlags(cmd *cobra.Command, cfg *config.Config) videoFlags {
	v := videoFlags{
		device:   mustGetInt(cmd, "device"),
		replay:   mustGetString(cmd, "replay"),
		headless: mustGetBool(cmd, "headless"),
		snapshot: mustGetString(cmd, "snapshot"),
	}
	if v.device < 0 {
		v.device = cfg.Camera.Device
	}
	return v
}

func (v videoFlags) source() camera.Source {
	if v.replay != "" {
		return camera.DirSource(v.replay)
	}
	return opencv.Source(v.device)
}

func (v videoFlags) display() camera.Display {
	if v.headless {
		return camera.HeadlessDisplay(v.snapshot)
	}
	return opencv.Display()
}

// serviceOptions selects which collaborators newService wires.
type serviceOptions struct {
	extractor bool
	encodings bool
	ledger    bool
	video     *videoFlags
}

// newService builds an attendance service with the requested collaborators.
func (b *backends) newService(ctx context.Context, opts serviceOptions) (*attendance.Service, error) {
	deps := attendance.Deps{
		Store:     imagestore.New(b.cfg.Paths.Dataset),
		StopKey:   b.cfg.Camera.StopKeyCode(),
		IndexPath: b.cfg.Database.HNSWIndexPath,
	}

	m, err := b.matcher()
	if err != nil {
		return nil, err
	}
	deps.Matcher = m

	if opts.extractor {
		if deps.Extractor, err = b.extractor(); err != nil {
			return nil, err
		}
	}
	if opts.encodings {
		if deps.Encodings, err = b.encodings(ctx); err != nil {
			return nil, err
		}
	}
	if opts.ledger {
		if deps.Ledger, err = b.ledger(ctx); err != nil {
			return nil, err
		}
	}
	if opts.video != nil {
		deps.Camera = opts.video.source()
		deps.Display = opts.video.display()
	}
	return attendance.NewService(deps), nil
}

// explain turns the typed action errors into operator-facing messages.
func explain(err error) error {
	switch {
	case errors.Is(err, attendance.ErrEmptyName):
		return errors.New("please enter a name")
	case errors.Is(err, attendance.ErrNotTrained):
		return errors.New("no trained encodings found, run 'face-attendance train' first")
	case errors.Is(err, attendance.ErrModelMismatch):
		return fmt.Errorf("%w, run 'face-attendance train' again with this extractor", err)
	case errors.Is(err, attendance.ErrNoCamera):
		return fmt.Errorf("could not open the camera: %w", err)
	}
	return err
}
