// Package local provides file-backed storage: a gob encoding database and a
// CSV attendance ledger.
package local

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// encodingFileVersion is bumped when the on-disk layout changes.
const encodingFileVersion = 1

// encodingFile is the gob payload. Field names are part of the file format.
type encodingFile struct {
	Version   int
	Encodings [][]float32
	Names     []string
	Sources   []string
	Model     string
	Dim       int
	TrainedAt time.Time
}

// EncodingFile stores the encoding database in a single gob file.
type EncodingFile struct {
	path string
}

// NewEncodingFile returns a store backed by the file at path.
func NewEncodingFile(path string) *EncodingFile {
	return &EncodingFile{path: path}
}

// Path returns the backing file path.
func (s *EncodingFile) Path() string {
	return s.path
}

// Save replaces the file contents with db.
func (s *EncodingFile) Save(ctx context.Context, db *database.EncodingDatabase) error {
	if db == nil {
		return errors.New("encoding database is nil")
	}
	if len(db.Encodings) != len(db.Names) {
		return fmt.Errorf("encodings and names differ in length: %d != %d", len(db.Encodings), len(db.Names))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := encodingFile{
		Version:   encodingFileVersion,
		Encodings: db.Encodings,
		Names:     db.Names,
		Sources:   db.Sources,
		Model:     db.Model,
		Dim:       db.Dim,
		TrainedAt: db.TrainedAt,
	}

	return writeAtomic(s.path, func(f *os.File) error {
		if err := gob.NewEncoder(f).Encode(&payload); err != nil {
			return fmt.Errorf("encoding gob: %w", err)
		}
		return nil
	})
}

// Load reads the file, returning database.ErrNotTrained when it does not exist.
func (s *EncodingFile) Load(ctx context.Context) (*database.EncodingDatabase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path) //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, database.ErrNotTrained
		}
		return nil, fmt.Errorf("opening encodings file: %w", err)
	}
	defer f.Close()

	var payload encodingFile
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding encodings file %s: %w", s.path, err)
	}
	if payload.Version != encodingFileVersion {
		return nil, fmt.Errorf("unsupported encodings file version %d", payload.Version)
	}
	if len(payload.Encodings) != len(payload.Names) {
		return nil, fmt.Errorf("corrupt encodings file: %d encodings, %d names", len(payload.Encodings), len(payload.Names))
	}

	return &database.EncodingDatabase{
		Encodings: payload.Encodings,
		Names:     payload.Names,
		Sources:   payload.Sources,
		Model:     payload.Model,
		Dim:       payload.Dim,
		TrainedAt: payload.TrainedAt,
	}, nil
}

// Close is a no-op; the file is opened per call.
func (s *EncodingFile) Close() error {
	return nil
}

// writeAtomic writes through a temp file in the target directory and renames
// it over path, so readers never observe a partial file.
func writeAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
