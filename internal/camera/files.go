package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Files replays JPEG files as a video device, one file per Read. Read fails
// once the files are exhausted or a file cannot be read, which the
// recognition loop treats as end of stream.
type Files struct {
	paths []string
	next  int
	seq   int
}

// NewFiles returns a device replaying paths in order.
func NewFiles(paths []string) *Files {
	return &Files{paths: paths}
}

// FilesFromDir replays every .jpg/.jpeg file in dir in lexical order.
func FilesFromDir(dir string) (*Files, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".jpg" && ext != ".jpeg") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no JPEG files in %s", ErrNoDevice, dir)
	}
	return NewFiles(paths), nil
}

// DirSource opens a fresh Files device over dir on every Open.
func DirSource(dir string) Source {
	return SourceFunc(func() (Device, error) {
		return FilesFromDir(dir)
	})
}

// Read returns the next file as a frame.
func (f *Files) Read() (*Frame, bool) {
	if f.next >= len(f.paths) {
		return nil, false
	}
	path := f.paths[f.next]
	f.next++

	data, err := os.ReadFile(path) //nolint:gosec // replay paths are operator supplied
	if err != nil {
		return nil, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	f.seq++
	return &Frame{Seq: f.seq, JPEG: data, Width: cfg.Width, Height: cfg.Height}, true
}

// Exhausted reports whether every file has been read.
func (f *Files) Exhausted() bool {
	return f.next >= len(f.paths)
}

// Close does nothing; files are read per frame.
func (f *Files) Close() error {
	return nil
}
