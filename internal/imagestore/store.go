// Package imagestore keeps captured face images on disk as
// <root>/<person>/<index>.jpg.
package imagestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrEmptyName is returned for person names that are blank after trimming.
	ErrEmptyName = errors.New("person name is empty")
	// ErrInvalidName is returned for names that cannot be a single directory.
	ErrInvalidName = errors.New("person name must not contain path separators")
)

// ValidateName checks that name can be used as a person directory. The name
// itself is used unchanged.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyName
	}
	if strings.ContainsAny(name, `/\`) || trimmed == "." || trimmed == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Store is a directory of per-person image folders.
type Store struct {
	root   string
	sorted bool
}

// Option configures a Store.
type Option func(*Store)

// Sorted makes People and Images return names in lexical order. Without it
// they follow the order the operating system lists the directory in.
func Sorted() Option {
	return func(s *Store) { s.sorted = true }
}

// New returns a store rooted at root. The directory is created lazily.
func New(root string, opts ...Option) *Store {
	s := &Store{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the dataset directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding name's images.
func (s *Store) Dir(name string) string {
	return filepath.Join(s.root, name)
}

// Ensure creates the person directory if needed and returns its path.
func (s *Store) Ensure(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dir := s.Dir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// ImagePath returns the path of image index for name.
func (s *Store) ImagePath(name string, index int) string {
	return filepath.Join(s.Dir(name), strconv.Itoa(index)+".jpg")
}

// Save writes a JPEG as <root>/<name>/<index>.jpg, overwriting any earlier
// image with the same index.
func (s *Store) Save(name string, index int, jpeg []byte) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("negative image index %d", index)
	}
	if _, err := s.Ensure(name); err != nil {
		return "", err
	}
	path := s.ImagePath(name, index)
	if err := os.WriteFile(path, jpeg, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// People lists person directories. A missing root means nobody is enrolled.
func (s *Store) People() ([]string, error) {
	entries, err := s.list(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var people []string
	for _, e := range entries {
		if e.IsDir() {
			people = append(people, e.Name())
		}
	}
	return people, nil
}

// Images lists the file paths in name's directory. Every regular file is
// returned; callers skip what they cannot decode.
func (s *Store) Images(name string) ([]string, error) {
	dir := s.Dir(name)
	entries, err := s.list(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// Read returns the contents of an image path returned by Images.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from Images
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// list reads a directory in OS order, or sorted when the store is Sorted.
// os.ReadDir always sorts, so the directory is read through the file handle.
func (s *Store) list(dir string) ([]os.DirEntry, error) {
	f, err := os.Open(dir) //nolint:gosec // dataset path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dir, err)
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	if s.sorted {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	}
	return entries, nil
}
