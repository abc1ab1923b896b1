// Package modelstore finds .gguf files in a models directory.
package modelstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const Ext = ".gguf"

var (
	ErrNotFound    = errors.New("model not found")
	ErrInvalidName = errors.New("invalid model name")
)

type Entry struct {
	// Name is the file name without the .gguf extension.
	Name    string    `json:"name"`
	Path    string    `json:"-"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
}

// Store is a flat directory of models. Subdirectories are ignored.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("models directory is empty")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}
	return &Store{dir: filepath.Clean(dir)}, nil
}

func (s *Store) Dir() string { return s.dir }

// List returns every .gguf file in the directory, sorted by name.
func (s *Store) List() ([]Entry, error) {
	ents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || !hasExt(e.Name()) {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// removed between ReadDir and Info
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{
			Name:    trimExt(e.Name()),
			Path:    filepath.Join(s.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Resolve maps a model name, with or without extension, to a path inside
// the store. Names that would escape the directory are rejected.
func (s *Store) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	candidates := []string{name}
	if !hasExt(name) {
		candidates = []string{name + Ext, name + strings.ToUpper(Ext)}
	}
	for _, c := range candidates {
		p := filepath.Join(s.dir, c)
		st, err := os.Stat(p)
		if err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func hasExt(name string) bool {
	return strings.EqualFold(filepath.Ext(name), Ext)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
