package csvimport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source is an import artifact that can be read once and then discarded.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
	// Remove deletes the artifact. It is called only after a successful import.
	Remove(ctx context.Context) error
}

// FileSource is a CSV file inside Dir.
type FileSource struct {
	Dir      string
	Filename string
}

var _ Source = FileSource{}

func NewFileSource(dir, filename string) FileSource {
	return FileSource{Dir: dir, Filename: filename}
}

func (s FileSource) Name() string {
	return s.Filename
}

// Path resolves the file location, refusing names that escape Dir.
func (s FileSource) Path() (string, error) {
	if s.Filename == "" {
		return "", fmt.Errorf("empty import filename")
	}
	dir, err := filepath.Abs(s.Dir)
	if err != nil {
		return "", fmt.Errorf("resolve import directory: %w", err)
	}
	path := filepath.Join(dir, s.Filename)
	if path != dir && !strings.HasPrefix(path, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("import filename %q escapes %s", s.Filename, s.Dir)
	}
	return path, nil
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	path, err := s.Path()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	return f, nil
}

func (s FileSource) Remove(ctx context.Context) error {
	path, err := s.Path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove import file: %w", err)
	}
	return nil
}
