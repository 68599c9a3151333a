package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirSource replays JPEG files from a directory in lexical order, wrapping
// around at the end. It stands in for a camera on bench rigs.
type DirSource struct {
	dir string

	mu    sync.Mutex
	files []string
	next  int
}

// NewDirSource lists the *.jpg and *.jpeg files in dir.
// It fails when the directory holds no frames.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("camera dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("camera dir %s: no .jpg files", dir)
	}
	sort.Strings(files)

	return &DirSource{dir: dir, files: files}, nil
}

// Capture copies the next file into buf, truncating at len(buf).
func (s *DirSource) Capture(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return 0, &PeripheralError{Op: "open", Err: err}
	}
	defer func() { _ = f.Close() }()

	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return n, &PeripheralError{Op: "read", Err: err}
	}
	if n == 0 {
		return 0, ErrEmpty
	}
	return n, nil
}

// Close is a no-op.
func (s *DirSource) Close() error {
	return nil
}

var _ Source = (*DirSource)(nil)
