package camera

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFrame(t *testing.T, dir, name string, size int, fill byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), bytes.Repeat([]byte{fill}, size), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirSource_RoundRobin(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "b.jpg", 300, 'b')
	writeFrame(t, dir, "a.JPEG", 200, 'a')
	writeFrame(t, dir, "notes.txt", 50, 'n')

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	buf := make([]byte, 1000)
	want := []struct {
		n    int
		fill byte
	}{{200, 'a'}, {300, 'b'}, {200, 'a'}}

	for i, w := range want {
		n, err := src.Capture(t.Context(), buf)
		if err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
		if n != w.n || buf[0] != w.fill {
			t.Errorf("capture %d = (%d, %q), want (%d, %q)", i, n, buf[0], w.n, w.fill)
		}
	}
}

func TestDirSource_Truncates(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "big.jpg", 5000, 'x')

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	n, err := src.Capture(t.Context(), make([]byte, 1000))
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if n != 1000 {
		t.Errorf("n = %d, want 1000", n)
	}
}

func TestDirSource_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "empty.jpg", 0, 0)

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := src.Capture(t.Context(), make([]byte, 10)); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestDirSource_RemovedFile(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "a.jpg", 200, 'a')

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "a.jpg")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err = src.Capture(t.Context(), make([]byte, 10))
	var perr *PeripheralError
	if !errors.As(err, &perr) || perr.Op != "open" {
		t.Errorf("expected open PeripheralError, got %v", err)
	}
}

func TestNewDirSource_NoFrames(t *testing.T) {
	if _, err := NewDirSource(t.TempDir()); err == nil {
		t.Error("expected error for directory without frames")
	}
	if _, err := NewDirSource(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestNew_Drivers(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "a.jpg", 200, 'a')

	if src, err := New(Config{Driver: DriverDir, Dir: dir}); err != nil {
		t.Errorf("dir driver: %v", err)
	} else if _, ok := src.(*DirSource); !ok {
		t.Errorf("dir driver returned %T", src)
	}

	if src, err := New(Config{}); err != nil {
		t.Errorf("default driver: %v", err)
	} else if _, ok := src.(*CommandSource); !ok {
		t.Errorf("default driver returned %T", src)
	}

	if _, err := New(Config{Driver: DriverDir}); err == nil {
		t.Error("expected error for dir driver without dir")
	}
	if _, err := New(Config{Driver: "v4l2"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
