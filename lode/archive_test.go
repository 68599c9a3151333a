package lode

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"
)

// failingStore is a lode.Store whose Put returns a configured error.
type failingStore struct {
	putErr   error
	putCalls int
	putPaths []string
}

func (s *failingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.putCalls++
	s.putPaths = append(s.putPaths, path)
	return s.putErr
}

func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *failingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *failingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func testFrame() Frame {
	return Frame{
		Seq:        7,
		CapturedAt: time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC),
		Data:       []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02},
		Capacity:   15000,
		Mode:       "MQTT",
	}
}

func readAll(t *testing.T, store lode.Store, path string) []byte {
	t.Helper()
	rc, err := store.Get(t.Context(), path)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll(%s) failed: %v", path, err)
	}
	return data
}

func TestLodeArchive_PutFrame(t *testing.T) {
	store := lode.NewMemory()
	archive, err := NewArchiveWithFactory(Config{DeviceID: "cam-1"}, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchiveWithFactory failed: %v", err)
	}

	frame := testFrame()
	if err := archive.PutFrame(t.Context(), frame); err != nil {
		t.Fatalf("PutFrame failed: %v", err)
	}

	base := "frames/device=cam-1/day=2026-10-19/1792398600000-000007"

	data := readAll(t, store, base+".jpg")
	if string(data) != string(frame.Data) {
		t.Errorf("frame bytes = %x, want %x", data, frame.Data)
	}

	meta, err := DecodeMeta(readAll(t, store, base+".meta"))
	if err != nil {
		t.Fatalf("DecodeMeta failed: %v", err)
	}
	if meta.DeviceID != "cam-1" {
		t.Errorf("DeviceID = %q, want cam-1", meta.DeviceID)
	}
	if meta.Seq != 7 {
		t.Errorf("Seq = %d, want 7", meta.Seq)
	}
	if meta.Bytes != len(frame.Data) {
		t.Errorf("Bytes = %d, want %d", meta.Bytes, len(frame.Data))
	}
	if meta.Capacity != 15000 {
		t.Errorf("Capacity = %d, want 15000", meta.Capacity)
	}
	if meta.Mode != "MQTT" {
		t.Errorf("Mode = %q, want MQTT", meta.Mode)
	}
	if !meta.CapturedAt.Equal(frame.CapturedAt) {
		t.Errorf("CapturedAt = %v, want %v", meta.CapturedAt, frame.CapturedAt)
	}
}

func TestLodeArchive_DayPartitionUsesUTC(t *testing.T) {
	store := &failingStore{}
	archive, err := NewArchiveWithFactory(Config{DeviceID: "cam-1"}, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchiveWithFactory failed: %v", err)
	}

	frame := testFrame()
	// 23:30 in UTC-5 is 04:30 the next day in UTC.
	frame.CapturedAt = time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

	if err := archive.PutFrame(t.Context(), frame); err != nil {
		t.Fatalf("PutFrame failed: %v", err)
	}
	if len(store.putPaths) != 2 {
		t.Fatalf("expected 2 puts, got %d", len(store.putPaths))
	}
	want := "frames/device=cam-1/day=2026-10-20/"
	if got := filepath.Dir(store.putPaths[0]) + "/"; got != want {
		t.Errorf("partition = %q, want %q", got, want)
	}
}

func TestLodeArchive_WriteFailure_DiskFull(t *testing.T) {
	store := &failingStore{
		putErr: errors.New("write /mnt/sd/frames: no space left on device"),
	}
	archive, err := NewArchiveWithFactory(Config{DeviceID: "cam-1"}, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchiveWithFactory failed: %v", err)
	}

	err = archive.PutFrame(t.Context(), testFrame())
	if err == nil {
		t.Fatal("expected disk full error, got nil")
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("expected errors.Is(err, ErrDiskFull), got: %v", err)
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if storageErr.Op != "write" {
		t.Errorf("Op = %q, want write", storageErr.Op)
	}

	// Sidecar is not written after a failed frame write.
	if store.putCalls != 1 {
		t.Errorf("expected 1 put call, got %d", store.putCalls)
	}
}

func TestLodeArchive_InitFailure(t *testing.T) {
	factory := func() (lode.Store, error) {
		return nil, errors.New("open /mnt/sd: permission denied")
	}
	archive, err := NewArchiveWithFactory(Config{DeviceID: "cam-1"}, factory)
	if err != nil {
		t.Fatalf("NewArchiveWithFactory failed: %v", err)
	}

	err = archive.PutFrame(t.Context(), testFrame())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got: %v", err)
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != "init" {
		t.Errorf("expected init StorageError, got %v", err)
	}
}

func TestLodeArchive_FactoryCalledOnce(t *testing.T) {
	calls := 0
	store := lode.NewMemory()
	factory := func() (lode.Store, error) {
		calls++
		return store, nil
	}
	archive, err := NewArchiveWithFactory(Config{DeviceID: "cam-1"}, factory)
	if err != nil {
		t.Fatalf("NewArchiveWithFactory failed: %v", err)
	}

	for i := range 3 {
		frame := testFrame()
		frame.Seq = uint64(i)
		if err := archive.PutFrame(t.Context(), frame); err != nil {
			t.Fatalf("PutFrame %d failed: %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}

func TestFSArchive_WritesFiles(t *testing.T) {
	root := t.TempDir()
	archive, err := NewFSArchive(Config{DeviceID: "cam-1"}, root)
	if err != nil {
		t.Fatalf("NewFSArchive failed: %v", err)
	}

	frame := testFrame()
	if err := archive.PutFrame(t.Context(), frame); err != nil {
		t.Fatalf("PutFrame failed: %v", err)
	}

	path := filepath.Join(root, "frames", "device=cam-1", "day=2026-10-19", "1792398600000-000007.jpg")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected frame on disk: %v", err)
	}
	if string(data) != string(frame.Data) {
		t.Errorf("frame bytes = %x, want %x", data, frame.Data)
	}
}

func TestNewArchive_Validation(t *testing.T) {
	if _, err := NewArchiveWithFactory(Config{}, lode.NewMemoryFactory()); err == nil {
		t.Error("expected error for empty device id")
	}
	if _, err := NewArchiveWithFactory(Config{DeviceID: "cam-1"}, nil); err == nil {
		t.Error("expected error for nil factory")
	}
	if _, err := NewFSArchive(Config{DeviceID: "cam-1"}, ""); err == nil {
		t.Error("expected error for empty root")
	}
}

func TestS3Config_Validate(t *testing.T) {
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing bucket")
	}
	cfg.Bucket = "frames"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, bucket, prefix string
	}{
		{"frames", "frames", ""},
		{"frames/garage", "frames", "garage"},
		{"frames/garage/cam", "frames", "garage/cam"},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.path)
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tt.path, bucket, prefix, tt.bucket, tt.prefix)
		}
	}
}
