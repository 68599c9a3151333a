// Package lode stores captured frames through a Lode Store.
//
// Archiving is optional and strictly secondary to delivery: a failed
// archive write is logged and counted by the capture loop, and never
// changes buffer sizing or the dispatch of the frame.
//
// Frames land at Hive-partitioned paths:
//
//	frames/device=<id>/day=<YYYY-MM-DD>/<unix_ms>-<seq>.jpg
//
// with a msgpack metadata sidecar next to each frame (".meta").
package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"
	"github.com/vmihailenco/msgpack/v5"
)

// Frame is a captured JPEG with its capture context.
type Frame struct {
	// Seq is the loop iteration the frame was captured in.
	Seq uint64
	// CapturedAt is the capture wall-clock time.
	CapturedAt time.Time
	// Data is the raw JPEG. The archive copies what it needs before
	// returning; callers may reuse the slice afterwards.
	Data []byte
	// Capacity is the capture buffer capacity at capture time.
	Capacity int
	// Mode is the active transport mode.
	Mode string
}

// Archive stores frames.
type Archive interface {
	// PutFrame writes the frame and its metadata sidecar.
	PutFrame(ctx context.Context, frame Frame) error
}

// FrameMeta is the msgpack sidecar written next to each frame.
type FrameMeta struct {
	DeviceID   string    `msgpack:"device_id"`
	Seq        uint64    `msgpack:"seq"`
	CapturedAt time.Time `msgpack:"captured_at"`
	Bytes      int       `msgpack:"bytes"`
	Capacity   int       `msgpack:"capacity"`
	Mode       string    `msgpack:"mode"`
}

// Config configures the archive.
type Config struct {
	// DeviceID is the device partition key (required).
	DeviceID string
}

// LodeArchive is the Lode-backed Archive.
type LodeArchive struct {
	config       Config
	storeFactory lode.StoreFactory

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewFSArchive creates an archive rooted at a local directory.
func NewFSArchive(cfg Config, root string) (*LodeArchive, error) {
	if root == "" {
		return nil, errors.New("fs archive requires a path")
	}
	return NewArchiveWithFactory(cfg, lode.NewFSFactory(root))
}

// NewArchiveWithFactory creates an archive over a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewArchiveWithFactory(cfg Config, factory lode.StoreFactory) (*LodeArchive, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("archive requires a device id")
	}
	if factory == nil {
		return nil, errors.New("archive requires a store factory")
	}
	return &LodeArchive{config: cfg, storeFactory: factory}, nil
}

// PutFrame writes the frame, then its sidecar. The store is created
// lazily on first use so a missing mount only fails the writes, not startup.
func (a *LodeArchive) PutFrame(ctx context.Context, frame Frame) error {
	store, err := a.getOrCreateStore()
	if err != nil {
		return wrapError(err, "init", "")
	}

	base := a.buildFramePath(frame)

	if err := store.Put(ctx, base+".jpg", bytes.NewReader(frame.Data)); err != nil {
		return wrapError(err, "write", base+".jpg")
	}

	meta, err := msgpack.Marshal(&FrameMeta{
		DeviceID:   a.config.DeviceID,
		Seq:        frame.Seq,
		CapturedAt: frame.CapturedAt.UTC(),
		Bytes:      len(frame.Data),
		Capacity:   frame.Capacity,
		Mode:       frame.Mode,
	})
	if err != nil {
		return fmt.Errorf("encode frame meta: %w", err)
	}
	if err := store.Put(ctx, base+".meta", bytes.NewReader(meta)); err != nil {
		return wrapError(err, "write", base+".meta")
	}
	return nil
}

func (a *LodeArchive) getOrCreateStore() (lode.Store, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = a.storeFactory()
	})
	return a.store, a.storeErr
}

// buildFramePath computes the extension-less path for a frame.
func (a *LodeArchive) buildFramePath(frame Frame) string {
	at := frame.CapturedAt.UTC()
	return fmt.Sprintf("frames/device=%s/day=%s/%d-%06d",
		a.config.DeviceID,
		at.Format("2006-01-02"),
		at.UnixMilli(),
		frame.Seq,
	)
}

// DecodeMeta decodes a sidecar written by PutFrame.
func DecodeMeta(data []byte) (*FrameMeta, error) {
	var meta FrameMeta
	if err := msgpack.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode frame meta: %w", err)
	}
	return &meta, nil
}

var _ Archive = (*LodeArchive)(nil)
