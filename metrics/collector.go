// Package metrics provides counters for the capture agent.
//
// The Collector is a leaf package with no internal dependencies. The capture
// loop is its only writer; the status endpoint and the shutdown summary read
// it through Snapshot.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
type Snapshot struct {
	// Iterations
	Iterations int64 `json:"iterations"`

	// Capture
	FramesCaptured  int64 `json:"frames_captured"`
	CapturesEmpty   int64 `json:"captures_empty"`
	CapturesOOM     int64 `json:"captures_out_of_memory"`
	CapturesFailed  int64 `json:"captures_failed"`
	BytesCaptured   int64 `json:"bytes_captured"`
	LastFrameBytes  int64 `json:"last_frame_bytes"`
	IterationPanics int64 `json:"iteration_panics"`

	// Sizing
	BufferGrows   int64 `json:"buffer_grows"`
	BufferShrinks int64 `json:"buffer_shrinks"`

	// Delivery
	Delivered         int64 `json:"delivered"`
	TransportFailures int64 `json:"transport_failures"`
	BytesDelivered    int64 `json:"bytes_delivered"`

	// Archive
	ArchiveWriteSuccess int64 `json:"archive_write_success"`
	ArchiveWriteFailure int64 `json:"archive_write_failure"`

	// Dimensions (informational, set at construction)
	DeviceID string `json:"device_id"`
	Mode     string `json:"mode"`
	Adapter  string `json:"adapter"`
}

// Collector accumulates counters for the life of the process.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(deviceID, mode, adapter string) *Collector {
	return &Collector{s: Snapshot{
		DeviceID: deviceID,
		Mode:     mode,
		Adapter:  adapter,
	}}
}

func (c *Collector) update(fn func(s *Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	fn(&c.s)
	c.mu.Unlock()
}

// IncIteration records one completed loop iteration.
func (c *Collector) IncIteration() {
	c.update(func(s *Snapshot) { s.Iterations++ })
}

// --- Capture ---

// RecordCapture records a valid frame of n bytes.
func (c *Collector) RecordCapture(n int) {
	c.update(func(s *Snapshot) {
		s.FramesCaptured++
		s.BytesCaptured += int64(n)
		s.LastFrameBytes = int64(n)
	})
}

// IncCaptureEmpty records a capture at or below the minimum frame size.
func (c *Collector) IncCaptureEmpty() {
	c.update(func(s *Snapshot) { s.CapturesEmpty++ })
}

// IncCaptureOOM records an out-of-memory capture.
func (c *Collector) IncCaptureOOM() {
	c.update(func(s *Snapshot) { s.CapturesOOM++ })
}

// IncCaptureFailed records any other capture failure.
func (c *Collector) IncCaptureFailed() {
	c.update(func(s *Snapshot) { s.CapturesFailed++ })
}

// IncIterationPanic records a panic recovered at the iteration boundary.
func (c *Collector) IncIterationPanic() {
	c.update(func(s *Snapshot) { s.IterationPanics++ })
}

// --- Sizing ---

// IncBufferGrow records a buffer size increase.
func (c *Collector) IncBufferGrow() {
	c.update(func(s *Snapshot) { s.BufferGrows++ })
}

// IncBufferShrink records a buffer size decrease.
func (c *Collector) IncBufferShrink() {
	c.update(func(s *Snapshot) { s.BufferShrinks++ })
}

// --- Delivery ---

// RecordDelivered records an accepted payload of n encoded bytes.
func (c *Collector) RecordDelivered(n int) {
	c.update(func(s *Snapshot) {
		s.Delivered++
		s.BytesDelivered += int64(n)
	})
}

// IncTransportFailure records a failed dispatch.
func (c *Collector) IncTransportFailure() {
	c.update(func(s *Snapshot) { s.TransportFailures++ })
}

// --- Archive ---

// IncArchiveWriteSuccess records a stored frame.
func (c *Collector) IncArchiveWriteSuccess() {
	c.update(func(s *Snapshot) { s.ArchiveWriteSuccess++ })
}

// IncArchiveWriteFailure records a failed archive write.
func (c *Collector) IncArchiveWriteFailure() {
	c.update(func(s *Snapshot) { s.ArchiveWriteFailure++ })
}

// --- Snapshot ---

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
