package policy

// Buffer is a capture buffer of fixed capacity.
// It is exclusively held by one iteration of the capture loop at a time.
type Buffer struct {
	data []byte
	n    int
}

func newBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of bytes written by the last capture.
func (b *Buffer) Len() int {
	return b.n
}

// Space returns the full writable region for a frame source.
func (b *Buffer) Space() []byte {
	return b.data
}

// SetLen records the captured length, clamped to [0, Cap].
func (b *Buffer) SetLen(n int) {
	b.n = max(0, min(n, len(b.data)))
}

// Bytes returns the captured region. It aliases the buffer and is only
// valid until the next Allocate.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Reset clears the recorded length. Contents are left in place.
func (b *Buffer) Reset() {
	b.n = 0
}
