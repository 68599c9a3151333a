package runtime

import (
	goruntime "runtime"
)

// HeapFunc reports the bytes of heap currently in use.
type HeapFunc func() uint64

// heapInUse reads HeapInuse from the Go runtime.
func heapInUse() uint64 {
	var ms goruntime.MemStats
	goruntime.ReadMemStats(&ms)
	return ms.HeapInuse
}

// memGuard decides whether an allocation of size bytes fits under limit.
// A zero limit disables the guard.
type memGuard struct {
	limit uint64
	heap  HeapFunc
}

// exceeds reports whether allocating size more bytes would cross the limit.
func (g memGuard) exceeds(size int) bool {
	if g.limit == 0 || g.heap == nil {
		return false
	}
	return g.heap()+uint64(size) > g.limit
}
