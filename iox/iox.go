// Package iox holds the close and drain helpers shared by the adapters.
package iox

import "io"

// drainLimit bounds how much of an unread response body DrainClose
// consumes before giving up on connection reuse.
const drainLimit = 64 << 10

// DiscardClose closes c and ignores the error, for defers where a close
// failure changes nothing (camera pipes, idle HTTP connections).
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc adapts c for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(adapter))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DrainClose reads what is left of an HTTP response body, up to 64 KiB,
// then closes it, so the upload adapter's keep-alive connection can be
// reused for the next frame.
func DrainClose(rc io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, rc, drainLimit)
	_ = rc.Close()
}
