// Package camera defines the frame source consumed by the capture loop and
// the drivers that satisfy it.
//
// A Source fills a caller-provided buffer with one encoded JPEG frame.
// Camera bring-up (sensor configuration, pixel format, resolution) belongs
// to the driver or the external capture tool, never to the loop.
package camera

import (
	"context"
	"errors"
	"fmt"
)

// MinFrameBytes is the largest capture length still treated as empty.
// Anything at or below it is a partial or corrupt frame.
const MinFrameBytes = 100

// Source produces encoded image data into a caller-supplied buffer.
type Source interface {
	// Capture writes at most len(buf) bytes of one frame into buf and
	// returns the number of bytes written. A frame that does not fit is
	// truncated at len(buf); the loop treats a full buffer as a signal to
	// grow. Implementations must not retain buf after returning.
	Capture(ctx context.Context, buf []byte) (int, error)

	// Close releases driver resources.
	Close() error
}

// ErrEmpty is returned when the driver produced no frame data.
var ErrEmpty = errors.New("camera: empty capture")

// ErrOutOfMemory is returned when the capture could not run for lack of
// memory. The loop shrinks the capture buffer in response.
var ErrOutOfMemory = errors.New("camera: out of memory")

// PeripheralError is an opaque driver failure.
type PeripheralError struct {
	// Op is the driver operation that failed, e.g. "start" or "read".
	Op  string
	Err error
}

func (e *PeripheralError) Error() string {
	return fmt.Sprintf("camera %s: %v", e.Op, e.Err)
}

func (e *PeripheralError) Unwrap() error {
	return e.Err
}
