package runtime

import (
	"errors"

	"github.com/justapithecus/snapfeed/camera"
	"github.com/justapithecus/snapfeed/types"
)

// ClassifyCapture maps a frame source result to a capture outcome.
//
// Classification order:
//  1. camera.ErrOutOfMemory anywhere in the chain: out_of_memory
//  2. camera.ErrEmpty: empty
//  3. any other error: failed
//  4. n <= camera.MinFrameBytes: empty, whatever the source reported
//  5. otherwise: captured
func ClassifyCapture(n int, err error) types.CaptureOutcome {
	switch {
	case errors.Is(err, camera.ErrOutOfMemory):
		return types.CaptureOutOfMemory
	case errors.Is(err, camera.ErrEmpty):
		return types.CaptureEmpty
	case err != nil:
		return types.CaptureFailed
	case n <= camera.MinFrameBytes:
		return types.CaptureEmpty
	default:
		return types.CaptureOK
	}
}
