package types

import "time"

// CaptureOutcome classifies a single capture attempt.
type CaptureOutcome string

const (
	// CaptureOK is a capture that produced a usable frame.
	CaptureOK CaptureOutcome = "captured"
	// CaptureEmpty is a capture that produced no usable bytes (<= MinFrameBytes).
	CaptureEmpty CaptureOutcome = "empty"
	// CaptureOutOfMemory is a capture or allocation that failed for lack of memory.
	CaptureOutOfMemory CaptureOutcome = "out_of_memory"
	// CaptureFailed is any other capture failure.
	CaptureFailed CaptureOutcome = "failed"
)

// DeliveryStatus is the tag of a DeliveryOutcome.
type DeliveryStatus string

const (
	// DeliveryNone means no dispatch was attempted this iteration.
	DeliveryNone DeliveryStatus = ""
	// DeliveryDelivered means the sink accepted the payload.
	DeliveryDelivered DeliveryStatus = "delivered"
	// DeliveryTransportFailed means the sink returned an error.
	DeliveryTransportFailed DeliveryStatus = "transport_failed"
)

// DeliveryOutcome is the result of a dispatch attempt.
// It is reported for logging only and never feeds the sizing policy.
type DeliveryOutcome struct {
	Status DeliveryStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

// Delivered reports whether the payload was accepted.
func (o DeliveryOutcome) Delivered() bool {
	return o.Status == DeliveryDelivered
}

// EncodedFrame is a captured frame in its transport-safe form.
// It is consumed exactly once by the delivery sink and never persisted
// in this form.
type EncodedFrame struct {
	// Seq is the iteration sequence number the frame was captured in.
	Seq uint64
	// CapturedAt is the wall-clock time of the capture.
	CapturedAt time.Time
	// RawLen is the length of the JPEG bytes before encoding.
	RawLen int
	// Payload is the base64 text sent to the sink.
	Payload []byte
}
