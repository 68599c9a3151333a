// Package runtime drives the capture loop: size a buffer, capture into it,
// validate, encode, dispatch, feed the capture outcome back to the sizing
// policy, pace, repeat.
package runtime

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/snapfeed/adapter"
	"github.com/justapithecus/snapfeed/camera"
	"github.com/justapithecus/snapfeed/lode"
	"github.com/justapithecus/snapfeed/log"
	"github.com/justapithecus/snapfeed/metrics"
	"github.com/justapithecus/snapfeed/policy"
	"github.com/justapithecus/snapfeed/types"
)

// DefaultInterval is the pause between iterations.
const DefaultInterval = 3 * time.Second

// SleepFunc pauses for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures a capture loop.
type Config struct {
	// Sizer owns the capture buffer size (required).
	Sizer *policy.Manager
	// Source produces frames (required).
	Source camera.Source
	// Adapter delivers encoded frames (required). Its session is already
	// established; reconnection is the adapter's concern.
	Adapter adapter.Adapter
	// Archive stores raw frames. If nil, frames are not archived.
	Archive lode.Archive
	// Mode is the active transport mode, used for logs and archive metadata.
	Mode types.TransportMode
	// Interval is the pause after every iteration (default: DefaultInterval).
	Interval time.Duration
	// MemoryLimit is the heap budget in bytes. When heap in use plus the
	// next buffer would exceed it, the iteration is classified as
	// out_of_memory without allocating. Zero disables the check.
	MemoryLimit uint64
	// Logger receives one status line per iteration. If nil, logs are discarded.
	Logger *log.Logger
	// Collector records loop metrics. If nil, no metrics are recorded.
	Collector *metrics.Collector

	// Sleep overrides pacing (for testing).
	Sleep SleepFunc
	// Now overrides the clock (for testing).
	Now func() time.Time
	// Heap overrides the heap reading used by MemoryLimit (for testing).
	Heap HeapFunc
}

// Loop is the capture loop. It runs on a single goroutine; iterations are
// strictly sequential.
type Loop struct {
	config   Config
	logger   *log.Logger
	guard    memGuard
	interval time.Duration
	sleep    SleepFunc
	now      func() time.Time
	seq      uint64
}

// New validates the configuration and creates a loop.
func New(config Config) (*Loop, error) {
	if config.Sizer == nil {
		return nil, errors.New("capture loop requires a sizing policy")
	}
	if config.Source == nil {
		return nil, errors.New("capture loop requires a frame source")
	}
	if config.Adapter == nil {
		return nil, errors.New("capture loop requires a delivery adapter")
	}
	if config.Interval < 0 {
		return nil, fmt.Errorf("interval must not be negative, got %s", config.Interval)
	}

	l := &Loop{
		config:   config,
		logger:   config.Logger,
		interval: config.Interval,
		sleep:    config.Sleep,
		now:      config.Now,
		guard:    memGuard{limit: config.MemoryLimit, heap: config.Heap},
	}
	if l.logger == nil {
		l.logger = log.NewNop()
	}
	if l.interval == 0 {
		l.interval = DefaultInterval
	}
	if l.sleep == nil {
		l.sleep = sleepContext
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.guard.heap == nil {
		l.guard.heap = heapInUse
	}
	return l, nil
}

// Run executes iterations until ctx is canceled. Cancellation is the only
// way out; every per-iteration failure is logged and the loop continues.
// Returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("capture loop started", map[string]any{
		"interval":    l.interval.String(),
		"buffer_size": l.config.Sizer.Size(),
	})

	for ctx.Err() == nil {
		l.Step(ctx)
		if err := l.sleep(ctx, l.interval); err != nil {
			break
		}
	}

	l.config.Sizer.Release()
	l.logger.Info("capture loop stopped", map[string]any{
		"iterations":  l.seq,
		"buffer_size": l.config.Sizer.Size(),
	})
	return nil
}

// Step executes one iteration and returns its report. A panic in the source
// counts as a failed capture; a panic in the archive or adapter counts as an
// archive or transport failure, and sizing still sees the capture outcome.
func (l *Loop) Step(ctx context.Context) (report *Report) {
	l.seq++
	report = &Report{Seq: l.seq, StartedAt: l.now()}
	l.config.Collector.IncIteration()

	defer func() {
		if r := recover(); r != nil {
			l.config.Collector.IncIterationPanic()
			report.Outcome = types.CaptureFailed
			report.Err = fmt.Errorf("iteration panic: %v", r)
			report.Adjustment = policy.Adjustment{
				Previous: l.config.Sizer.Size(),
				Next:     l.config.Sizer.Size(),
				Action:   policy.ActionHold,
			}
		}
		l.logStatus(report)
	}()

	l.iterate(ctx, report)
	return report
}

func (l *Loop) iterate(ctx context.Context, report *Report) {
	size := l.config.Sizer.Size()

	if l.guard.exceeds(size) {
		report.Capacity = size
		report.Outcome = types.CaptureOutOfMemory
		report.Err = fmt.Errorf("heap budget %d bytes exceeded by %d byte buffer", l.guard.limit, size)
		l.config.Collector.IncCaptureOOM()
		l.adjust(report)
		return
	}

	buf := l.config.Sizer.Allocate()
	report.Capacity = buf.Cap()

	n, err := l.capture(ctx, buf.Space())
	buf.SetLen(n)
	report.Bytes = buf.Len()
	report.Outcome = ClassifyCapture(buf.Len(), err)
	report.Err = err
	report.Interrupted = report.Outcome == types.CaptureFailed && ctx.Err() != nil

	switch report.Outcome {
	case types.CaptureOK:
		l.config.Collector.RecordCapture(buf.Len())
		l.archive(ctx, report, buf.Bytes())
		l.deliver(ctx, report, buf.Bytes())
	case types.CaptureEmpty:
		l.config.Collector.IncCaptureEmpty()
	case types.CaptureOutOfMemory:
		l.config.Collector.IncCaptureOOM()
	case types.CaptureFailed:
		if !report.Interrupted {
			l.config.Collector.IncCaptureFailed()
		}
	}

	l.adjust(report)
}

// capture runs the source, turning a panic into a capture error.
func (l *Loop) capture(ctx context.Context, buf []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.config.Collector.IncIterationPanic()
			n, err = 0, fmt.Errorf("capture panic: %v", r)
		}
	}()
	n, err = l.config.Source.Capture(ctx, buf)
	return min(max(n, 0), len(buf)), err
}

// adjust feeds this iteration's capture outcome to the sizing policy.
// Delivery results never reach it.
func (l *Loop) adjust(report *Report) {
	report.Adjustment = l.config.Sizer.OnCaptureResult(policy.Result{
		Outcome:      report.Outcome,
		BytesWritten: report.Bytes,
		Capacity:     report.Capacity,
	})
	switch {
	case report.Adjustment.Next > report.Adjustment.Previous:
		l.config.Collector.IncBufferGrow()
	case report.Adjustment.Next < report.Adjustment.Previous:
		l.config.Collector.IncBufferShrink()
	}
}

func (l *Loop) archive(ctx context.Context, report *Report, data []byte) {
	if l.config.Archive == nil {
		return
	}
	err := l.putFrame(ctx, lode.Frame{
		Seq:        report.Seq,
		CapturedAt: report.StartedAt,
		Data:       data,
		Capacity:   report.Capacity,
		Mode:       l.config.Mode.String(),
	})
	if err != nil {
		l.config.Collector.IncArchiveWriteFailure()
		report.ArchiveErr = err
		return
	}
	l.config.Collector.IncArchiveWriteSuccess()
	report.Archived = true
}

func (l *Loop) putFrame(ctx context.Context, frame lode.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.config.Collector.IncIterationPanic()
			err = fmt.Errorf("archive panic: %v", r)
		}
	}()
	return l.config.Archive.PutFrame(ctx, frame)
}

func (l *Loop) deliver(ctx context.Context, report *Report, data []byte) {
	frame := Encode(report.Seq, report.StartedAt, data)

	if err := l.send(ctx, frame.Payload); err != nil {
		l.config.Collector.IncTransportFailure()
		report.Delivery = types.DeliveryOutcome{
			Status: types.DeliveryTransportFailed,
			Reason: err.Error(),
		}
		return
	}
	l.config.Collector.RecordDelivered(len(frame.Payload))
	report.Delivery = types.DeliveryOutcome{Status: types.DeliveryDelivered}
	report.PayloadBytes = len(frame.Payload)
}

// send dispatches through the adapter, turning a panic into a transport error.
func (l *Loop) send(ctx context.Context, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.config.Collector.IncIterationPanic()
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return l.config.Adapter.Send(ctx, payload)
}

// Encode base64-encodes a captured frame (standard alphabet, padded,
// no trailing newline).
func Encode(seq uint64, capturedAt time.Time, data []byte) types.EncodedFrame {
	payload := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(payload, data)
	return types.EncodedFrame{
		Seq:        seq,
		CapturedAt: capturedAt,
		RawLen:     len(data),
		Payload:    payload,
	}
}

// logStatus writes the single status line for an iteration.
func (l *Loop) logStatus(r *Report) {
	fields := r.Fields()

	switch r.Outcome {
	case types.CaptureOK:
		if r.ArchiveErr != nil {
			l.logger.Warn("frame archive failed", map[string]any{
				"seq":   r.Seq,
				"error": r.ArchiveErr.Error(),
			})
		}
		if r.Delivery.Delivered() {
			l.logger.Info("frame delivered", fields)
		} else {
			l.logger.Warn("frame delivery failed", fields)
		}
	case types.CaptureEmpty:
		l.logger.Info("empty capture, skipping", fields)
	case types.CaptureOutOfMemory:
		l.logger.Warn("out of memory, buffer resized", fields)
	default:
		if r.Interrupted {
			l.logger.Info("capture interrupted by shutdown", fields)
			return
		}
		l.logger.Error("capture failed", fields)
	}
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
