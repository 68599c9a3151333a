package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/justapithecus/snapfeed/metrics"
	"github.com/justapithecus/snapfeed/policy"
	"github.com/justapithecus/snapfeed/types"
)

// Report describes one loop iteration.
type Report struct {
	// Seq is the 1-based iteration number.
	Seq uint64
	// StartedAt is when the iteration began; also the frame capture time.
	StartedAt time.Time
	// Outcome classifies the capture.
	Outcome types.CaptureOutcome
	// Bytes is the captured length.
	Bytes int
	// Capacity is the buffer capacity the capture ran against.
	Capacity int
	// Err is the capture error, if any.
	Err error
	// Interrupted is set when the capture failed because ctx was canceled.
	Interrupted bool
	// Delivery is the dispatch result. Status is DeliveryNone unless a
	// frame was captured.
	Delivery types.DeliveryOutcome
	// PayloadBytes is the encoded size of a delivered frame.
	PayloadBytes int
	// Archived reports whether the raw frame was archived.
	Archived bool
	// ArchiveErr is the archive write error, if any.
	ArchiveErr error
	// Adjustment is the sizing update made after this iteration.
	Adjustment policy.Adjustment
}

// Fields returns the report as structured log fields.
func (r *Report) Fields() map[string]any {
	fields := map[string]any{
		"seq":         r.Seq,
		"outcome":     string(r.Outcome),
		"bytes":       r.Bytes,
		"capacity":    r.Capacity,
		"buffer_size": r.Adjustment.Next,
		"sizing":      string(r.Adjustment.Action),
	}
	if r.Err != nil {
		fields["error"] = r.Err.Error()
	}
	if r.Interrupted {
		fields["interrupted"] = true
	}
	if r.Delivery.Status != types.DeliveryNone {
		fields["delivery"] = string(r.Delivery.Status)
		if r.Delivery.Reason != "" {
			fields["delivery_error"] = r.Delivery.Reason
		}
	}
	if r.PayloadBytes > 0 {
		fields["payload_bytes"] = r.PayloadBytes
	}
	return fields
}

// SessionReport is the structured JSON summary written at shutdown by --report.
type SessionReport struct {
	DeviceID   string            `json:"device_id"`
	Mode       string            `json:"mode"`
	Adapter    string            `json:"adapter"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMs int64             `json:"duration_ms"`
	BufferSize int               `json:"buffer_size"`
	Sizing     policy.Config     `json:"sizing"`
	Metrics    *metrics.Snapshot `json:"metrics"`
}

// BuildSessionReport composes a SessionReport from a metrics snapshot and
// the final sizing state.
func BuildSessionReport(snap metrics.Snapshot, sizer *policy.Manager, startedAt time.Time, duration time.Duration) *SessionReport {
	report := &SessionReport{
		DeviceID:   snap.DeviceID,
		Mode:       snap.Mode,
		Adapter:    snap.Adapter,
		StartedAt:  startedAt.UTC(),
		DurationMs: duration.Milliseconds(),
		Metrics:    &snap,
	}
	if sizer != nil {
		report.BufferSize = sizer.Size()
		report.Sizing = sizer.Config()
	}
	return report
}

// WriteSessionReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteSessionReport(report *SessionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeSessionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeSessionReportTo writes report JSON to any writer (for testing).
func writeSessionReportTo(report *SessionReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *SessionReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
