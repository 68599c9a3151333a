// Package policy implements the capture buffer sizing policy.
//
// The policy is an additive-increase / subtractive-decrease controller over
// the capture buffer capacity. It grows conservatively when a capture comes
// close to filling the buffer and shrinks aggressively when a capture fails
// for lack of memory. The capacity is always clamped to [MinSize, MaxSize].
//
// The policy reacts only to capture-side signals. Delivery results never
// reach it.
package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/justapithecus/snapfeed/types"
)

// Config configures the sizing policy. All sizes are in bytes.
type Config struct {
	// MinSize is the smallest capacity the buffer may shrink to.
	MinSize int `yaml:"min_size" json:"min_size"`
	// MaxSize is the largest capacity the buffer may grow to.
	MaxSize int `yaml:"max_size" json:"max_size"`
	// InitialSize is the capacity used for the first capture.
	InitialSize int `yaml:"initial_size" json:"initial_size"`
	// GrowStep is added after a near-full capture.
	GrowStep int `yaml:"grow_step" json:"grow_step"`
	// ShrinkStep is subtracted after an out-of-memory capture.
	ShrinkStep int `yaml:"shrink_step" json:"shrink_step"`
	// NearFullMargin is how close to capacity a capture must come to count
	// as near-full.
	NearFullMargin int `yaml:"near_full_margin" json:"near_full_margin"`
}

// DefaultConfig returns the policy tuned for a VGA JPEG on a small heap.
func DefaultConfig() Config {
	return Config{
		MinSize:        10_000,
		MaxSize:        25_000,
		InitialSize:    15_000,
		GrowStep:       2_000,
		ShrinkStep:     5_000,
		NearFullMargin: 1_000,
	}
}

// ErrInvalidConfig is returned when Config fails validation.
var ErrInvalidConfig = errors.New("invalid sizing config")

// Validate checks the range and step invariants.
func (c Config) Validate() error {
	switch {
	case c.MinSize <= 0:
		return fmt.Errorf("%w: min_size must be > 0, got %d", ErrInvalidConfig, c.MinSize)
	case c.MaxSize < c.MinSize:
		return fmt.Errorf("%w: max_size %d < min_size %d", ErrInvalidConfig, c.MaxSize, c.MinSize)
	case c.InitialSize < c.MinSize || c.InitialSize > c.MaxSize:
		return fmt.Errorf("%w: initial_size %d outside [%d, %d]", ErrInvalidConfig, c.InitialSize, c.MinSize, c.MaxSize)
	case c.GrowStep < 0:
		return fmt.Errorf("%w: grow_step must be >= 0, got %d", ErrInvalidConfig, c.GrowStep)
	case c.ShrinkStep < 0:
		return fmt.Errorf("%w: shrink_step must be >= 0, got %d", ErrInvalidConfig, c.ShrinkStep)
	case c.NearFullMargin < 0:
		return fmt.Errorf("%w: near_full_margin must be >= 0, got %d", ErrInvalidConfig, c.NearFullMargin)
	}
	return nil
}

// Result is the capture outcome reported back to the policy.
type Result struct {
	// Outcome classifies the capture.
	Outcome types.CaptureOutcome
	// BytesWritten is the captured length. Only meaningful for CaptureOK.
	BytesWritten int
	// Capacity is the capacity of the buffer the capture ran against.
	Capacity int
}

// Action names the adjustment the policy made.
type Action string

const (
	// ActionHold leaves the size unchanged.
	ActionHold Action = "hold"
	// ActionGrow increased the size.
	ActionGrow Action = "grow"
	// ActionShrink decreased the size.
	ActionShrink Action = "shrink"
)

// Adjustment describes one policy update.
// Action reflects the rule that fired; Previous may equal Next when the
// rule was clamped at a bound.
type Adjustment struct {
	Previous int
	Next     int
	Action   Action
}

// Manager owns the current buffer size and the buffer reused across
// iterations. It is safe for concurrent use; the capture loop is the only
// writer, readers such as the status endpoint only call Size.
type Manager struct {
	config Config

	mu      sync.Mutex
	current int
	buf     *Buffer
}

// NewManager creates a Manager starting at config.InitialSize.
func NewManager(config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		config:  config,
		current: config.InitialSize,
	}, nil
}

// Config returns the policy configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Size returns the capacity the next Allocate will use.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Allocate returns a buffer of the current size.
// The previous backing array is reused when the size is unchanged,
// otherwise it is dropped and a new one allocated.
func (m *Manager) Allocate() *Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.buf != nil && m.buf.Cap() == m.current {
		m.buf.Reset()
		return m.buf
	}
	m.buf = newBuffer(m.current)
	return m.buf
}

// Release drops the retained backing array so it can be collected.
// The next Allocate allocates afresh.
func (m *Manager) Release() {
	m.mu.Lock()
	m.buf = nil
	m.mu.Unlock()
}

// OnCaptureResult updates the size for the next iteration.
// It must be called exactly once per iteration, after that iteration's
// capture outcome is known.
func (m *Manager) OnCaptureResult(r Result) Adjustment {
	m.mu.Lock()
	defer m.mu.Unlock()

	adj := Adjustment{Previous: m.current, Action: ActionHold}

	switch {
	case r.Outcome == types.CaptureOutOfMemory:
		m.current = max(m.current-m.config.ShrinkStep, m.config.MinSize)
		// Drop the retained array; it is what the heap could not afford.
		m.buf = nil
		adj.Action = ActionShrink
	case r.Outcome == types.CaptureOK && r.BytesWritten >= r.Capacity-m.config.NearFullMargin:
		m.current = min(m.current+m.config.GrowStep, m.config.MaxSize)
		adj.Action = ActionGrow
	}

	adj.Next = m.current
	return adj
}
