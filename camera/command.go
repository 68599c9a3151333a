package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultCommand captures a single JPEG still and writes it to stdout.
var DefaultCommand = []string{"rpicam-still", "--nopreview", "--immediate", "--encoding", "jpg", "-o", "-"}

// DefaultCommandTimeout bounds one capture command.
const DefaultCommandTimeout = 10 * time.Second

// stderrLimit caps how much of the tool's stderr is kept for diagnostics.
const stderrLimit = 512

// CommandSource captures frames by running an external still-capture tool
// once per frame and reading its stdout.
type CommandSource struct {
	path    string
	args    []string
	timeout time.Duration
}

// NewCommandSource creates a source running argv for each capture.
// An empty argv selects DefaultCommand.
func NewCommandSource(argv []string, timeout time.Duration) (*CommandSource, error) {
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	if argv[0] == "" {
		return nil, errors.New("camera command requires a program")
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &CommandSource{
		path:    argv[0],
		args:    append([]string(nil), argv[1:]...),
		timeout: timeout,
	}, nil
}

// Capture runs the capture command and copies its stdout into buf.
// Output beyond len(buf) is discarded so the command can exit; the
// returned length is then len(buf).
func (s *CommandSource) Capture(ctx context.Context, buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.WaitDelay = time.Second
	var stderr limitedBuffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, &PeripheralError{Op: "pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, syscall.ENOMEM) {
			return 0, fmt.Errorf("%w: start %s: %v", ErrOutOfMemory, s.path, err)
		}
		return 0, &PeripheralError{Op: "start", Err: err}
	}

	n, readErr := io.ReadFull(stdout, buf)
	if errors.Is(readErr, io.ErrUnexpectedEOF) || errors.Is(readErr, io.EOF) {
		readErr = nil
	}
	// Drain the remainder so the tool does not block on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)

	waitErr := cmd.Wait()
	if readErr != nil {
		return n, &PeripheralError{Op: "read", Err: readErr}
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return n, &PeripheralError{Op: "wait", Err: ctx.Err()}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return n, &PeripheralError{Op: "exit", Err: fmt.Errorf("%w: %s", waitErr, msg)}
		}
		return n, &PeripheralError{Op: "exit", Err: waitErr}
	}
	if n == 0 {
		return 0, ErrEmpty
	}
	return n, nil
}

// Close is a no-op; each capture owns its own process.
func (s *CommandSource) Close() error {
	return nil
}

// limitedBuffer keeps the first stderrLimit bytes written to it.
type limitedBuffer struct {
	b []byte
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := stderrLimit - len(l.b); room > 0 {
		l.b = append(l.b, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

func (l *limitedBuffer) String() string {
	return string(l.b)
}

var _ Source = (*CommandSource)(nil)
