package camera

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandSource_ReadsStdout(t *testing.T) {
	requireShell(t)

	src, err := NewCommandSource([]string{"sh", "-c", "head -c 3000 /dev/zero"}, time.Second*5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	buf := make([]byte, 10_000)
	n, err := src.Capture(t.Context(), buf)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if n != 3000 {
		t.Errorf("n = %d, want 3000", n)
	}
}

func TestCommandSource_TruncatesAtCapacity(t *testing.T) {
	requireShell(t)

	src, err := NewCommandSource([]string{"sh", "-c", "head -c 50000 /dev/zero"}, time.Second*5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	buf := make([]byte, 1000)
	n, err := src.Capture(t.Context(), buf)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if n != len(buf) {
		t.Errorf("n = %d, want %d", n, len(buf))
	}
}

func TestCommandSource_EmptyOutput(t *testing.T) {
	requireShell(t)

	src, err := NewCommandSource([]string{"sh", "-c", "true"}, time.Second*5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = src.Capture(t.Context(), make([]byte, 100))
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestCommandSource_NonZeroExit(t *testing.T) {
	requireShell(t)

	src, err := NewCommandSource([]string{"sh", "-c", "echo sensor not found >&2; exit 3"}, time.Second*5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = src.Capture(t.Context(), make([]byte, 100))
	var perr *PeripheralError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PeripheralError, got %T: %v", err, err)
	}
	if perr.Op != "exit" {
		t.Errorf("Op = %q, want exit", perr.Op)
	}
	if !strings.Contains(err.Error(), "sensor not found") {
		t.Errorf("expected stderr in error, got %q", err.Error())
	}
}

func TestCommandSource_MissingProgram(t *testing.T) {
	src, err := NewCommandSource([]string{"/nonexistent/snapfeed-capture"}, time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = src.Capture(t.Context(), make([]byte, 100))
	var perr *PeripheralError
	if !errors.As(err, &perr) || perr.Op != "start" {
		t.Fatalf("expected start PeripheralError, got %v", err)
	}
}

func TestCommandSource_Timeout(t *testing.T) {
	requireShell(t)

	src, err := NewCommandSource([]string{"sh", "-c", "exec sleep 5"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = src.Capture(t.Context(), make([]byte, 100))
	var perr *PeripheralError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PeripheralError, got %v", err)
	}
}

func TestNewCommandSource_Defaults(t *testing.T) {
	src, err := NewCommandSource(nil, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if src.path != DefaultCommand[0] {
		t.Errorf("path = %q, want %q", src.path, DefaultCommand[0])
	}
	if src.timeout != DefaultCommandTimeout {
		t.Errorf("timeout = %v, want %v", src.timeout, DefaultCommandTimeout)
	}

	if _, err := NewCommandSource([]string{""}, 0); err == nil {
		t.Error("expected error for empty program")
	}
}

func TestLimitedBuffer(t *testing.T) {
	var l limitedBuffer
	chunk := strings.Repeat("x", 400)
	for range 3 {
		n, err := l.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write = %d, %v", n, err)
		}
	}
	if len(l.String()) != stderrLimit {
		t.Errorf("len = %d, want %d", len(l.String()), stderrLimit)
	}
}
