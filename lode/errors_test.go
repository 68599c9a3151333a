package lode

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{name: "deadline exceeded", errMsg: "context deadline exceeded", wantKind: ErrTimeout},
		{name: "operation timed out", errMsg: "operation timed out", wantKind: ErrTimeout},
		{name: "no space left on device", errMsg: "write /mnt/sd/frames: no space left on device", wantKind: ErrDiskFull},
		{name: "ENOSPC errno", errMsg: "ENOSPC: write failed", wantKind: ErrDiskFull},
		{name: "quota exceeded", errMsg: "quota exceeded for bucket", wantKind: ErrDiskFull},
		{name: "permission denied", errMsg: "open /mnt/sd/frames: permission denied", wantKind: ErrPermissionDenied},
		{name: "AccessDenied S3", errMsg: "AccessDenied: you do not have access", wantKind: ErrPermissionDenied},
		{name: "HTTP 403", errMsg: "received status 403", wantKind: ErrPermissionDenied},
		{name: "SlowDown S3", errMsg: "SlowDown: please reduce request rate", wantKind: ErrThrottled},
		{name: "HTTP 429", errMsg: "received status 429", wantKind: ErrThrottled},
		{name: "NoCredentialProviders", errMsg: "NoCredentialProviders: no valid providers", wantKind: ErrAuth},
		{name: "HTTP 401", errMsg: "received status 401", wantKind: ErrAuth},
		{name: "connection refused", errMsg: "dial tcp 192.168.1.20:9000: connection refused", wantKind: ErrNetwork},
		{name: "DNS failure", errMsg: "DNS lookup failed for minio.local", wantKind: ErrNetwork},
		{name: "unrecognized", errMsg: "something completely unexpected", wantKind: ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.errMsg))
			if !errors.Is(got, tt.wantKind) {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != nil {
		t.Errorf("classifyError(nil) = %v, want nil", got)
	}
}

func TestClassifyError_TimeoutInterface(t *testing.T) {
	if got := classifyError(context.DeadlineExceeded); !errors.Is(got, ErrTimeout) {
		t.Errorf("classifyError(DeadlineExceeded) = %v, want ErrTimeout", got)
	}
}

func TestStorageError(t *testing.T) {
	inner := errors.New("no space left on device")
	err := wrapError(inner, "write", "frames/a.jpg")

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if storageErr.Op != "write" {
		t.Errorf("Op = %q, want write", storageErr.Op)
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Error("expected errors.Is(err, ErrDiskFull)")
	}
	if !errors.Is(err, inner) {
		t.Error("expected underlying error in chain")
	}
	want := "write frames/a.jpg: no space left on device: no space left on device"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapError_Nil(t *testing.T) {
	if err := wrapError(nil, "write", "x"); err != nil {
		t.Errorf("wrapError(nil) = %v, want nil", err)
	}
}
