package skyerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := New(CategoryStorage, CodeUploadFailed, "upload failed")
	want := "[STORAGE:UPLOAD_FAILED] upload failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(CategoryStorage, CodeUploadFailed, "upload failed", cause)
	want := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(CategoryIndex, CodeIndexBuildFailed, "build failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestError_Is(t *testing.T) {
	err1 := New(CategoryStorage, CodeUploadFailed, "first")
	err2 := New(CategoryStorage, CodeUploadFailed, "second")
	err3 := New(CategoryStorage, CodeDownloadFailed, "different code")
	if !errors.Is(err1, err2) {
		t.Error("errors with the same category and code should match")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CategoryStorage, CodeUploadFailed, "x")) {
		t.Error("upload failures should be retryable")
	}
	if IsRetryable(New(CategorySchema, CodeInvalidSchema, "x")) {
		t.Error("schema errors should not be retryable")
	}
}
