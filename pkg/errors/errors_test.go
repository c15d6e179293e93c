package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBrowserErrorMessage(t *testing.T) {
	err := FetchError("fetch failed", fmt.Errorf("connection reset"))
	if got := err.Error(); got != "[FETCH] fetch failed: connection reset" {
		t.Errorf("Unexpected message: %s", got)
	}

	err = GateError("no connection slot available", nil)
	if got := err.Error(); got != "[GATE] no connection slot available" {
		t.Errorf("Unexpected message: %s", got)
	}
}

func TestBrowserErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageError("cannot write snapshot", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}

	wrapped := fmt.Errorf("saving: %w", err)
	if !IsType(wrapped, ErrStorage) {
		t.Error("Expected IsType to see through fmt wrapping")
	}
}

func TestBrowserErrorIsSentinel(t *testing.T) {
	sentinel := DispatcherError("dispatcher not accepting work", nil)
	copyWithContext := DispatcherError("dispatcher not accepting work", nil).WithContext("state", "stopped")

	if !errors.Is(copyWithContext, sentinel) {
		t.Error("Errors with the same type and message should match")
	}
	if errors.Is(DispatcherError("other", nil), sentinel) {
		t.Error("Different message should not match")
	}
	if errors.Is(TaskError("dispatcher not accepting work", nil), sentinel) {
		t.Error("Different type should not match")
	}
}

func TestIsType(t *testing.T) {
	if IsType(nil, ErrConfig) {
		t.Error("nil is not a config error")
	}
	if IsType(errors.New("plain"), ErrConfig) {
		t.Error("plain error is not a config error")
	}
	if !IsType(ConfigError("bad", nil), ErrConfig) {
		t.Error("Expected config error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{FetchError("x", nil), true},
		{GateError("x", nil), true},
		{TimeoutError("x", nil), true},
		{ConfigError("x", nil), false},
		{ValidationError("x", nil), false},
		{TaskError("x", nil), false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWithContext(t *testing.T) {
	err := TaskError("task 3 failed", nil).WithContext("seq", 3).WithContext("worker", 1)
	if err.Context["seq"] != 3 || err.Context["worker"] != 1 {
		t.Errorf("Unexpected context: %v", err.Context)
	}
	if !strings.HasPrefix(err.Error(), "[TASK]") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
