package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeSourceUnavailable, "Source connection failed"),
			expected: "[BLK1001] ERROR: Source connection failed",
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeSourceUnavailable, "Source connection failed").
				WithSuggestions("Check network", "Verify credentials"),
			expected: "[BLK1001] ERROR: Source connection failed\nSuggestions:\n  1. Check network\n  2. Verify credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("tcp connection refused")

	appErr := Wrap(baseErr, ErrCodeWarehouseUnavailable, "Failed to connect to warehouse")

	if appErr.Cause != baseErr {
		t.Error("Wrapped error should contain original error as cause")
	}

	if appErr.Code != ErrCodeWarehouseUnavailable {
		t.Errorf("Expected code %s, got %s", ErrCodeWarehouseUnavailable, appErr.Code)
	}

	if !errors.Is(appErr, New(ErrCodeWarehouseUnavailable, "other message")) {
		t.Error("Errors with the same code should match via errors.Is")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "should be nil") != nil {
		t.Error("Wrapping nil should return nil")
	}
}

func TestObjectMissingError(t *testing.T) {
	err := ObjectMissingError("dbo", "InvoiceDetail")

	if err.Code != ErrCodeSourceObjectMissing {
		t.Errorf("Expected code %s, got %s", ErrCodeSourceObjectMissing, err.Code)
	}
	if !err.Recoverable {
		t.Error("Missing source objects should be recoverable")
	}
	if err.Context["table"] != "InvoiceDetail" {
		t.Errorf("Expected table context, got %v", err.Context["table"])
	}
}

func TestWriteErrorEncodingClassification(t *testing.T) {
	cause := fmt.Errorf("invalid UTF8 detected in string")
	err := WriteError("insert failed", "INSERT INTO RAW.DBO_PATIENT ...", cause)

	if err.Code != ErrCodeEncodingFailure {
		t.Errorf("Expected encoding classification, got %s", err.Code)
	}
}

func TestGetErrorCode(t *testing.T) {
	if code := GetErrorCode(fmt.Errorf("plain error")); code != ErrCodeInternal {
		t.Errorf("Plain errors should map to internal code, got %s", code)
	}

	wrapped := fmt.Errorf("outer: %w", New(ErrCodePlanMissing, "no plan"))
	if code := GetErrorCode(wrapped); code != ErrCodePlanMissing {
		t.Errorf("Expected plan missing code through wrapping, got %s", code)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	config := &RetryConfig{
		MaxRetries:     3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		RetryableError: func(error) bool { return true },
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return New(ErrCodeConnectionTimeout, "timeout")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		return New(ErrCodeConfigInvalid, "bad config")
	})

	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Non-retryable errors should not be retried, got %d attempts", attempts)
	}
}

func TestRetryExhaustion(t *testing.T) {
	config := &RetryConfig{
		MaxRetries:     2,
		InitialDelay:   time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		Multiplier:     1.0,
		RetryableError: func(error) bool { return true },
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		return New(ErrCodeTimeout, "always failing")
	})

	if GetErrorCode(err) != ErrCodeMaxRetriesExceeded {
		t.Errorf("Expected max retries exceeded, got %s", GetErrorCode(err))
	}
}
