package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeSourceUnavailable    ErrorCode = "BLK1001"
	ErrCodeWarehouseUnavailable ErrorCode = "BLK1002"
	ErrCodeConnectionTimeout    ErrorCode = "BLK1003"
	ErrCodeAuthenticationFailed ErrorCode = "BLK1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "BLK2001"
	ErrCodeConfigInvalid  ErrorCode = "BLK2002"
	ErrCodeRequiredField  ErrorCode = "BLK2003"

	// Plan errors (3xxx)
	ErrCodePlanMissing ErrorCode = "BLK3001"
	ErrCodePlanInvalid ErrorCode = "BLK3002"

	// Source catalog errors (4xxx)
	ErrCodeSourceObjectMissing ErrorCode = "BLK4001"
	ErrCodeCatalogUnavailable  ErrorCode = "BLK4002"
	ErrCodeEncodingFailure     ErrorCode = "BLK4003"

	// Warehouse write errors (5xxx)
	ErrCodeTargetCreateFailed ErrorCode = "BLK5001"
	ErrCodeBatchWriteFailed   ErrorCode = "BLK5002"
	ErrCodeRowWriteFailed     ErrorCode = "BLK5003"

	// Datamart errors (6xxx)
	ErrCodeDatamartPhaseFailed ErrorCode = "BLK6001"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "BLK9001"
	ErrCodeTimeout            ErrorCode = "BLK9002"
	ErrCodeMaxRetriesExceeded ErrorCode = "BLK9003"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run cannot continue
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, run continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// SourceConnectionError creates an error for source database connectivity failures
func SourceConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeSourceUnavailable, message).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check the SOURCE_DB_* environment variables",
			"Verify the SQL Server endpoint is reachable",
			"Check VPN and firewall settings",
		)
}

// WarehouseConnectionError creates an error for warehouse connectivity failures
func WarehouseConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeWarehouseUnavailable, message).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check the WAREHOUSE_* environment variables",
			"Verify the Snowflake account identifier",
			"Confirm the role has access to the target database",
		)
}

// ObjectMissingError creates an error for a table absent from the source catalog
func ObjectMissingError(schema, table string) *AppError {
	return New(ErrCodeSourceObjectMissing,
		fmt.Sprintf("Source object %s.%s not found in catalog", schema, table)).
		WithContext("schema", schema).
		WithContext("table", table).
		AsRecoverable().
		WithSuggestions(
			"Run 'blinklift investigate' to search for similar table names",
			"Rebuild the migration plan if the source schema changed",
		)
}

// CatalogError creates an error for catalog access failures
func CatalogError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeCatalogUnavailable, message).
		WithSuggestions(
			"Verify the account can read INFORMATION_SCHEMA views",
			"Check source database permissions",
		)
}

// WriteError creates an error for a failed warehouse insert
func WriteError(message string, statement string, cause error) *AppError {
	err := Wrap(cause, ErrCodeBatchWriteFailed, message).
		WithContext("statement", truncateString(statement, 200))

	errStr := strings.ToLower(message)
	if cause != nil {
		errStr += " " + strings.ToLower(cause.Error())
	}
	if strings.Contains(errStr, "invalid utf8") || strings.Contains(errStr, "invalid character") {
		err.Code = ErrCodeEncodingFailure
		_ = err.WithSuggestions(
			"Re-run the table with forced byte decoding",
			"Inspect the source column collation",
		)
	}

	return err
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'blinklift setup' to reconfigure",
		)
}

// PlanMissingError creates an error for a missing plan file
func PlanMissingError(path string) *AppError {
	return New(ErrCodePlanMissing, fmt.Sprintf("Migration plan not found at %s", path)).
		WithSeverity(SeverityCritical).
		WithContext("path", path).
		WithSuggestions("Run 'blinklift plan' to build the migration plan")
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
