// Package errors provides structured error handling for netscope operations.
// It defines error codes, error types, and provides utilities for creating
// and handling errors with context and structured information.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"

	// Range validation errors.
	CodeInvalidOctet   ErrorCode = "INVALID_OCTET"
	CodeInvalidAddress ErrorCode = "INVALID_ADDRESS"
	CodeInvertedRange  ErrorCode = "INVERTED_RANGE"

	// Session and backend errors.
	CodeCommandRejected ErrorCode = "COMMAND_REJECTED"
	CodeBusy            ErrorCode = "BUSY"
	CodeInvalidState    ErrorCode = "INVALID_STATE"
	CodeNoHosts         ErrorCode = "NO_HOSTS"
	CodeScanAborted     ErrorCode = "SCAN_ABORTED"
	CodeScanDegraded    ErrorCode = "SCAN_DEGRADED"
	CodeDesync          ErrorCode = "DESYNC"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
	CodeDatabaseTimeout    ErrorCode = "DATABASE_TIMEOUT"
)

// Coded is implemented by every error type in this package.
type Coded interface {
	error
	ErrorCode() ErrorCode
}

// ValidationError reports input that failed validation before any backend
// command was issued. Field names the offending input, e.g. "start", "end".
type ValidationError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   string
	Cause   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *ValidationError) ErrorCode() ErrorCode {
	return e.Code
}

// NewValidationError creates a validation error for a field.
func NewValidationError(code ErrorCode, message, field, value string) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// CommandError reports a backend command that failed or was rejected.
type CommandError struct {
	Code    ErrorCode
	Command string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("[%s] %s (command: %s)", e.Code, e.Message, e.Command)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *CommandError) ErrorCode() ErrorCode {
	return e.Code
}

// WithContext adds context information to the error.
func (e *CommandError) WithContext(key string, value interface{}) *CommandError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WrapCommandError wraps a backend failure for the named command.
func WrapCommandError(code ErrorCode, command, message string, err error) *CommandError {
	return &CommandError{
		Code:    code,
		Command: command,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// SessionError reports a request refused by the session state machine.
type SessionError struct {
	Code    ErrorCode
	Message string
	State   string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("[%s] %s (state: %s)", e.Code, e.Message, e.State)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ErrorCode returns the error code.
func (e *SessionError) ErrorCode() ErrorCode {
	return e.Code
}

// NewSessionError creates a session error.
func NewSessionError(code ErrorCode, message, state string) *SessionError {
	return &SessionError{
		Code:    code,
		Message: message,
		State:   state,
	}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Query     string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *DatabaseError) ErrorCode() ErrorCode {
	return e.Code
}

// WithQuery adds the SQL query that caused the error.
func (e *DatabaseError) WithQuery(query string) *DatabaseError {
	e.Query = query
	return e
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
	}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, err error) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *ConfigError) ErrorCode() ErrorCode {
	return e.Code
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var coded Coded
	if stderrors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return stderrors.As(err, &v)
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeCommandRejected, CodeBusy, CodeTimeout, CodeDatabaseTimeout:
		return true
	default:
		return false
	}
}

// IsFatal determines if an error indicates a fatal condition that should stop execution.
// Nothing the session core reports is fatal; only start-up failures are.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeConfiguration, CodeDatabaseMigration:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidOctet creates an error for a malformed octet fragment.
func ErrInvalidOctet(value string) *ValidationError {
	return NewValidationError(CodeInvalidOctet, "Invalid octet", "octet", value)
}

// ErrInvalidAddress creates an error for an address that failed to parse on one side of a range.
func ErrInvalidAddress(side, value string, cause error) *ValidationError {
	err := NewValidationError(CodeInvalidAddress, "Invalid IPv4 address", side, value)
	err.Cause = cause
	return err
}

// ErrInvertedRange creates an error for a range whose start is after its end.
func ErrInvertedRange(start, end string) *ValidationError {
	return NewValidationError(CodeInvertedRange, "Start address is after end address", "range", start+" - "+end)
}

// ErrCommandRejected creates an error for a backend command rejection.
func ErrCommandRejected(command string, err error) *CommandError {
	return WrapCommandError(CodeCommandRejected, command, "Backend rejected command", err)
}

// ErrBusy creates an error for a command issued while another is in flight.
func ErrBusy(state string) *SessionError {
	return NewSessionError(CodeBusy, "Another command is in flight", state)
}

// ErrInvalidState creates an error for a transition that is illegal in the current state.
func ErrInvalidState(message, state string) *SessionError {
	return NewSessionError(CodeInvalidState, message, state)
}

// ErrNoHosts creates an error for a monitoring request with an empty host set.
func ErrNoHosts() *SessionError {
	return NewSessionError(CodeNoHosts, "No hosts to monitor", "")
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", err)
}

// ErrDatabaseQuery creates an error for database query failures.
func ErrDatabaseQuery(query string, err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseQuery, "Database query failed", err).WithQuery(query)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
