package errors

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LSPError represents a JSON-RPC error with code and optional data. Its
// fields marshal directly into a JSON-RPC error object.
type LSPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *LSPError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("LSP error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("LSP error %d: %s", e.Code, e.Message)
}

// ValidationError represents parameter validation errors
type ValidationError struct {
	Parameter string `json:"parameter"`
	Message   string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for parameter '%s': %s", e.Parameter, e.Message)
}

// ConnectionError represents language server connection errors
type ConnectionError struct {
	Language string `json:"language"`
	Cause    error  `json:"cause,omitempty"`
	Type     string `json:"type,omitempty"`
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection error for %s (%s): %v", e.Language, e.Type, e.Cause)
	}
	return fmt.Sprintf("connection error for %s (%s)", e.Language, e.Type)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeout errors
type TimeoutError struct {
	Operation string        `json:"operation"`
	Language  string        `json:"language,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Cause     error         `json:"cause,omitempty"`
}

func (e *TimeoutError) Error() string {
	if e.Language != "" {
		return fmt.Sprintf("timeout error for %s operation on %s (timeout: %v)", e.Operation, e.Language, e.Timeout)
	}
	return fmt.Sprintf("timeout error for %s operation (timeout: %v)", e.Operation, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ProcessError represents language server process errors
type ProcessError struct {
	Language string `json:"language"`
	Command  string `json:"command"`
	Cause    error  `json:"cause,omitempty"`
	Type     string `json:"type"` // "start", "stop", "communication"
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process error for %s server (%s): %s - %v", e.Language, e.Type, e.Command, e.Cause)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// MethodNotSupportedError indicates a method or language the gateway
// cannot serve. Supported lists the alternatives the caller may use.
type MethodNotSupportedError struct {
	Method    string   `json:"method"`
	Target    string   `json:"target,omitempty"`
	Supported []string `json:"supported,omitempty"`
}

func (e *MethodNotSupportedError) Error() string {
	if len(e.Supported) > 0 {
		return fmt.Sprintf("'%s' is not supported; supported: %s", e.Method, strings.Join(e.Supported, ", "))
	}
	if e.Target != "" {
		return fmt.Sprintf("method '%s' is not supported by %s", e.Method, e.Target)
	}
	return fmt.Sprintf("method '%s' is not supported", e.Method)
}

// Error constructors

func NewLSPError(code int, message string, data interface{}) *LSPError {
	return &LSPError{Code: code, Message: message, Data: data}
}

func NewValidationError(parameter, message string) *ValidationError {
	return &ValidationError{Parameter: parameter, Message: message}
}

func NewConnectionError(language string, cause error) *ConnectionError {
	errType := "unknown"
	if cause != nil {
		errType = classifyConnectionError(cause)
	}
	return &ConnectionError{Language: language, Cause: cause, Type: errType}
}

func NewTimeoutError(operation, language string, timeout time.Duration, cause error) *TimeoutError {
	return &TimeoutError{Operation: operation, Language: language, Timeout: timeout, Cause: cause}
}

func NewProcessError(language, command, errorType string, cause error) *ProcessError {
	return &ProcessError{Language: language, Command: command, Type: errorType, Cause: cause}
}

func NewMethodNotSupportedError(method, target string, supported []string) *MethodNotSupportedError {
	return &MethodNotSupportedError{Method: method, Target: target, Supported: supported}
}

// Error classification

// IsConnectionError checks if the error is a connection-related error
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*ConnectionError); ok {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "connection") ||
		strings.Contains(errMsg, "connect") ||
		strings.Contains(errMsg, "refused") ||
		strings.Contains(errMsg, "broken pipe")
}

// IsTimeoutError checks if the error is a timeout error
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*TimeoutError); ok {
		return true
	}
	if err == context.DeadlineExceeded {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded")
}

// IsProcessError checks if the error is a process-related error
func IsProcessError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*ProcessError); ok {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "process") ||
		strings.Contains(errMsg, "executable") ||
		strings.Contains(errMsg, "no such file")
}

// IsMethodNotSupportedError checks if the error indicates an unsupported
// method or language
func IsMethodNotSupportedError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*MethodNotSupportedError); ok {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "not supported") ||
		strings.Contains(errMsg, "unsupported") ||
		strings.Contains(errMsg, "method not found")
}

// WrapWithContext wraps an error with operation context
func WrapWithContext(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func classifyConnectionError(err error) string {
	if err == nil {
		return "unknown"
	}
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "refused") || strings.Contains(errMsg, "connect") {
		return "refused"
	}
	if strings.Contains(errMsg, "timeout") {
		return "timeout"
	}
	if strings.Contains(errMsg, "broken pipe") {
		return "broken_pipe"
	}
	if strings.Contains(errMsg, "no such file") || strings.Contains(errMsg, "executable") {
		return "not_found"
	}
	return "network"
}
