package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLSPErrorMessage(t *testing.T) {
	err := NewLSPError(InternalError, "boom", nil)
	assert.Contains(t, err.Error(), "-32603")
	assert.Contains(t, err.Error(), "boom")

	withData := NewLSPError(InvalidParams, "bad", map[string]string{"field": "uri"})
	assert.Contains(t, withData.Error(), "data:")
}

func TestErrorCodeCategory(t *testing.T) {
	assert.Equal(t, CategoryJSONRPC, GetErrorCodeCategory(ParseError))
	assert.Equal(t, CategoryJSONRPC, GetErrorCodeCategory(InternalError))
	assert.Equal(t, CategoryLSP, GetErrorCodeCategory(RequestCancelled))
	assert.Equal(t, CategoryConnection, GetErrorCodeCategory(ProcessStartFailure))
	assert.Equal(t, CategoryTimeout, GetErrorCodeCategory(InitializationTimeout))
	assert.Equal(t, CategoryValidation, GetErrorCodeCategory(InvalidURI))
	assert.Equal(t, CategoryFeature, GetErrorCodeCategory(UnsupportedLanguage))
	assert.Equal(t, CategoryConfig, GetErrorCodeCategory(ServerNotFound))
	assert.Equal(t, CategoryUnknown, GetErrorCodeCategory(-99999))
}

func TestErrorCodeMessage(t *testing.T) {
	assert.Equal(t, "Parse error", GetErrorCodeMessage(ParseError))
	assert.Equal(t, "Method not found", GetErrorCodeMessage(MethodNotFound))
	assert.Equal(t, "Unknown error", GetErrorCodeMessage(12345))
}

func TestConnectionErrorClassification(t *testing.T) {
	err := NewConnectionError("go", fmt.Errorf("connection refused"))
	assert.Equal(t, "refused", err.Type)
	assert.True(t, IsConnectionError(err))

	pipeErr := NewConnectionError("rust", fmt.Errorf("write: broken pipe"))
	assert.Equal(t, "broken_pipe", pipeErr.Type)

	missing := NewConnectionError("python", fmt.Errorf("exec: no such file or directory"))
	assert.Equal(t, "not_found", missing.Type)
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("initialize", "rust", 10*time.Second, context.DeadlineExceeded)
	assert.True(t, IsTimeoutError(err))
	assert.Contains(t, err.Error(), "initialize")
	assert.Contains(t, err.Error(), "rust")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsTimeoutError(context.DeadlineExceeded))
}

func TestProcessErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := NewProcessError("typescript", "typescript-language-server", "start", cause)
	assert.True(t, IsProcessError(err))
	assert.True(t, errors.Is(err, cause))
}

func TestMethodNotSupportedError(t *testing.T) {
	err := NewMethodNotSupportedError("cobol", "", []string{"rust", "go", "python"})
	assert.True(t, IsMethodNotSupportedError(err))
	assert.Contains(t, err.Error(), "cobol")
	assert.Contains(t, err.Error(), "rust, go, python")
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(ConnectionFailure))
	assert.True(t, IsRetryableError(OperationTimeout))
	assert.False(t, IsRetryableError(UnsupportedLanguage))
	assert.False(t, IsRetryableError(ParseError))
}
