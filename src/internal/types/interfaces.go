package types

import (
	"context"
	"encoding/json"
)

// LSPClient is the uniform interface over one running language server.
// It covers lifecycle management, request/notification sending, and
// capability checking; the concrete implementation lives in the server
// package.
type LSPClient interface {
	// Start spawns the server process and performs the initialize
	// handshake. Returns an error if the server fails to start or is
	// already running.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the server process. Idempotent.
	Stop() error

	// SendRequest sends a JSON-RPC request and waits for the matching
	// response, correlated by id.
	SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// SendNotification sends a JSON-RPC notification without expecting a
	// response.
	SendNotification(ctx context.Context, method string, params interface{}) error

	// IsActive returns true if the server is currently running.
	IsActive() bool

	// Supports checks if the server advertises support for a method.
	Supports(method string) bool
}
