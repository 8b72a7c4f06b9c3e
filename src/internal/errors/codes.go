// Package errors provides unified error types and codes for the gateway.
package errors

// Standard JSON-RPC error codes
const (
	ParseError     = -32700 // Invalid JSON was received
	InvalidRequest = -32600 // The JSON sent is not a valid Request object
	MethodNotFound = -32601 // The method does not exist / is not available
	InvalidParams  = -32602 // Invalid method parameter(s)
	InternalError  = -32603 // Internal JSON-RPC error
)

// LSP-specific error codes as defined in the LSP specification
const (
	ServerNotInitialized = -32002
	UnknownErrorCode     = -32001
	RequestCancelled     = -32800
	ContentModified      = -32801
	RequestFailed        = -32803
)

// Gateway custom error codes (range: -33000 to -33099)
const (
	ConnectionFailure   = -33001 // Failed to connect to language server
	ProcessStartFailure = -33002 // Failed to start language server process
	ProcessStopFailure  = -33003 // Failed to stop language server process
	CommunicationError  = -33004 // Communication error with language server

	InitializationTimeout = -33010
	OperationTimeout      = -33011
	ShutdownTimeout       = -33012

	InvalidURI           = -33020
	InvalidPosition      = -33021
	InvalidTextDocument  = -33022
	MissingParameter     = -33023
	InvalidParameterType = -33024

	UnsupportedMethod   = -33030
	UnsupportedLanguage = -33031
	CapabilityNotFound  = -33032

	ConfigurationError = -33060
	ServerNotFound     = -33062 // Language server executable not found
)

// Error code categories for classification and handling
const (
	CategoryJSONRPC    = "jsonrpc"
	CategoryLSP        = "lsp"
	CategoryConnection = "connection"
	CategoryTimeout    = "timeout"
	CategoryValidation = "validation"
	CategoryFeature    = "feature"
	CategoryConfig     = "config"
	CategoryUnknown    = "unknown"
)

// GetErrorCodeCategory returns the category for a given error code
func GetErrorCodeCategory(code int) string {
	switch {
	case code >= -32700 && code <= -32600:
		return CategoryJSONRPC
	case code >= -32099 && code <= -32000:
		return CategoryJSONRPC
	case code >= -32899 && code <= -32800:
		return CategoryLSP
	case code >= -33009 && code <= -33001:
		return CategoryConnection
	case code >= -33019 && code <= -33010:
		return CategoryTimeout
	case code >= -33029 && code <= -33020:
		return CategoryValidation
	case code >= -33039 && code <= -33030:
		return CategoryFeature
	case code >= -33069 && code <= -33060:
		return CategoryConfig
	default:
		return CategoryUnknown
	}
}

var errorCodeMessages = map[int]string{
	ParseError:            "Parse error",
	InvalidRequest:        "Invalid Request",
	MethodNotFound:        "Method not found",
	InvalidParams:         "Invalid params",
	InternalError:         "Internal error",
	ServerNotInitialized:  "Server not initialized",
	UnknownErrorCode:      "Unknown error code",
	RequestCancelled:      "Request cancelled",
	ContentModified:       "Content modified",
	RequestFailed:         "Request failed",
	ConnectionFailure:     "Connection failure",
	ProcessStartFailure:   "Process start failure",
	ProcessStopFailure:    "Process stop failure",
	CommunicationError:    "Communication error",
	InitializationTimeout: "Initialization timeout",
	OperationTimeout:      "Operation timeout",
	ShutdownTimeout:       "Shutdown timeout",
	InvalidURI:            "Invalid URI",
	InvalidPosition:       "Invalid position",
	InvalidTextDocument:   "Invalid text document",
	MissingParameter:      "Missing parameter",
	InvalidParameterType:  "Invalid parameter type",
	UnsupportedMethod:     "Unsupported method",
	UnsupportedLanguage:   "Unsupported language",
	CapabilityNotFound:    "Capability not found",
	ConfigurationError:    "Configuration error",
	ServerNotFound:        "Server not found",
}

// GetErrorCodeMessage returns the standard message for a given error code
func GetErrorCodeMessage(code int) string {
	if msg, ok := errorCodeMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}

// IsRetryableError determines if an error code represents a retryable condition
func IsRetryableError(code int) bool {
	switch code {
	case ConnectionFailure, CommunicationError, OperationTimeout:
		return true
	case InitializationTimeout, ProcessStartFailure:
		return true
	default:
		return false
	}
}
