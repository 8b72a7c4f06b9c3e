package constants

import "time"

// Timeout constants for language server operations
const (
	// Request timeouts by language
	DefaultRequestTimeout = 30 * time.Second
	RustRequestTimeout    = 30 * time.Second
	PythonRequestTimeout  = 30 * time.Second
	GoTSRequestTimeout    = 15 * time.Second
	WriteTimeout          = 10 * time.Second

	// Initialize timeouts by language
	DefaultInitializeTimeout = 15 * time.Second
	RustInitializeTimeout    = 30 * time.Second
	PythonInitializeTimeout  = 30 * time.Second

	// Process management timeouts
	ProcessShutdownTimeout = 5 * time.Second
	ProcessStartTimeout    = 30 * time.Second
)

// WebSocket listener constants
const (
	// DefaultGatewayPort is the preferred listen port; occupied ports are
	// retried upward from here.
	DefaultGatewayPort = 9257

	// MaxPortAttempts bounds how many consecutive ports are tried before
	// startup is abandoned.
	MaxPortAttempts = 5
)

// LSPResponseBufferSize sizes the buffered reader on a server's stdout.
// Large responses, completion lists in particular, can exceed the
// default bufio size.
const LSPResponseBufferSize = 1024 * 1024

// Project root resolution constants
const (
	// MaxRootSearchDepth bounds the upward walk for project markers.
	MaxRootSearchDepth = 10
)

// Directories to skip when scanning directory contents for language
// detection
var SkipDirectories = map[string]bool{
	".":            true,
	"node_modules": true,
	"vendor":       true,
	"build":        true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
	".git":         true,
	".svn":         true,
	".hg":          true,
	".idea":        true,
	".vscode":      true,
}

// GetRequestTimeout returns language-specific timeout for server requests
func GetRequestTimeout(language string) time.Duration {
	switch language {
	case "rust":
		return RustRequestTimeout
	case "python":
		return PythonRequestTimeout
	case "go", "javascript", "typescript":
		return GoTSRequestTimeout
	default:
		return DefaultRequestTimeout
	}
}

// GetInitializeTimeout returns language-specific timeout for initialize
func GetInitializeTimeout(language string) time.Duration {
	switch language {
	case "rust":
		return RustInitializeTimeout
	case "python":
		return PythonInitializeTimeout
	default:
		return DefaultInitializeTimeout
	}
}
