package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"editor-gateway/src/config"
	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/errors"
	"editor-gateway/src/internal/project"
	"editor-gateway/src/internal/registry"
	"editor-gateway/src/internal/types"
	"editor-gateway/src/server/capabilities"
	"editor-gateway/src/server/protocol"
)

// LanguageServer is the factory's view of one running adapter: the
// uniform client interface plus the hooks the gateway needs to relay
// notifications, seed the handshake, and report capabilities.
type LanguageServer interface {
	types.LSPClient

	SetNotificationHandler(fn func(method string, params interface{}))

	// SetInitializeParams seeds the handshake with the editor's
	// initialize params. Must be called before Start.
	SetInitializeParams(params map[string]interface{})

	// InitializeResult returns the server's raw initialize response,
	// nil before the handshake completes.
	InitializeResult() json.RawMessage

	Capabilities() capabilities.ServerCapabilities
	Language() string
	RootDir() string
}

// NewServerFunc constructs an adapter for a language rooted at a
// directory. Tests substitute it to observe spawn and teardown without
// real processes.
type NewServerFunc func(language string, cfg *config.ServerConfig, rootDir string) (LanguageServer, error)

func defaultNewServer(language string, cfg *config.ServerConfig, rootDir string) (LanguageServer, error) {
	return NewStdioClient(language, cfg, rootDir)
}

// Factory owns the set of live adapters. It hands out sequential server
// ids, normalizes and detects languages, and dispatches forwarded
// requests to the right adapter.
type Factory struct {
	config    *config.Config
	newServer NewServerFunc

	mu      sync.RWMutex
	servers map[string]LanguageServer
	nextID  int64
}

// NewFactory creates a factory using the given configuration. A nil
// config falls back to registry defaults for every language.
func NewFactory(cfg *config.Config) *Factory {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	return &Factory{
		config:    cfg,
		newServer: defaultNewServer,
		servers:   make(map[string]LanguageServer),
	}
}

// SetNewServerFunc overrides adapter construction. Test hook.
func (f *Factory) SetNewServerFunc(fn NewServerFunc) {
	f.newServer = fn
}

// NormalizeLanguage lowercases and trims a declared language, running
// detection against the path when the declaration is empty or
// "unknown".
func (f *Factory) NormalizeLanguage(language, path string) (string, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" || language == "unknown" {
		detected, err := project.DetectLanguage(path)
		if err != nil {
			return "", err
		}
		return detected, nil
	}
	return language, nil
}

// CreateServer resolves the project root for (language, path), starts
// an adapter there, and stores it under a fresh sequential id.
// Unsupported languages fail with the supported list; nonexistent paths
// fail before any process is spawned.
func (f *Factory) CreateServer(ctx context.Context, language, path string) (string, LanguageServer, error) {
	language, err := f.NormalizeLanguage(language, path)
	if err != nil {
		return "", nil, err
	}
	if err := registry.ValidateLanguage(language); err != nil {
		return "", nil, unsupportedLanguageError(language)
	}

	root, err := project.FindProjectRoot(language, path)
	if err != nil {
		return "", nil, err
	}

	return f.CreateServerAtRoot(ctx, language, root, nil)
}

// CreateServerAtRoot starts an adapter at an already-resolved root
// directory. Used directly by the gateway, which resolves the root
// itself and hands over the editor's initialize params so the
// handshake carries them. initParams may be nil.
func (f *Factory) CreateServerAtRoot(ctx context.Context, language string, root string, initParams map[string]interface{}) (string, LanguageServer, error) {
	server, err := f.buildServer(language, root)
	if err != nil {
		return "", nil, err
	}

	if initParams != nil {
		server.SetInitializeParams(initParams)
	}
	if err := server.Start(ctx); err != nil {
		return "", nil, err
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("server_%d", f.nextID)
	f.servers[id] = server
	f.mu.Unlock()

	common.LSPLogger.Info("Created server %s: language=%s, root=%s", id, language, root)
	return id, server, nil
}

// buildServer selects the adapter for a language. One case per
// supported language so adding a language forces a decision here.
func (f *Factory) buildServer(language, root string) (LanguageServer, error) {
	cfg, _ := f.config.ServerConfigFor(language)

	switch language {
	case "rust":
		return f.newServer("rust", cfg, root)
	case "go":
		return f.newServer("go", cfg, root)
	case "python":
		return f.newServer("python", cfg, root)
	case "typescript":
		return f.newServer("typescript", cfg, root)
	case "javascript":
		return f.newServer("javascript", cfg, root)
	default:
		return nil, unsupportedLanguageError(language)
	}
}

// unsupportedLanguageError builds the "no server for language X" error
// carrying the supported-language list.
func unsupportedLanguageError(language string) *errors.MethodNotSupportedError {
	return errors.NewMethodNotSupportedError(
		fmt.Sprintf("language %q", language), "", registry.GetLanguageNames())
}

// GetServer looks up a live adapter by id.
func (f *Factory) GetServer(id string) (LanguageServer, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	server, ok := f.servers[id]
	return server, ok
}

// RemoveServer shuts the adapter down and forgets its id. Unknown ids
// are a no-op.
func (f *Factory) RemoveServer(id string) error {
	f.mu.Lock()
	server, ok := f.servers[id]
	delete(f.servers, id)
	f.mu.Unlock()

	if !ok {
		return nil
	}
	return server.Stop()
}

// StopAll tears down every live adapter. Used on gateway shutdown.
func (f *Factory) StopAll() {
	f.mu.Lock()
	servers := f.servers
	f.servers = make(map[string]LanguageServer)
	f.mu.Unlock()

	for id, server := range servers {
		if err := server.Stop(); err != nil {
			common.LSPLogger.Warn("Error stopping %s: %v", id, err)
		}
	}
}

// ServerCount returns the number of live adapters.
func (f *Factory) ServerCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.servers)
}

// ForwardRequest parses a raw JSON-RPC message, delegates it to the
// adapter registered under id, and rebuilds a response envelope around
// the outcome. Notifications produce no reply.
func (f *Factory) ForwardRequest(ctx context.Context, id string, raw []byte) ([]byte, error) {
	server, ok := f.GetServer(id)
	if !ok {
		return nil, errors.NewValidationError("server id", fmt.Sprintf("no server with id %s", id))
	}

	var msg protocol.JSONRPCMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.NewLSPError(errors.ParseError, "invalid JSON-RPC payload", nil)
	}

	if msg.ID == nil {
		if err := server.SendNotification(ctx, msg.Method, msg.Params); err != nil {
			return nil, err
		}
		return nil, nil
	}

	result, err := server.SendRequest(ctx, msg.Method, msg.Params)
	var response protocol.JSONRPCMessage
	if err != nil {
		response = protocol.CreateUnifiedErrorResponse(msg.ID, err)
	} else {
		response = protocol.CreateResponse(msg.ID, result, nil)
	}
	return json.Marshal(response)
}

// GetServerCapabilities runs the initialize handshake with a throw-away
// adapter rooted at the current working directory and reports the
// capability set. No server entry is retained.
func (f *Factory) GetServerCapabilities(ctx context.Context, language string) (capabilities.ServerCapabilities, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if err := registry.ValidateLanguage(language); err != nil {
		return capabilities.ServerCapabilities{}, unsupportedLanguageError(language)
	}

	wd, err := os.Getwd()
	if err != nil {
		return capabilities.ServerCapabilities{}, err
	}

	server, err := f.buildServer(language, wd)
	if err != nil {
		return capabilities.ServerCapabilities{}, err
	}
	if err := server.Start(ctx); err != nil {
		return capabilities.ServerCapabilities{}, err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			common.LSPLogger.Warn("Error stopping probe server for %s: %v", language, err)
		}
	}()

	return server.Capabilities(), nil
}

// FindProjectRoot exposes root resolution for callers that only hold a
// factory.
func (f *Factory) FindProjectRoot(language, path string) (string, error) {
	return project.FindProjectRoot(language, path)
}

// IsProjectRoot checks a single directory for the language's markers
// without walking upward.
func (f *Factory) IsProjectRoot(language, dir string) (bool, error) {
	return project.IsProjectRoot(language, dir)
}

// DetectLanguage exposes extension and marker based detection.
func (f *Factory) DetectLanguage(path string) (string, error) {
	return project.DetectLanguage(path)
}

// ActiveServerRegistry tracks which languages already have a directly
// attached (stdio mode) server running so a second spawn for the same
// language is refused. Independent of the WebSocket gateway's
// per-session adapters.
type ActiveServerRegistry struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewActiveServerRegistry creates an empty registry.
func NewActiveServerRegistry() *ActiveServerRegistry {
	return &ActiveServerRegistry{running: make(map[string]bool)}
}

// MarkRunning records a language as running. Returns false when the
// language was already marked.
func (r *ActiveServerRegistry) MarkRunning(language string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[language] {
		return false
	}
	r.running[language] = true
	return true
}

// MarkStopped clears the running mark for a language.
func (r *ActiveServerRegistry) MarkStopped(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, language)
}

// IsRunning reports whether a language is marked running.
func (r *ActiveServerRegistry) IsRunning(language string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[language]
}
