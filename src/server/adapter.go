package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"editor-gateway/src/config"
	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/constants"
	"editor-gateway/src/internal/errors"
	"editor-gateway/src/internal/registry"
	"editor-gateway/src/internal/security"
	"editor-gateway/src/internal/types"
	"editor-gateway/src/internal/version"
	"editor-gateway/src/server/capabilities"
	"editor-gateway/src/server/documents"
	servererrors "editor-gateway/src/server/errors"
	"editor-gateway/src/server/process"
	"editor-gateway/src/server/protocol"
	"editor-gateway/src/utils"
)

// requestOutcome carries either the result or the error half of a
// JSON-RPC response back to the waiting caller.
type requestOutcome struct {
	result json.RawMessage
	rpcErr *protocol.RPCError
}

// pendingRequest stores the channel a SendRequest caller waits on.
type pendingRequest struct {
	respCh chan requestOutcome
	done   chan struct{}
}

// StdioClient runs one language server as a child process and speaks
// Content-Length framed JSON-RPC over its standard streams. It
// implements types.LSPClient.
type StdioClient struct {
	language string
	command  string
	args     []string
	rootDir  string
	env      map[string]string

	initializationOptions interface{}
	clientInitParams      map[string]interface{}

	capDetector     capabilities.CapabilityDetector
	processManager  process.ProcessManager
	processInfo     *process.ProcessInfo
	jsonrpcProtocol protocol.JSONRPCProtocol
	documents       *documents.Store

	mu               sync.RWMutex
	writeMu          sync.Mutex
	active           bool
	stopping         bool
	capabilities     capabilities.ServerCapabilities
	initializeResult json.RawMessage
	requests         map[int64]*pendingRequest
	nextID           int64

	notifyMu       sync.RWMutex
	onNotification func(method string, params interface{})
}

// NewStdioClient resolves the server command for the given language and
// prepares a client rooted at rootDir. The process is not spawned until
// Start is called. cfg may be nil, in which case registry defaults
// apply.
func NewStdioClient(language string, cfg *config.ServerConfig, rootDir string) (*StdioClient, error) {
	if err := registry.ValidateLanguage(language); err != nil {
		return nil, err
	}

	command, args, err := resolveCommand(language, cfg)
	if err != nil {
		return nil, err
	}

	if err := security.ValidateCommand(command, args); err != nil {
		return nil, err
	}

	client := &StdioClient{
		language:        language,
		command:         command,
		args:            args,
		rootDir:         rootDir,
		capDetector:     capabilities.NewLSPCapabilityDetector(),
		processManager:  process.NewLSPProcessManager(),
		jsonrpcProtocol: protocol.NewLSPJSONRPCProtocol(language),
		documents:       documents.NewStore(),
		requests:        make(map[int64]*pendingRequest),
	}

	if cfg != nil {
		client.initializationOptions = cfg.InitializationOptions
		if cfg.WorkingDir != "" {
			client.rootDir = cfg.WorkingDir
		}
	}
	client.env = buildEnvironment(language, cfg, client.rootDir)

	return client, nil
}

// resolveCommand picks the first runnable command for a language: the
// configured command when given, otherwise the registry default, then
// each entry of the fallback chain.
func resolveCommand(language string, cfg *config.ServerConfig) (string, []string, error) {
	langInfo, _ := registry.GetLanguageByName(language)

	if cfg != nil && cfg.Command != "" {
		if _, err := exec.LookPath(cfg.Command); err == nil {
			return cfg.Command, cfg.Args, nil
		}
		return "", nil, errors.NewProcessError(language, cfg.Command, "start",
			fmt.Errorf("configured command %q not found in PATH", cfg.Command))
	}

	if _, err := exec.LookPath(langInfo.DefaultCommand); err == nil {
		return langInfo.DefaultCommand, langInfo.DefaultArgs, nil
	}
	for _, fallback := range langInfo.FallbackChain {
		if _, err := exec.LookPath(fallback); err == nil {
			common.LSPLogger.Info("Using fallback server %s for %s (%s not found)",
				fallback, language, langInfo.DefaultCommand)
			return fallback, nil, nil
		}
	}

	return "", nil, errors.NewProcessError(language, langInfo.DefaultCommand, "start",
		fmt.Errorf("no language server found in PATH for %s", language))
}

// buildEnvironment merges registry defaults with configured overrides.
// Configured values win.
func buildEnvironment(language string, cfg *config.ServerConfig, workingDir string) map[string]string {
	env := map[string]string{}
	if langInfo, ok := registry.GetLanguageByName(language); ok {
		for k, v := range langInfo.GetEnvironmentWithWorkingDir(workingDir) {
			env[k] = v
		}
	}
	if cfg != nil {
		for k, v := range cfg.Env {
			env[k] = v
		}
	}
	return env
}

var _ types.LSPClient = (*StdioClient)(nil)

// Documents exposes the open-document mirror for this server.
func (c *StdioClient) Documents() *documents.Store {
	return c.documents
}

// SetInitializeParams records the editor's initialize params so the
// handshake forwards them instead of a fabricated set. Must be called
// before Start.
func (c *StdioClient) SetInitializeParams(params map[string]interface{}) {
	c.mu.Lock()
	c.clientInitParams = params
	c.mu.Unlock()
}

// InitializeResult returns the server's raw initialize response so
// callers can relay it verbatim. Nil before the handshake completes.
func (c *StdioClient) InitializeResult() json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initializeResult
}

// Capabilities returns the capabilities parsed from the initialize
// response, or the defaults when parsing failed.
func (c *StdioClient) Capabilities() capabilities.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Language returns the language this client serves.
func (c *StdioClient) Language() string {
	return c.language
}

// RootDir returns the project root the server was started in.
func (c *StdioClient) RootDir() string {
	return c.rootDir
}

// SetNotificationHandler registers the callback that receives
// server-initiated notifications (diagnostics, log messages) so they
// can be relayed to the editor.
func (c *StdioClient) SetNotificationHandler(fn func(method string, params interface{})) {
	c.notifyMu.Lock()
	c.onNotification = fn
	c.notifyMu.Unlock()
}

// Start spawns the language server process and performs the initialize
// handshake.
func (c *StdioClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return fmt.Errorf("client already active")
	}
	c.stopping = false
	c.mu.Unlock()

	processConfig := process.Config{
		Command:    c.command,
		Args:       c.args,
		WorkingDir: c.rootDir,
		Env:        c.env,
	}

	info, err := c.processManager.StartProcess(processConfig, c.language)
	if err != nil {
		return errors.NewProcessError(c.language, c.command, "start", err)
	}
	info.Active = true

	c.mu.Lock()
	c.processInfo = info
	c.mu.Unlock()

	go func() {
		if err := c.jsonrpcProtocol.HandleResponses(info.Stdout, c, info.StopCh); err != nil && err != io.EOF {
			c.mu.RLock()
			stopping := c.stopping
			c.mu.RUnlock()
			if !stopping {
				common.LSPLogger.Error("Error handling responses for %s: %v", c.language, err)
			}
		}
	}()

	go c.logStderr(info)

	go c.processManager.MonitorProcess(info, func(err error) {
		c.mu.Lock()
		c.active = false
		stopping := c.stopping
		c.mu.Unlock()

		if err != nil && !stopping {
			errStr := err.Error()
			if !strings.Contains(errStr, "signal: killed") &&
				!strings.Contains(errStr, "process already finished") {
				common.LSPLogger.Error("Language server process exited with error: language=%s, error=%v", c.language, err)
			}
		}
	})

	if err := c.initializeLSP(ctx); err != nil {
		_ = c.processManager.StopProcess(info, nil)
		return errors.WrapWithContext("initialize "+c.language+" server", err)
	}

	c.mu.Lock()
	c.active = true
	c.mu.Unlock()

	common.LSPLogger.Info("Language server started: language=%s, command=%s, root=%s",
		c.language, c.command, c.rootDir)
	return nil
}

// Stop shuts the language server down. Safe to call twice.
func (c *StdioClient) Stop() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	info := c.processInfo
	c.mu.Unlock()

	err := c.processManager.StopProcess(info, c)
	if err != nil {
		common.LSPLogger.Error("Error stopping %s server: %v", c.language, err)
	}

	c.mu.Lock()
	c.active = false
	c.mu.Unlock()

	c.documents.Clear()
	return err
}

// SendRequest sends a JSON-RPC request to the server and waits for the
// response correlated by id. A null result is returned as-is; a JSON-RPC
// error becomes an *errors.LSPError.
func (c *StdioClient) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.RLock()
	active := c.active
	info := c.processInfo
	c.mu.RUnlock()

	if !active && method != types.MethodInitialize {
		return nil, errors.NewConnectionError(c.language, fmt.Errorf("client not active"))
	}
	if info == nil {
		return nil, errors.NewConnectionError(c.language, fmt.Errorf("no server process"))
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	request := &pendingRequest{
		respCh: make(chan requestOutcome, 1),
		done:   make(chan struct{}),
	}
	c.requests[id] = request
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.requests, id)
		c.mu.Unlock()
		close(request.done)
	}()

	msg := protocol.CreateMessage(method, id, params)

	c.writeMu.Lock()
	writeErr := c.jsonrpcProtocol.WriteMessage(info.Stdin, msg)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return nil, errors.NewConnectionError(c.language, writeErr)
	}

	timeout := constants.GetRequestTimeout(c.language)
	if method == types.MethodInitialize {
		timeout = constants.GetInitializeTimeout(c.language)
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case outcome := <-request.respCh:
		if outcome.rpcErr != nil {
			return nil, errors.NewLSPError(outcome.rpcErr.Code, outcome.rpcErr.Message, outcome.rpcErr.Data)
		}
		return outcome.result, nil
	case <-ctx.Done():
		cancelParams := map[string]interface{}{"id": id}
		if cancelErr := c.SendNotification(context.Background(), "$/cancelRequest", cancelParams); cancelErr != nil {
			common.LSPLogger.Debug("Failed to send cancel for id=%d: %v", id, cancelErr)
		}
		common.LSPLogger.Error("Request timeout: language=%s, method=%s, id=%d, timeout=%v",
			c.language, method, id, timeout)
		return nil, errors.NewTimeoutError(method, c.language, timeout, ctx.Err())
	case <-info.StopCh:
		c.mu.RLock()
		stopping := c.stopping
		c.mu.RUnlock()
		if method == types.MethodShutdown || stopping {
			common.LSPLogger.Debug("Client stopped during request: method=%s, id=%d", method, id)
		} else {
			common.LSPLogger.Warn("Client stopped during request: method=%s, id=%d", method, id)
		}
		return nil, errors.NewConnectionError(c.language, fmt.Errorf("client stopped"))
	}
}

// SendNotification sends a JSON-RPC notification. Document
// synchronization notifications also update the open-document mirror
// before going out on the wire.
func (c *StdioClient) SendNotification(ctx context.Context, method string, params interface{}) error {
	c.mu.RLock()
	active := c.active
	info := c.processInfo
	c.mu.RUnlock()

	if !active && method != types.MethodInitialized && method != types.MethodExit {
		return errors.NewConnectionError(c.language, fmt.Errorf("client not active"))
	}
	if info == nil {
		return errors.NewConnectionError(c.language, fmt.Errorf("no server process"))
	}

	c.trackDocumentSync(method, params)

	msg := protocol.CreateNotification(method, params)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.jsonrpcProtocol.WriteMessage(info.Stdin, msg)
}

// trackDocumentSync mirrors textDocument/did* notifications into the
// document store so diagnostics and document state survive independent
// of the server.
func (c *StdioClient) trackDocumentSync(method string, params interface{}) {
	paramsMap, ok := params.(map[string]interface{})
	if !ok {
		return
	}
	doc, _ := paramsMap["textDocument"].(map[string]interface{})
	if doc == nil {
		return
	}
	uri, _ := doc["uri"].(string)
	if uri == "" {
		return
	}

	switch method {
	case types.MethodTextDocumentDidOpen:
		languageID, _ := doc["languageId"].(string)
		text, _ := doc["text"].(string)
		c.documents.Open(uri, languageID, intFrom(doc["version"]), text)
	case types.MethodTextDocumentDidChange:
		changes, _ := paramsMap["contentChanges"].([]interface{})
		c.documents.ApplyChanges(uri, intFrom(doc["version"]), changes)
	case types.MethodTextDocumentDidSave:
		if text, ok := paramsMap["text"].(string); ok {
			c.documents.SetSavedText(uri, text)
		}
	case types.MethodTextDocumentDidClose:
		c.documents.Close(uri)
	}
}

func intFrom(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

// IsActive returns true while the server process is running and
// initialized.
func (c *StdioClient) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Supports reports whether the server advertises support for a method.
func (c *StdioClient) Supports(method string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capDetector.SupportsMethod(c.capabilities, method)
}

// SendShutdownRequest implements process.ShutdownSender.
func (c *StdioClient) SendShutdownRequest(ctx context.Context) error {
	_, err := c.SendRequest(ctx, types.MethodShutdown, nil)
	return err
}

// SendExitNotification implements process.ShutdownSender.
func (c *StdioClient) SendExitNotification(ctx context.Context) error {
	return c.SendNotification(ctx, types.MethodExit, nil)
}

// HandleRequest answers server-initiated requests so servers that wait
// on them do not stall. workspace/configuration gets one null per
// requested item; everything else gets a plain null result.
func (c *StdioClient) HandleRequest(method string, id interface{}, params interface{}) error {
	c.mu.RLock()
	info := c.processInfo
	c.mu.RUnlock()
	if info == nil {
		return fmt.Errorf("no server process")
	}

	var result interface{}
	switch method {
	case types.MethodWorkspaceConfiguration:
		count := 1
		if paramsMap, ok := params.(map[string]interface{}); ok {
			if items, ok := paramsMap["items"].([]interface{}); ok && len(items) > 0 {
				count = len(items)
			}
		}
		result = make([]interface{}, count)
	default:
		result = json.RawMessage("null")
	}

	response := protocol.CreateResponse(id, result, nil)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.jsonrpcProtocol.WriteMessage(info.Stdin, response)
}

// HandleResponse delivers a server response to the request waiting on
// its id. Responses with no matching request are logged and dropped.
func (c *StdioClient) HandleResponse(id interface{}, result json.RawMessage, rpcErr *protocol.RPCError) error {
	key, ok := requestID(id)
	if !ok {
		common.LSPLogger.Warn("Response with non-numeric id dropped: id=%v", id)
		return nil
	}

	c.mu.RLock()
	req, exists := c.requests[key]
	info := c.processInfo
	c.mu.RUnlock()

	if !exists {
		common.LSPLogger.Warn("No matching request for response: language=%s, id=%d", c.language, key)
		return nil
	}

	if rpcErr != nil {
		common.LSPLogger.Warn("Server returned error: language=%s, id=%d, code=%d, message=%s",
			c.language, key, rpcErr.Code, rpcErr.Message)
	}

	select {
	case req.respCh <- requestOutcome{result: result, rpcErr: rpcErr}:
	case <-req.done:
		common.LSPLogger.Debug("Request already completed: id=%d", key)
	case <-info.StopCh:
		common.LSPLogger.Debug("Client stopped while delivering response: id=%d", key)
	}
	return nil
}

// requestID normalizes a JSON-RPC id into the int64 key space used by
// the pending-request table.
func requestID(id interface{}) (int64, bool) {
	switch v := id.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// HandleNotification routes server-initiated notifications. Published
// diagnostics are recorded in the document store; all notifications are
// relayed to the registered handler so the editor sees them.
func (c *StdioClient) HandleNotification(method string, params interface{}) error {
	if method == types.MethodPublishDiagnostics {
		if uri, diags, err := documents.ParseDiagnostics(params); err == nil {
			c.documents.SetDiagnostics(uri, diags)
		} else {
			common.LSPLogger.Warn("Malformed publishDiagnostics from %s: %v", c.language, err)
		}
	}

	c.notifyMu.RLock()
	notify := c.onNotification
	c.notifyMu.RUnlock()
	if notify != nil {
		notify(method, params)
	}
	return nil
}

// initializeLSP performs the LSP initialize handshake, records the
// server's capabilities, and keeps the raw response for relaying. When
// the editor's initialize params were seeded via SetInitializeParams,
// they are merged over the defaults so the single handshake carries the
// editor's declared capabilities. A response whose capabilities cannot
// be parsed falls back to a permissive default set.
func (c *StdioClient) initializeLSP(ctx context.Context) error {
	wd, err := filepath.Abs(c.rootDir)
	if err != nil {
		wd = c.rootDir
	}

	defaults := map[string]interface{}{
		"processId": os.Getpid(),
		"clientInfo": map[string]interface{}{
			"name":    "editor-gateway",
			"version": version.Version,
		},
		"rootUri":  utils.FilePathToURI(wd),
		"rootPath": wd,
		"workspaceFolders": []map[string]interface{}{
			{
				"uri":  utils.FilePathToURI(wd),
				"name": filepath.Base(wd),
			},
		},
		"initializationOptions": c.getInitializationOptions(),
		"capabilities":          clientCapabilities(),
		"trace":                 "off",
	}

	c.mu.RLock()
	clientParams := c.clientInitParams
	c.mu.RUnlock()
	initParams := mergeInitializeParams(defaults, clientParams)

	result, err := c.SendRequest(ctx, types.MethodInitialize, initParams)
	if err != nil {
		return err
	}

	caps, capErr := c.capDetector.ParseCapabilities(result)
	if capErr != nil {
		common.LSPLogger.Warn("Failed to parse capabilities for %s, assuming defaults: %v", c.language, capErr)
		caps = capabilities.DefaultCapabilities()
	}
	c.mu.Lock()
	c.capabilities = caps
	c.initializeResult = result
	c.mu.Unlock()

	return c.SendNotification(ctx, types.MethodInitialized, map[string]interface{}{})
}

// mergeInitializeParams overlays the editor's initialize params on the
// defaults. Editor values win key by key; initializationOptions maps
// are merged so registry defaults survive under editor extras. The
// processId is always this process, not the editor's.
func mergeInitializeParams(defaults, client map[string]interface{}) map[string]interface{} {
	if client == nil {
		return defaults
	}

	merged := make(map[string]interface{}, len(defaults)+len(client))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range client {
		if k == "initializationOptions" {
			clientOpts, ok := v.(map[string]interface{})
			if ok {
				opts, _ := merged["initializationOptions"].(map[string]interface{})
				if opts == nil {
					opts = map[string]interface{}{}
				}
				for name, val := range clientOpts {
					opts[name] = val
				}
				merged["initializationOptions"] = opts
				continue
			}
		}
		merged[k] = v
	}
	merged["processId"] = os.Getpid()
	return merged
}

// clientCapabilities is the capability set advertised to every language
// server.
func clientCapabilities() map[string]interface{} {
	return map[string]interface{}{
		"workspace": map[string]interface{}{
			"applyEdit":              true,
			"workspaceEdit":          map[string]interface{}{"documentChanges": true},
			"didChangeConfiguration": map[string]interface{}{"dynamicRegistration": true},
			"didChangeWatchedFiles":  map[string]interface{}{"dynamicRegistration": true},
			"configuration":          true,
			"workspaceFolders":       true,
		},
		"textDocument": map[string]interface{}{
			"publishDiagnostics": map[string]interface{}{
				"relatedInformation": true,
				"versionSupport":     false,
			},
			"synchronization": map[string]interface{}{
				"dynamicRegistration": true,
				"didSave":             true,
			},
			"completion": map[string]interface{}{
				"dynamicRegistration": true,
				"contextSupport":      true,
				"completionItem": map[string]interface{}{
					"snippetSupport":      true,
					"documentationFormat": []string{"markdown", "plaintext"},
				},
			},
			"hover": map[string]interface{}{
				"dynamicRegistration": true,
				"contentFormat":       []string{"markdown", "plaintext"},
			},
			"definition": map[string]interface{}{
				"dynamicRegistration": true,
				"linkSupport":         true,
			},
			"references": map[string]interface{}{
				"dynamicRegistration": true,
			},
			"formatting": map[string]interface{}{
				"dynamicRegistration": true,
			},
			"rename": map[string]interface{}{
				"dynamicRegistration": true,
				"prepareSupport":      true,
			},
		},
	}
}

// getInitializationOptions prefers configured options, normalized from
// YAML map types, and falls back to the registry defaults.
func (c *StdioClient) getInitializationOptions() map[string]interface{} {
	if c.initializationOptions != nil {
		switch opts := c.initializationOptions.(type) {
		case map[string]interface{}:
			return convertToStringMap(opts)
		case map[interface{}]interface{}:
			return convertInterfaceMap(opts)
		}
	}

	langInfo, exists := registry.GetLanguageByName(c.language)
	if !exists {
		return map[string]interface{}{}
	}
	return langInfo.GetInitOptions()
}

// convertInterfaceMap recursively converts map[interface{}]interface{}
// keys, as produced by YAML unmarshaling, to string keys.
func convertInterfaceMap(m map[interface{}]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range m {
		if key, ok := k.(string); ok {
			result[key] = convertValue(v)
		}
	}
	return result
}

func convertToStringMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range m {
		result[k] = convertValue(v)
	}
	return result
}

func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		return convertInterfaceMap(val)
	case map[string]interface{}:
		return convertToStringMap(val)
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = convertValue(item)
		}
		return result
	default:
		return v
	}
}

// logStderr drains the server's stderr so the pipe never fills, logging
// lines that look like errors.
func (c *StdioClient) logStderr(info *process.ProcessInfo) {
	if info == nil || info.Stderr == nil {
		return
	}

	translator := servererrors.NewStderrTranslator()
	scanner := bufio.NewScanner(info.Stderr)
	for scanner.Scan() {
		select {
		case <-info.StopCh:
			return
		default:
		}

		line := scanner.Text()
		switch translator.Classify(line) {
		case servererrors.LevelWarn:
			if method := translator.Method(line); method != "" {
				common.LSPLogger.Warn("%s does not support %s", c.command, method)
			} else {
				common.LSPLogger.Warn("%s stderr: %s", c.command, line)
			}
			if hint := translator.Suggestion(c.command); hint != "" {
				common.LSPLogger.Warn("%s", hint)
			}
		case servererrors.LevelError:
			common.LSPLogger.Error("%s stderr: %s", c.command, line)
		default:
			common.LSPLogger.Debug("%s stderr: %s", c.command, line)
		}
	}
}
