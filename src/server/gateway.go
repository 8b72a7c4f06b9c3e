package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.lsp.dev/uri"

	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/constants"
	"editor-gateway/src/internal/errors"
	"editor-gateway/src/internal/registry"
	"editor-gateway/src/internal/types"
	"editor-gateway/src/server/documents"
	"editor-gateway/src/server/protocol"
	"editor-gateway/src/utils"
)

// Alias types from protocol package for callers that only import server.
type JSONRPCMessage = protocol.JSONRPCMessage
type RPCError = protocol.RPCError

// WebSocketGateway terminates editor WebSocket connections and runs the
// per-connection JSON-RPC session state machine. Each connection holds
// at most one live language server session.
type WebSocketGateway struct {
	factory  *Factory
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*connection]struct{}
}

// NewWebSocketGateway creates a gateway dispatching sessions through
// the given factory.
func NewWebSocketGateway(factory *Factory) *WebSocketGateway {
	return &WebSocketGateway{
		factory: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  constants.LSPResponseBufferSize,
			WriteBufferSize: constants.LSPResponseBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*connection]struct{}),
	}
}

// Handler returns the HTTP mux serving the WebSocket endpoint plus the
// health and language discovery endpoints.
func (g *WebSocketGateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", g.handleWebSocket)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/languages", g.handleLanguages)
	return mux
}

// ConnectionCount returns the number of open editor connections.
func (g *WebSocketGateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// CloseAll sends a close frame to every connected editor, tears down
// their sessions, and clears the connection registry.
func (g *WebSocketGateway) CloseAll() {
	g.mu.Lock()
	conns := make([]*connection, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.conns = make(map[*connection]struct{})
	g.mu.Unlock()

	for _, c := range conns {
		c.shutdown(websocket.CloseGoingAway, "gateway stopping")
	}
	g.factory.StopAll()
}

// handleWebSocket upgrades the HTTP request and runs the connection
// until either side closes.
func (g *WebSocketGateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		common.GatewayLogger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	conn := &connection{
		gateway:  g,
		ws:       ws,
		outbound: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}

	g.mu.Lock()
	g.conns[conn] = struct{}{}
	g.mu.Unlock()
	common.GatewayLogger.Info("Editor connected: remote=%s", ws.RemoteAddr())

	go conn.writePump()
	conn.readLoop()

	g.mu.Lock()
	delete(g.conns, conn)
	g.mu.Unlock()

	conn.teardown()
	common.GatewayLogger.Info("Editor disconnected: remote=%s", ws.RemoteAddr())
}

// handleHealth reports gateway liveness, open connections, and live
// server sessions.
func (g *WebSocketGateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":      "healthy",
		"connections": g.ConnectionCount(),
		"servers":     g.factory.ServerCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		common.GatewayLogger.Error("Failed to encode health response: %v", err)
	}
}

// handleLanguages returns the supported language names.
func (g *WebSocketGateway) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := map[string]interface{}{
		"languages": registry.GetLanguageNames(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		common.GatewayLogger.Error("Failed to encode languages response: %v", err)
	}
}

// connection is one editor WebSocket together with its session state:
// no session until a successful initialize, then at most one server.
type connection struct {
	gateway  *WebSocketGateway
	ws       *websocket.Conn
	outbound chan []byte

	mu       sync.Mutex
	serverID string
	server   LanguageServer

	closeOnce sync.Once
	closed    chan struct{}
}

// writePump drains the outbound queue to the socket. Either a write
// error or channel close ends the connection.
func (c *connection) writePump() {
	for {
		select {
		case data, ok := <-c.outbound:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				common.GatewayLogger.Debug("WebSocket write failed: %v", err)
				c.ws.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readLoop reads inbound frames and feeds the session state machine
// until the socket closes.
func (c *connection) readLoop() {
	defer c.closeOnceFn()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				common.GatewayLogger.Debug("WebSocket read ended: %v", err)
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *connection) closeOnceFn() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// shutdown closes the socket with a close frame and tears down the
// session.
func (c *connection) shutdown(code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.ws.WriteMessage(websocket.CloseMessage, message)
	c.ws.Close()
	c.closeOnceFn()
	c.teardown()
}

// teardown stops the session's language server so no child process
// outlives the connection. Safe to call more than once.
func (c *connection) teardown() {
	c.mu.Lock()
	serverID := c.serverID
	c.serverID = ""
	c.server = nil
	c.mu.Unlock()

	if serverID != "" {
		if err := c.gateway.factory.RemoveServer(serverID); err != nil {
			common.GatewayLogger.Warn("Error tearing down %s: %v", serverID, err)
		}
	}
}

// send queues a JSON-RPC message for delivery to the editor.
func (c *connection) send(msg protocol.JSONRPCMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		common.GatewayLogger.Error("Failed to marshal outbound message: %v", err)
		return
	}
	select {
	case c.outbound <- data:
	case <-c.closed:
	}
}

// session returns the connection's live server, if any.
func (c *connection) session() (string, LanguageServer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverID, c.server
}

// handleFrame validates one inbound frame and dispatches it. Malformed
// frames are answered with JSON-RPC errors, never by closing the
// connection.
func (c *connection) handleFrame(data []byte) {
	var msg protocol.JSONRPCMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// The id is undetectable, so the reply carries an explicit null.
		c.send(protocol.CreateResponse(json.RawMessage("null"), nil, protocol.NewParseError(nil)))
		return
	}
	if msg.JSONRPC != "2.0" {
		c.send(protocol.CreateResponse(msg.ID, nil, protocol.NewInvalidRequestError("jsonrpc must be \"2.0\"")))
		return
	}

	switch {
	case msg.Method == types.MethodInitialize:
		c.handleInitialize(msg)
	case msg.Method == types.MethodTextDocumentDidOpen:
		c.handleDidOpen(msg)
	case msg.ID == nil:
		c.handleNotification(msg)
	default:
		c.handleRequest(msg)
	}
}

// handleInitialize creates (or replaces) the connection's session. The
// declared language is corrected by detection when missing, the project
// root is resolved and rewritten into the params, and unsupported
// languages are rejected with the supported list.
func (c *connection) handleInitialize(msg protocol.JSONRPCMessage) {
	if msg.ID == nil {
		common.GatewayLogger.Warn("initialize without id dropped")
		return
	}

	params, _ := msg.Params.(map[string]interface{})
	if params == nil {
		params = map[string]interface{}{}
	}

	language, rootPath := extractInitializeParams(params)

	language, err := c.gateway.factory.NormalizeLanguage(language, rootPath)
	if err != nil {
		c.send(protocol.CreateUnifiedErrorResponse(msg.ID, err))
		return
	}
	if err := registry.ValidateLanguage(language); err != nil {
		c.send(protocol.CreateUnifiedErrorResponse(msg.ID, unsupportedLanguageError(language)))
		return
	}

	// Root resolution failure is downgraded silently: the server is
	// created at the original path instead.
	root, err := c.gateway.factory.FindProjectRoot(language, rootPath)
	if err != nil {
		common.GatewayLogger.Debug("Root resolution failed for %s, using %s: %v", language, rootPath, err)
		root = rootPath
	}
	rewriteInitializeParams(params, language, root)

	// A second initialize replaces the session; the prior server is
	// shut down first so its child process does not leak.
	if prevID, _ := c.session(); prevID != "" {
		common.GatewayLogger.Info("Re-initialize on connection, replacing session %s", prevID)
		c.teardown()
	}

	ctx, cancel := common.CreateContext(constants.GetInitializeTimeout(language))
	defer cancel()
	serverID, server, err := c.gateway.factory.CreateServerAtRoot(ctx, language, root, params)
	if err != nil {
		c.send(protocol.CreateResponse(msg.ID, nil, protocol.NewInternalError(err.Error())))
		return
	}

	server.SetNotificationHandler(func(method string, params interface{}) {
		c.send(protocol.CreateNotification(method, params))
	})

	c.mu.Lock()
	c.serverID = serverID
	c.server = server
	c.mu.Unlock()

	// Relay the server's initialize response verbatim, falling back to
	// the stored capability set when none was captured.
	var result interface{}
	if raw := server.InitializeResult(); len(raw) > 0 {
		result = raw
	} else {
		result = map[string]interface{}{
			"capabilities": server.Capabilities(),
			"serverInfo": map[string]interface{}{
				"name": fmt.Sprintf("editor-gateway (%s)", language),
			},
		}
	}
	c.send(protocol.CreateResponse(msg.ID, result, nil))
}

// extractInitializeParams pulls the declared language and root path out
// of initialize params, tolerating the absence of either.
func extractInitializeParams(params map[string]interface{}) (language, rootPath string) {
	if opts, ok := params["initializationOptions"].(map[string]interface{}); ok {
		language, _ = opts["language"].(string)
	}
	if rootURI, ok := params["rootUri"].(string); ok && rootURI != "" {
		rootPath = utils.URIToFilePath(rootURI)
	} else if rp, ok := params["rootPath"].(string); ok {
		rootPath = rp
	}
	return language, rootPath
}

// rewriteInitializeParams overwrites rootUri, rootPath, and the
// declared language with the gateway's resolved values.
func rewriteInitializeParams(params map[string]interface{}, language, root string) {
	params["rootUri"] = string(uri.File(root))
	params["rootPath"] = root

	opts, ok := params["initializationOptions"].(map[string]interface{})
	if !ok {
		opts = map[string]interface{}{}
		params["initializationOptions"] = opts
	}
	opts["language"] = language
}

// handleDidOpen corrects a generic or missing languageId by detection
// against the document path, creating the session lazily when none
// exists yet.
func (c *connection) handleDidOpen(msg protocol.JSONRPCMessage) {
	params, _ := msg.Params.(map[string]interface{})
	doc, _ := params["textDocument"].(map[string]interface{})
	if doc == nil {
		c.handleNotification(msg)
		return
	}

	languageID, _ := doc["languageId"].(string)
	docURI, _ := doc["uri"].(string)

	if isGenericLanguageID(languageID) && docURI != "" {
		// The extension decides without touching the disk; directory
		// inspection is the fallback for extensionless files.
		if detected := documents.DetectLanguageID(docURI); detected != "" {
			languageID = detected
			doc["languageId"] = detected
		} else if detected, err := c.gateway.factory.DetectLanguage(utils.URIToFilePath(docURI)); err == nil {
			languageID = detected
			doc["languageId"] = detected
		}
	}

	_, server := c.session()
	if server == nil && registry.IsLanguageSupported(languageID) && docURI != "" {
		path := utils.URIToFilePath(docURI)
		ctx, cancel := common.CreateContext(constants.GetInitializeTimeout(languageID))
		serverID, created, err := c.gateway.factory.CreateServer(ctx, languageID, path)
		cancel()
		if err != nil {
			common.GatewayLogger.Warn("Lazy session creation for %s failed: %v", languageID, err)
			return
		}
		created.SetNotificationHandler(func(method string, params interface{}) {
			c.send(protocol.CreateNotification(method, params))
		})
		c.mu.Lock()
		c.serverID = serverID
		c.server = created
		c.mu.Unlock()
		server = created
	}

	if server == nil {
		common.GatewayLogger.Debug("didOpen without session dropped: uri=%s", docURI)
		return
	}

	if err := server.SendNotification(context.Background(), msg.Method, msg.Params); err != nil {
		common.GatewayLogger.Warn("Failed to forward didOpen: %v", err)
	}
}

// isGenericLanguageID reports whether a declared languageId carries no
// usable information.
func isGenericLanguageID(languageID string) bool {
	switch languageID {
	case "", "unknown", "plaintext", "txt":
		return true
	}
	return !registry.IsLanguageSupported(languageID)
}

// handleNotification forwards a notification to the active session or
// silently drops it; notifications have no reply channel.
func (c *connection) handleNotification(msg protocol.JSONRPCMessage) {
	_, server := c.session()
	if server == nil {
		common.GatewayLogger.Debug("Notification without session dropped: method=%s", msg.Method)
		return
	}
	if err := server.SendNotification(context.Background(), msg.Method, msg.Params); err != nil {
		common.GatewayLogger.Warn("Failed to forward notification %s: %v", msg.Method, err)
	}
}

// handleRequest forwards a request to the active session and queues the
// response. Without a session, requests are answered with an internal
// "not initialized" error.
func (c *connection) handleRequest(msg protocol.JSONRPCMessage) {
	_, server := c.session()
	if server == nil {
		c.send(protocol.CreateResponse(msg.ID, nil, protocol.NewInternalError("not initialized: send initialize first")))
		return
	}

	// Responses may resolve out of order; the id is the correlation.
	go func() {
		if uri, err := documents.ExtractURI(msg.Params); err == nil {
			common.GatewayLogger.Debug("Forwarding %s: uri=%s", msg.Method, uri)
		}
		result, err := server.SendRequest(context.Background(), msg.Method, msg.Params)
		if err != nil {
			if errors.IsConnectionError(err) {
				common.GatewayLogger.Warn("Session died during %s: %v", msg.Method, err)
			}
			c.send(protocol.CreateUnifiedErrorResponse(msg.ID, err))
			return
		}
		c.send(protocol.CreateResponse(msg.ID, result, nil))
	}()
}
