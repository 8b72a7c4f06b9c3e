package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/constants"
)

// Lifecycle owns the process-wide start/stop state of the WebSocket
// listener, independent of any one connection. There is one instance
// per process, created by the composition root and passed to whoever
// needs it.
type Lifecycle struct {
	host    string
	port    int
	gateway *WebSocketGateway

	mu        sync.Mutex
	running   bool
	ownsPort  bool
	boundPort int
	server    *http.Server
	listener  net.Listener
}

// NewLifecycle creates a lifecycle serving the gateway on host:port.
// Zero values fall back to the defaults.
func NewLifecycle(host string, port int, gateway *WebSocketGateway) *Lifecycle {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = constants.DefaultGatewayPort
	}
	return &Lifecycle{host: host, port: port, gateway: gateway}
}

// Start brings the listener up. Calling Start while running reports
// success without creating a second listener. When the requested port
// is already occupied, another gateway instance is assumed to own it
// and Start succeeds without binding. Otherwise binding is retried on
// successive ports up to MaxPortAttempts before giving up.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		common.GatewayLogger.Debug("Gateway already running on port %d", l.boundPort)
		return nil
	}

	if portOccupied(l.host, l.port) {
		common.GatewayLogger.Info("Port %d occupied, assuming another gateway instance is serving", l.port)
		l.running = true
		l.ownsPort = false
		l.boundPort = l.port
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < constants.MaxPortAttempts; attempt++ {
		port := l.port + attempt
		addr := net.JoinHostPort(l.host, strconv.Itoa(port))

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			common.GatewayLogger.Warn("Failed to bind %s, trying next port: %v", addr, err)
			lastErr = err
			continue
		}

		server := &http.Server{
			Handler:           l.gateway.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
				common.GatewayLogger.Error("Gateway server error: %v", err)
			}
		}()

		l.listener = listener
		l.server = server
		l.running = true
		l.ownsPort = true
		l.boundPort = port
		common.GatewayLogger.Info("Gateway listening on %s", addr)
		return nil
	}

	l.running = false
	return fmt.Errorf("failed to bind any port in range %d-%d: %w",
		l.port, l.port+constants.MaxPortAttempts-1, lastErr)
}

// Stop closes every connected editor, shuts the listener down, and
// marks the lifecycle not running. Stopping a stopped lifecycle is a
// no-op.
func (l *Lifecycle) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	l.running = false

	if !l.ownsPort {
		return nil
	}

	l.gateway.CloseAll()

	var err error
	if l.server != nil {
		ctx, cancel := common.CreateContext(5 * time.Second)
		defer cancel()
		err = l.server.Shutdown(ctx)
		l.server = nil
	}
	l.listener = nil
	common.GatewayLogger.Info("Gateway stopped")
	return err
}

// ShutdownOnExit is the application-exit hook: the same stop sequence,
// run synchronously, so no child processes or sockets survive the
// process.
func (l *Lifecycle) ShutdownOnExit() {
	if err := l.Stop(); err != nil {
		common.GatewayLogger.Warn("Error during exit shutdown: %v", err)
	}
}

// IsRunning reports whether the lifecycle considers the gateway up.
func (l *Lifecycle) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Port returns the port the gateway is bound (or assumed bound) to, or
// 0 when not running.
func (l *Lifecycle) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return 0
	}
	return l.boundPort
}

// portOccupied probes for an existing listener on host:port.
func portOccupied(host string, port int) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
