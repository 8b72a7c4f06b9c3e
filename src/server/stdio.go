package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/types"
	"editor-gateway/src/server/protocol"
)

// StdioBridge attaches one language server directly to a pair of
// Content-Length framed streams, typically the process's own stdin and
// stdout. The active-server registry prevents a second bridge from
// spawning a server for a language that already has one.
type StdioBridge struct {
	factory *Factory
	active  *ActiveServerRegistry
	in      io.Reader
	out     io.Writer

	proto   protocol.JSONRPCProtocol
	writeMu sync.Mutex

	mu       sync.Mutex
	server   LanguageServer
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewStdioBridge creates a bridge reading client frames from in and
// writing replies to out.
func NewStdioBridge(factory *Factory, active *ActiveServerRegistry, in io.Reader, out io.Writer) *StdioBridge {
	return &StdioBridge{
		factory: factory,
		active:  active,
		in:      in,
		out:     out,
		proto:   protocol.NewLSPJSONRPCProtocol("stdio"),
		stopCh:  make(chan struct{}),
	}
}

// Run spawns a server for the language rooted at path and relays frames
// until the input stream ends, the context is canceled, or the client
// sends exit.
func (b *StdioBridge) Run(ctx context.Context, language, path string) error {
	language, err := b.factory.NormalizeLanguage(language, path)
	if err != nil {
		return err
	}

	if !b.active.MarkRunning(language) {
		return fmt.Errorf("a %s server is already running", language)
	}
	defer b.active.MarkStopped(language)

	serverID, server, err := b.factory.CreateServer(ctx, language, path)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.factory.RemoveServer(serverID); err != nil {
			common.GatewayLogger.Warn("Error stopping %s: %v", serverID, err)
		}
	}()

	b.mu.Lock()
	b.server = server
	b.mu.Unlock()

	server.SetNotificationHandler(func(method string, params interface{}) {
		b.write(protocol.CreateNotification(method, params))
	})

	go func() {
		select {
		case <-ctx.Done():
			b.stop()
		case <-b.stopCh:
		}
	}()

	common.GatewayLogger.Info("Stdio session started: language=%s, server=%s", language, serverID)
	return b.proto.HandleResponses(b.in, b, b.stopCh)
}

func (b *StdioBridge) stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

func (b *StdioBridge) write(msg protocol.JSONRPCMessage) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.proto.WriteMessage(b.out, msg); err != nil {
		common.GatewayLogger.Warn("Stdio write failed: %v", err)
	}
}

func (b *StdioBridge) session() LanguageServer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.server
}

// HandleRequest serves a client request. The server was initialized at
// bridge start, so initialize is answered locally from the stored
// capabilities; everything else is forwarded.
func (b *StdioBridge) HandleRequest(method string, id interface{}, params interface{}) error {
	server := b.session()
	if server == nil {
		b.write(protocol.CreateResponse(id, nil, protocol.NewInternalError("no active server")))
		return nil
	}

	switch method {
	case types.MethodInitialize:
		result := map[string]interface{}{
			"capabilities": server.Capabilities(),
		}
		b.write(protocol.CreateResponse(id, result, nil))
	case types.MethodShutdown:
		b.write(protocol.CreateResponse(id, nil, nil))
	default:
		go func() {
			result, err := server.SendRequest(context.Background(), method, params)
			if err != nil {
				b.write(protocol.CreateUnifiedErrorResponse(id, err))
				return
			}
			b.write(protocol.CreateResponse(id, result, nil))
		}()
	}
	return nil
}

// HandleResponse logs and drops client responses; the adapter answers
// server-initiated requests itself, so nothing waits on these.
func (b *StdioBridge) HandleResponse(id interface{}, result json.RawMessage, rpcErr *protocol.RPCError) error {
	common.GatewayLogger.Debug("Unexpected client response dropped: id=%v", id)
	return nil
}

// HandleNotification forwards client notifications. exit ends the
// session.
func (b *StdioBridge) HandleNotification(method string, params interface{}) error {
	if method == types.MethodExit {
		b.stop()
		return nil
	}

	server := b.session()
	if server == nil {
		return nil
	}
	if method == types.MethodInitialized {
		// The adapter already completed the handshake.
		return nil
	}
	if err := server.SendNotification(context.Background(), method, params); err != nil {
		common.GatewayLogger.Warn("Failed to forward %s: %v", method, err)
	}
	return nil
}
