package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/constants"
	"editor-gateway/src/internal/errors"
)

// JSON-RPC protocol constants
const (
	JSONRPCVersion = "2.0"
)

// JSON-RPC error codes
const (
	ParseError     = -32700 // Invalid JSON was received by the server
	InvalidRequest = -32600 // The JSON sent is not a valid Request object
	MethodNotFound = -32601 // The method does not exist / is not available
	InvalidParams  = -32602 // Invalid method parameter(s)
	InternalError  = -32603 // Internal JSON-RPC error
)

// JSONRPCMessage represents a JSON-RPC 2.0 message
type JSONRPCMessage struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method,omitempty"`
	Params  interface{} `json:"params,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONRPCProtocol defines the interface for JSON-RPC protocol handling
// over a language server's standard streams.
type JSONRPCProtocol interface {
	WriteMessage(writer io.Writer, msg JSONRPCMessage) error
	HandleMessage(data []byte, messageHandler MessageHandler) error
	HandleResponses(reader io.Reader, messageHandler MessageHandler, stopCh <-chan struct{}) error
}

// MessageHandler defines the interface for handling the three kinds of
// JSON-RPC traffic a server produces: requests (method and id),
// responses (id only), and notifications (method only).
type MessageHandler interface {
	HandleRequest(method string, id interface{}, params interface{}) error
	HandleResponse(id interface{}, result json.RawMessage, err *RPCError) error
	HandleNotification(method string, params interface{}) error
}

// LSPJSONRPCProtocol implements Content-Length framed JSON-RPC handling
// for language server communication.
type LSPJSONRPCProtocol struct {
	language string // Language identifier for logging context
}

// NewLSPJSONRPCProtocol creates a new JSON-RPC protocol handler
func NewLSPJSONRPCProtocol(language string) *LSPJSONRPCProtocol {
	return &LSPJSONRPCProtocol{
		language: language,
	}
}

// WriteMessage sends a JSON-RPC message with Content-Length header framing
func (p *LSPJSONRPCProtocol) WriteMessage(writer io.Writer, msg JSONRPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	content := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(data), data)

	_, err = writer.Write([]byte(content))
	return err
}

// HandleResponses reads framed messages from the server for the lifetime
// of the link: header lines until a blank line, a Content-Length body,
// then classification via HandleMessage. Malformed frames are logged and
// skipped. EOF ends the loop.
func (p *LSPJSONRPCProtocol) HandleResponses(reader io.Reader, messageHandler MessageHandler, stopCh <-chan struct{}) error {
	bufReader := bufio.NewReaderSize(reader, constants.LSPResponseBufferSize)

	for {
		select {
		case <-stopCh:
			return nil
		default:
		}

		var contentLength int

		for {
			line, err := bufReader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					// EOF is expected during shutdown
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				// Empty line indicates end of headers
				break
			}

			if strings.HasPrefix(line, "Content-Length:") {
				lengthStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
				length, err := strconv.Atoi(lengthStr)
				if err != nil {
					common.LSPLogger.Debug("Failed to parse Content-Length: %s", lengthStr)
					continue
				}
				contentLength = length
			}
		}

		if contentLength > 0 {
			body := make([]byte, contentLength)
			_, err := io.ReadFull(bufReader, body)
			if err != nil {
				return err
			}

			if err := p.HandleMessage(body, messageHandler); err != nil {
				common.LSPLogger.Error("Error handling message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// HandleMessage classifies a single JSON-RPC message and routes it to the
// appropriate handler. A method with an id is a server-initiated request,
// a method without an id is a notification, and an id without a method is
// a response to one of our requests.
func (p *LSPJSONRPCProtocol) HandleMessage(data []byte, messageHandler MessageHandler) error {
	var msg JSONRPCMessage
	err := json.Unmarshal(data, &msg)
	if err != nil {
		common.LSPLogger.Error("Failed to unmarshal JSON from %s: %v", p.language, err)
		return err
	}

	if msg.Method != "" {
		if msg.ID != nil {
			common.LSPLogger.Debug("Received server request: method=%s, id=%v from %s", msg.Method, msg.ID, p.language)
			return messageHandler.HandleRequest(msg.Method, msg.ID, msg.Params)
		}
		common.LSPLogger.Debug("Received server notification: method=%s from %s", msg.Method, p.language)
		return messageHandler.HandleNotification(msg.Method, msg.Params)
	}

	if msg.ID != nil {
		var result json.RawMessage
		var rpcError *RPCError

		if msg.Error != nil {
			rpcError = msg.Error
			common.LSPLogger.Warn("LSP response contains error: id=%v, code=%d", msg.ID, rpcError.Code)
		} else if msg.Result != nil {
			result, _ = json.Marshal(msg.Result)
		}

		return messageHandler.HandleResponse(msg.ID, result, rpcError)
	}

	common.LSPLogger.Warn("Received malformed message (no ID and no method) from %s", p.language)
	return fmt.Errorf("malformed JSON-RPC message: no ID and no method")
}

// CreateMessage creates a JSON-RPC request message
func CreateMessage(method string, id interface{}, params interface{}) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// CreateNotification creates a JSON-RPC notification (no ID)
func CreateNotification(method string, params interface{}) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
}

// CreateResponse creates a JSON-RPC response message
func CreateResponse(id interface{}, result interface{}, err *RPCError) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
		Error:   err,
	}
}

// Helper functions for creating error responses

// NewRPCError creates a new RPCError with the specified code and message
func NewRPCError(code int, message string, data interface{}) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewParseError creates a parse error (-32700)
func NewParseError(data interface{}) *RPCError {
	return NewRPCError(ParseError, "Parse error", data)
}

// NewInvalidRequestError creates an invalid request error (-32600)
func NewInvalidRequestError(data interface{}) *RPCError {
	return NewRPCError(InvalidRequest, "Invalid Request", data)
}

// NewMethodNotFoundError creates a method not found error (-32601)
func NewMethodNotFoundError(data interface{}) *RPCError {
	return NewRPCError(MethodNotFound, "Method not found", data)
}

// NewInvalidParamsError creates an invalid params error (-32602)
func NewInvalidParamsError(data interface{}) *RPCError {
	return NewRPCError(InvalidParams, "Invalid params", data)
}

// NewInternalError creates an internal error (-32603)
func NewInternalError(data interface{}) *RPCError {
	return NewRPCError(InternalError, "Internal error", data)
}

// NewUnifiedRPCError creates an RPCError from a unified error type,
// mapping each to its JSON-RPC code.
func NewUnifiedRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}

	if lspErr, ok := err.(*errors.LSPError); ok {
		return &RPCError{
			Code:    lspErr.Code,
			Message: lspErr.Message,
			Data:    lspErr.Data,
		}
	}

	if valErr, ok := err.(*errors.ValidationError); ok {
		return NewRPCError(InvalidParams, valErr.Error(), map[string]string{
			"parameter": valErr.Parameter,
		})
	}

	if connErr, ok := err.(*errors.ConnectionError); ok {
		return NewRPCError(errors.ConnectionFailure, connErr.Error(), map[string]string{
			"language": connErr.Language,
			"type":     connErr.Type,
		})
	}

	if timeoutErr, ok := err.(*errors.TimeoutError); ok {
		return NewRPCError(errors.OperationTimeout, timeoutErr.Error(), map[string]string{
			"operation": timeoutErr.Operation,
			"language":  timeoutErr.Language,
		})
	}

	if methodErr, ok := err.(*errors.MethodNotSupportedError); ok {
		return NewRPCError(MethodNotFound, methodErr.Error(), map[string]interface{}{
			"method":    methodErr.Method,
			"supported": methodErr.Supported,
		})
	}

	if procErr, ok := err.(*errors.ProcessError); ok {
		var code int
		switch procErr.Type {
		case "start":
			code = errors.ProcessStartFailure
		case "stop":
			code = errors.ProcessStopFailure
		default:
			code = errors.CommunicationError
		}
		return NewRPCError(code, procErr.Error(), map[string]string{
			"language": procErr.Language,
			"command":  procErr.Command,
			"type":     procErr.Type,
		})
	}

	return NewInternalError(err.Error())
}

// CreateUnifiedErrorResponse creates a JSON-RPC error response from a unified error
func CreateUnifiedErrorResponse(id interface{}, err error) JSONRPCMessage {
	return CreateResponse(id, nil, NewUnifiedRPCError(err))
}
