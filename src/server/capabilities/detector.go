// Package capabilities parses and represents language server capability
// sets from the initialize handshake.
package capabilities

import (
	"encoding/json"
	"fmt"

	"editor-gateway/src/internal/types"
)

// ServerCapabilities mirrors the capabilities object of an initialize
// response. Provider fields are interface{} because servers report them
// as booleans or as option objects interchangeably.
type ServerCapabilities struct {
	TextDocumentSync           interface{} `json:"textDocumentSync,omitempty"`
	CompletionProvider         interface{} `json:"completionProvider,omitempty"`
	HoverProvider              interface{} `json:"hoverProvider,omitempty"`
	DefinitionProvider         interface{} `json:"definitionProvider,omitempty"`
	ReferencesProvider         interface{} `json:"referencesProvider,omitempty"`
	DocumentFormattingProvider interface{} `json:"documentFormattingProvider,omitempty"`
	RenameProvider             interface{} `json:"renameProvider,omitempty"`
}

// Text document sync kinds per the LSP specification.
const (
	SyncNone        = 0
	SyncFull        = 1
	SyncIncremental = 2
)

type CapabilityDetector interface {
	ParseCapabilities(response json.RawMessage) (ServerCapabilities, error)
	SupportsMethod(caps ServerCapabilities, method string) bool
}

type LSPCapabilityDetector struct{}

func NewLSPCapabilityDetector() *LSPCapabilityDetector {
	return &LSPCapabilityDetector{}
}

// DefaultCapabilities is the conservative capability set assumed when an
// initialize response cannot be parsed. Sessions keep working with the
// common feature set instead of failing the handshake.
func DefaultCapabilities() ServerCapabilities {
	return ServerCapabilities{
		TextDocumentSync:           SyncIncremental,
		CompletionProvider:         true,
		HoverProvider:              true,
		DefinitionProvider:         true,
		ReferencesProvider:         true,
		DocumentFormattingProvider: true,
		RenameProvider:             true,
	}
}

// ParseCapabilities extracts the capability set from a raw initialize
// response.
func (d *LSPCapabilityDetector) ParseCapabilities(response json.RawMessage) (ServerCapabilities, error) {
	var initResponse struct {
		Capabilities ServerCapabilities `json:"capabilities"`
	}

	if err := json.Unmarshal(response, &initResponse); err != nil {
		return ServerCapabilities{}, fmt.Errorf("failed to unmarshal initialize response: %w", err)
	}

	return initResponse.Capabilities, nil
}

// SupportsMethod reports whether the capability set covers a method.
// Lifecycle and document sync methods are always supported; methods with
// no matching capability field are forwarded optimistically.
func (d *LSPCapabilityDetector) SupportsMethod(caps ServerCapabilities, method string) bool {
	switch method {
	case types.MethodInitialize, types.MethodInitialized, types.MethodShutdown, types.MethodExit:
		return true
	case types.MethodTextDocumentDidOpen, types.MethodTextDocumentDidChange,
		types.MethodTextDocumentDidSave, types.MethodTextDocumentDidClose:
		return true
	case types.MethodTextDocumentCompletion:
		return d.isCapabilitySupported(caps.CompletionProvider)
	case types.MethodTextDocumentHover:
		return d.isCapabilitySupported(caps.HoverProvider)
	case types.MethodTextDocumentDefinition:
		return d.isCapabilitySupported(caps.DefinitionProvider)
	case types.MethodTextDocumentReferences:
		return d.isCapabilitySupported(caps.ReferencesProvider)
	case types.MethodTextDocumentFormatting:
		return d.isCapabilitySupported(caps.DocumentFormattingProvider)
	case types.MethodTextDocumentRename:
		return d.isCapabilitySupported(caps.RenameProvider)
	default:
		return true
	}
}

func (d *LSPCapabilityDetector) isCapabilitySupported(capability interface{}) bool {
	if capability == nil {
		return false
	}

	if boolVal, ok := capability.(bool); ok {
		return boolVal
	}

	// Some servers report capabilities as option objects; a present
	// object means supported.
	if mapVal, ok := capability.(map[string]interface{}); ok {
		return len(mapVal) > 0
	}

	return true
}
