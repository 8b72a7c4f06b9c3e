// Package documents tracks open document state for a language server
// session: full text plus the latest diagnostics per URI.
package documents

import (
	"fmt"
	"strings"
	"sync"

	"go.lsp.dev/protocol"

	"editor-gateway/src/internal/registry"
	"editor-gateway/src/utils"
	"editor-gateway/src/utils/jsonutil"
)

// DocumentData holds the tracked state of one open document.
type DocumentData struct {
	URI         string
	LanguageID  string
	Version     int
	Content     string
	Diagnostics []protocol.Diagnostic
}

// Store is a concurrent map of open documents keyed by URI. Entries are
// created on didOpen, mutated on didChange and diagnostics notifications,
// and removed on didClose.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*DocumentData
}

// NewStore creates an empty document store
func NewStore() *Store {
	return &Store{docs: make(map[string]*DocumentData)}
}

// Open records a newly opened document.
func (s *Store) Open(uri, languageID string, version int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &DocumentData{
		URI:        uri,
		LanguageID: languageID,
		Version:    version,
		Content:    text,
	}
}

// ApplyChanges replaces the document text with the last entry of a
// didChange contentChanges list. Full-document sync is assumed;
// incremental diffs are not modeled. Changes for unopened documents are
// ignored.
func (s *Store) ApplyChanges(uri string, version int, changes []interface{}) {
	if len(changes) == 0 {
		return
	}
	last, ok := changes[len(changes)-1].(map[string]interface{})
	if !ok {
		return
	}
	text, ok := last["text"].(string)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, exists := s.docs[uri]; exists {
		doc.Content = text
		doc.Version = version
	}
}

// SetSavedText records the text a didSave notification carries when the
// client includes it. Saves without text leave the content alone.
func (s *Store) SetSavedText(uri, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, exists := s.docs[uri]; exists {
		doc.Content = text
	}
}

// SetDiagnostics stores the latest diagnostics for a URI, creating the
// entry when the server publishes for a document we have not seen open.
func (s *Store) SetDiagnostics(uri string, diagnostics []protocol.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, exists := s.docs[uri]
	if !exists {
		doc = &DocumentData{URI: uri}
		s.docs[uri] = doc
	}
	doc.Diagnostics = diagnostics
}

// Close removes the document entry for a URI.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Get returns a copy of the tracked state for a URI.
func (s *Store) Get(uri string) (DocumentData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, exists := s.docs[uri]
	if !exists {
		return DocumentData{}, false
	}
	return *doc, true
}

// Count returns the number of tracked documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Clear drops every tracked document.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]*DocumentData)
}

// ParseDiagnostics converts raw publishDiagnostics params into the URI
// and typed diagnostics list.
func ParseDiagnostics(params interface{}) (string, []protocol.Diagnostic, error) {
	parsed, err := jsonutil.Remarshal[protocol.PublishDiagnosticsParams](params)
	if err != nil {
		return "", nil, fmt.Errorf("invalid publishDiagnostics params: %w", err)
	}
	return string(parsed.URI), parsed.Diagnostics, nil
}

// DetectLanguageID resolves the LSP languageId for a document URI from
// its file extension, or "" when unrecognized. Recognized-only
// ecosystems yield their languageId even though no server exists for
// them.
func DetectLanguageID(uri string) string {
	path := utils.URIToFilePath(uri)
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return registry.RecognizedLanguageForExtension(strings.ToLower(path[idx:]))
}

// ExtractURI extracts the file URI from request parameters, accepting
// both typed protocol structs and untyped maps off the wire.
func ExtractURI(params interface{}) (string, error) {
	if params == nil {
		return "", fmt.Errorf("no parameters provided")
	}

	switch p := params.(type) {
	case *protocol.DefinitionParams:
		return string(p.TextDocument.URI), nil
	case protocol.DefinitionParams:
		return string(p.TextDocument.URI), nil
	case *protocol.ReferenceParams:
		return string(p.TextDocument.URI), nil
	case protocol.ReferenceParams:
		return string(p.TextDocument.URI), nil
	case *protocol.HoverParams:
		return string(p.TextDocument.URI), nil
	case protocol.HoverParams:
		return string(p.TextDocument.URI), nil
	case *protocol.CompletionParams:
		return string(p.TextDocument.URI), nil
	case protocol.CompletionParams:
		return string(p.TextDocument.URI), nil
	case *protocol.DocumentFormattingParams:
		return string(p.TextDocument.URI), nil
	case protocol.DocumentFormattingParams:
		return string(p.TextDocument.URI), nil
	}

	paramsMap, ok := params.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unsupported parameter type %T", params)
	}

	if textDoc, ok := paramsMap["textDocument"].(map[string]interface{}); ok {
		if uri, ok := textDoc["uri"].(string); ok {
			return uri, nil
		}
	}

	if uri, ok := paramsMap["uri"].(string); ok {
		return uri, nil
	}

	return "", fmt.Errorf("no URI found in parameters")
}
