package capabilities

import (
	"encoding/json"
	"testing"

	"editor-gateway/src/internal/types"
)

func TestLSPCapabilityDetector_ParseAndSupports_Standard(t *testing.T) {
	det := NewLSPCapabilityDetector()
	init := map[string]interface{}{"capabilities": map[string]interface{}{
		"textDocumentSync":   2,
		"completionProvider": map[string]interface{}{"triggerCharacters": []string{"."}},
		"hoverProvider":      true,
		"definitionProvider": true,
		"referencesProvider": false,
	}}
	raw, _ := json.Marshal(init)
	caps, err := det.ParseCapabilities(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !det.SupportsMethod(caps, types.MethodTextDocumentCompletion) {
		t.Fatalf("completion supported when reported as object")
	}
	if !det.SupportsMethod(caps, types.MethodTextDocumentHover) {
		t.Fatalf("hover supported")
	}
	if !det.SupportsMethod(caps, types.MethodTextDocumentDefinition) {
		t.Fatalf("definition supported")
	}
	if det.SupportsMethod(caps, types.MethodTextDocumentReferences) {
		t.Fatalf("references explicitly unsupported")
	}
	if det.SupportsMethod(caps, types.MethodTextDocumentFormatting) {
		t.Fatalf("absent formatting capability must read as unsupported")
	}
}

func TestLSPCapabilityDetector_ParseFailure(t *testing.T) {
	det := NewLSPCapabilityDetector()
	if _, err := det.ParseCapabilities(json.RawMessage(`{broken`)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultCapabilitiesEnableCoreFeatures(t *testing.T) {
	det := NewLSPCapabilityDetector()
	caps := DefaultCapabilities()

	methods := []string{
		types.MethodTextDocumentCompletion,
		types.MethodTextDocumentHover,
		types.MethodTextDocumentDefinition,
		types.MethodTextDocumentReferences,
		types.MethodTextDocumentFormatting,
		types.MethodTextDocumentRename,
	}
	for _, m := range methods {
		if !det.SupportsMethod(caps, m) {
			t.Fatalf("default capabilities should support %s", m)
		}
	}
	if caps.TextDocumentSync != SyncIncremental {
		t.Fatalf("default sync should be incremental, got %v", caps.TextDocumentSync)
	}
}

func TestLifecycleMethodsAlwaysSupported(t *testing.T) {
	det := NewLSPCapabilityDetector()
	var empty ServerCapabilities

	for _, m := range []string{types.MethodInitialize, types.MethodInitialized, types.MethodShutdown, types.MethodExit, types.MethodTextDocumentDidOpen, types.MethodTextDocumentDidClose} {
		if !det.SupportsMethod(empty, m) {
			t.Fatalf("lifecycle method %s must always be supported", m)
		}
	}
}

func TestUnknownMethodsForwardedOptimistically(t *testing.T) {
	det := NewLSPCapabilityDetector()
	var empty ServerCapabilities
	if !det.SupportsMethod(empty, "textDocument/semanticTokens/full") {
		t.Fatal("methods with no capability mapping should be forwarded")
	}
}
