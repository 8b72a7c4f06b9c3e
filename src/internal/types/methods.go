package types

// LSP protocol lifecycle methods
const (
	// MethodInitialize is sent as the first request from client to server
	MethodInitialize = "initialize"
	// MethodInitialized is sent from client to server after the initialize response
	MethodInitialized = "initialized"
	// MethodShutdown is sent from client to server to shut down the server
	MethodShutdown = "shutdown"
	// MethodExit is sent from client to server to exit the server process
	MethodExit = "exit"
)

// LSP document synchronization methods
const (
	MethodTextDocumentDidOpen   = "textDocument/didOpen"
	MethodTextDocumentDidChange = "textDocument/didChange"
	MethodTextDocumentDidSave   = "textDocument/didSave"
	MethodTextDocumentDidClose  = "textDocument/didClose"
)

// LSP language feature methods
const (
	MethodTextDocumentCompletion = "textDocument/completion"
	MethodTextDocumentHover      = "textDocument/hover"
	MethodTextDocumentDefinition = "textDocument/definition"
	MethodTextDocumentReferences = "textDocument/references"
	MethodTextDocumentFormatting = "textDocument/formatting"
	MethodTextDocumentRename     = "textDocument/rename"
)

// LSP server-to-client notifications and requests
const (
	MethodPublishDiagnostics         = "textDocument/publishDiagnostics"
	MethodWorkspaceConfiguration     = "workspace/configuration"
	MethodClientRegisterCapability   = "client/registerCapability"
	MethodClientUnregisterCapability = "client/unregisterCapability"
	MethodWindowWorkDoneProgress     = "window/workDoneProgress/create"
	MethodWindowShowMessage          = "window/showMessage"
	MethodWindowLogMessage           = "window/logMessage"
)
