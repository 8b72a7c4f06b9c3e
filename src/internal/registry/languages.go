package registry

import (
	"fmt"
	"sort"
	"time"
)

// LanguageInfo contains comprehensive information about a supported language
type LanguageInfo struct {
	Name           string   // Language name (rust, go, python, typescript, javascript)
	Extensions     []string // File extensions for this language
	DefaultCommand string   // Default language server command
	DefaultArgs    []string // Default arguments for the language server
	FallbackChain  []string // Alternative commands tried when the default is absent from PATH

	// ProjectMarkers are the manifest files whose presence identifies a
	// project root for this language.
	ProjectMarkers []string

	// Configuration fields
	InitializationOptions map[string]interface{} // LSP initialization options
	RequestTimeout        time.Duration          // Request timeout duration
	InitializeTimeout     time.Duration          // Initialize timeout duration
	EnvironmentVars       map[string]string      // Environment variables to set
}

// Global language registry containing all supported languages
var languageRegistry = map[string]LanguageInfo{
	"rust": {
		Name:           "rust",
		Extensions:     []string{".rs"},
		DefaultCommand: "rust-analyzer",
		DefaultArgs:    []string{},
		ProjectMarkers: []string{"Cargo.toml"},
		InitializationOptions: map[string]interface{}{
			"cargo": map[string]interface{}{
				"features":          []string{},
				"allFeatures":       false,
				"noDefaultFeatures": false,
			},
			"checkOnSave": map[string]interface{}{
				"enable":  true,
				"command": "check",
			},
			"procMacro": map[string]interface{}{
				"enable": true,
			},
		},
		RequestTimeout:    30 * time.Second,
		InitializeTimeout: 30 * time.Second,
		EnvironmentVars: map[string]string{
			"CARGO_MANIFEST_DIR": "${workingDir}",
		},
	},
	"go": {
		Name:           "go",
		Extensions:     []string{".go"},
		DefaultCommand: "gopls",
		DefaultArgs:    []string{"serve"},
		ProjectMarkers: []string{"go.mod", "go.sum"},
		InitializationOptions: map[string]interface{}{
			"usePlaceholders":    false,
			"completeUnimported": true,
		},
		RequestTimeout:    15 * time.Second,
		InitializeTimeout: 15 * time.Second,
		EnvironmentVars:   map[string]string{},
	},
	"python": {
		Name:           "python",
		Extensions:     []string{".py", ".pyi"},
		DefaultCommand: "pyright-langserver",
		DefaultArgs:    []string{"--stdio"},
		FallbackChain:  []string{"pylsp", "jedi-language-server"},
		ProjectMarkers: []string{"pyproject.toml", "setup.py", "requirements.txt"},
		InitializationOptions: map[string]interface{}{
			"usePlaceholders":    false,
			"completeUnimported": true,
		},
		RequestTimeout:    30 * time.Second,
		InitializeTimeout: 30 * time.Second,
		EnvironmentVars:   map[string]string{},
	},
	"typescript": {
		Name:           "typescript",
		Extensions:     []string{".ts", ".tsx", ".d.ts"},
		DefaultCommand: "typescript-language-server",
		DefaultArgs:    []string{"--stdio"},
		ProjectMarkers: []string{"tsconfig.json", "package.json"},
		InitializationOptions: map[string]interface{}{
			"usePlaceholders":    false,
			"completeUnimported": true,
		},
		RequestTimeout:    15 * time.Second,
		InitializeTimeout: 30 * time.Second,
		EnvironmentVars:   map[string]string{},
	},
	"javascript": {
		Name:           "javascript",
		Extensions:     []string{".js", ".jsx", ".mjs"},
		DefaultCommand: "typescript-language-server",
		DefaultArgs:    []string{"--stdio"},
		ProjectMarkers: []string{"package.json", "jsconfig.json"},
		InitializationOptions: map[string]interface{}{
			"usePlaceholders":    false,
			"completeUnimported": true,
		},
		RequestTimeout:    15 * time.Second,
		InitializeTimeout: 30 * time.Second,
		EnvironmentVars:   map[string]string{},
	},
}

// Extension to language mapping for efficient lookups
var extensionToLanguage = map[string]string{
	".rs":   "rust",
	".go":   "go",
	".py":   "python",
	".pyi":  "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".d.ts": "typescript",
}

// Extensions the system recognizes without having a language server for
// them. Documents with these extensions get a correct languageId, but
// requests for their language fail with the supported list.
var recognizedOnlyExtensions = map[string]string{
	".c":    "cpp",
	".h":    "cpp",
	".cc":   "cpp",
	".hh":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".java": "java",
	".kt":   "kotlin",
	".rb":   "ruby",
	".php":  "php",
	".sh":   "bash",
	".md":   "markdown",
	".html": "html",
	".css":  "css",
	".sql":  "sql",
	".xml":  "xml",
}

// Marker detection priority when inspecting a directory with no declared
// language. Rust and Go manifests are unambiguous so they win over the
// shared package.json.
var markerDetectionOrder = []struct {
	Marker   string
	Language string
}{
	{"Cargo.toml", "rust"},
	{"go.mod", "go"},
	{"tsconfig.json", "typescript"},
	{"package.json", "javascript"},
	{"pyproject.toml", "python"},
	{"setup.py", "python"},
	{"requirements.txt", "python"},
}

// Allowed commands for security validation
var allowedCommands = []string{
	// Language servers
	"rust-analyzer",
	"rust-analyzer.exe",
	"rust-analyzer.cmd",
	"gopls",
	"gopls.exe",
	"pyright-langserver",
	"pyright-langserver.cmd",
	"pylsp",
	"pylsp.exe",
	"jedi-language-server",
	"typescript-language-server",
	"typescript-language-server.cmd",
	"tsserver",
	// Runtime tools the servers may shell out through
	"node",
	"node.exe",
	"python",
	"python.exe",
	"python3",
	"python3.exe",
	"cargo",
	"cargo.exe",
	"rustc",
	"rustc.exe",
	"go",
	"go.exe",
	"npm",
	"npm.cmd",
	"npx",
	"npx.cmd",
}

// GetSupportedLanguages returns all supported language information
func GetSupportedLanguages() []LanguageInfo {
	languages := make([]LanguageInfo, 0, len(languageRegistry))
	for _, lang := range languageRegistry {
		languages = append(languages, lang)
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i].Name < languages[j].Name })
	return languages
}

// GetLanguageByName returns language information by name
func GetLanguageByName(name string) (*LanguageInfo, bool) {
	lang, exists := languageRegistry[name]
	if !exists {
		return nil, false
	}
	return &lang, true
}

// GetLanguageByExtension returns language information by file extension
func GetLanguageByExtension(ext string) (*LanguageInfo, bool) {
	langName, exists := extensionToLanguage[ext]
	if !exists {
		return nil, false
	}

	lang, exists := languageRegistry[langName]
	if !exists {
		return nil, false
	}
	return &lang, true
}

// LanguageForExtension returns the supported language name mapped to a
// file extension, or "" when no server exists for it.
func LanguageForExtension(ext string) string {
	return extensionToLanguage[ext]
}

// RecognizedLanguageForExtension resolves an extension to a language
// name across both supported languages and recognized-only ecosystems.
// Returns "" for unknown extensions.
func RecognizedLanguageForExtension(ext string) string {
	if lang, ok := extensionToLanguage[ext]; ok {
		return lang
	}
	return recognizedOnlyExtensions[ext]
}

// GetAllowedCommands returns all allowed commands for security validation
func GetAllowedCommands() []string {
	commands := make([]string, len(allowedCommands))
	copy(commands, allowedCommands)
	return commands
}

// GetLanguageNames returns the sorted list of supported language names
func GetLanguageNames() []string {
	names := make([]string, 0, len(languageRegistry))
	for name := range languageRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsLanguageSupported checks if a language is supported
func IsLanguageSupported(name string) bool {
	_, exists := languageRegistry[name]
	return exists
}

// IsExtensionSupported checks if a file extension is supported
func IsExtensionSupported(ext string) bool {
	_, exists := extensionToLanguage[ext]
	return exists
}

// GetProjectMarkers returns the marker files identifying a project root
// for the named language. Unknown languages get the union of every
// registered marker, in detection priority order.
func GetProjectMarkers(name string) []string {
	if lang, ok := languageRegistry[name]; ok {
		markers := make([]string, len(lang.ProjectMarkers))
		copy(markers, lang.ProjectMarkers)
		return markers
	}
	markers := make([]string, 0, len(markerDetectionOrder))
	seen := make(map[string]bool)
	for _, entry := range markerDetectionOrder {
		if !seen[entry.Marker] {
			markers = append(markers, entry.Marker)
			seen[entry.Marker] = true
		}
	}
	return markers
}

// MarkerDetectionOrder returns (marker, language) pairs in the priority
// order used for directory-based language detection.
func MarkerDetectionOrder() []struct {
	Marker   string
	Language string
} {
	out := make([]struct {
		Marker   string
		Language string
	}, len(markerDetectionOrder))
	copy(out, markerDetectionOrder)
	return out
}

// ValidateLanguage validates if the language is supported and returns error if not
func ValidateLanguage(name string) error {
	if !IsLanguageSupported(name) {
		return fmt.Errorf("unsupported language: %s (supported: %v)", name, GetLanguageNames())
	}
	return nil
}

// Helper methods for accessing language configurations

// GetInitOptions returns the initialization options for this language
func (l *LanguageInfo) GetInitOptions() map[string]interface{} {
	if l.InitializationOptions == nil {
		return map[string]interface{}{}
	}
	// Return a copy to prevent modification
	result := make(map[string]interface{})
	for k, v := range l.InitializationOptions {
		result[k] = v
	}
	return result
}

// GetTimeouts returns the request and initialize timeout durations for this language
func (l *LanguageInfo) GetTimeouts() (requestTimeout time.Duration, initializeTimeout time.Duration) {
	return l.RequestTimeout, l.InitializeTimeout
}

// GetEnvironmentWithWorkingDir returns environment variables with
// ${workingDir} substituted
func (l *LanguageInfo) GetEnvironmentWithWorkingDir(workingDir string) map[string]string {
	result := make(map[string]string)
	for k, v := range l.EnvironmentVars {
		if v == "${workingDir}" && workingDir != "" {
			result[k] = workingDir
		} else {
			result[k] = v
		}
	}
	return result
}
