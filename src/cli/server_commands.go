package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/registry"
	"editor-gateway/src/server"
)

// RunServer starts the WebSocket gateway and blocks until an interrupt
// signal arrives.
func RunServer(configPath, host string, port int) error {
	cfg := LoadConfigWithFallback(configPath)
	if host == "" {
		host = cfg.Host
	}
	if port == 0 {
		port = cfg.Port
	}

	factory := server.NewFactory(cfg)
	gateway := server.NewWebSocketGateway(factory)
	lifecycle := server.NewLifecycle(host, port, gateway)

	if err := lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	common.CLILogger.Info("Editor gateway started on %s:%d", host, lifecycle.Port())
	common.CLILogger.Info("Supported languages: %s", strings.Join(registry.GetLanguageNames(), ", "))
	common.CLILogger.Info("WebSocket endpoint: ws://%s:%d/", host, lifecycle.Port())
	common.CLILogger.Info("Health check endpoint: http://%s:%d/health", host, lifecycle.Port())

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	common.CLILogger.Info("Received shutdown signal, stopping gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan error, 1)
	go func() {
		lifecycle.ShutdownOnExit()
		done <- nil
	}()

	select {
	case <-done:
		common.CLILogger.Info("Gateway stopped successfully")
	case <-shutdownCtx.Done():
		common.CLILogger.Warn("Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}

	return nil
}

// RunStdio attaches a single language server to the process's standard
// streams and blocks until the session ends.
func RunStdio(configPath, language, path string) error {
	if !common.FileExists(path) {
		return fmt.Errorf("workspace path not found: %s", path)
	}

	cfg := LoadConfigWithFallback(configPath)

	factory := server.NewFactory(cfg)
	active := server.NewActiveServerRegistry()
	bridge := server.NewStdioBridge(factory, active, os.Stdin, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	return bridge.Run(ctx, language, path)
}

// ShowStatus displays the configured language servers and whether their
// commands resolve on PATH.
func ShowStatus(configPath string) error {
	cfg := LoadConfigWithFallback(configPath)

	common.CLILogger.Info("Editor Gateway Status")
	common.CLILogger.Info("%s", strings.Repeat("=", 50))
	common.CLILogger.Info("Listen address: %s:%d", cfg.Host, cfg.Port)
	common.CLILogger.Info("Configured languages: %d", len(cfg.Servers))
	common.CLILogger.Info("")

	for _, language := range registry.GetLanguageNames() {
		serverCfg, ok := cfg.ServerConfigFor(language)
		if !ok {
			continue
		}
		command := serverCfg.Command

		available := false
		resolved := command
		if _, err := exec.LookPath(command); err == nil {
			available = true
		} else if langInfo, ok := registry.GetLanguageByName(language); ok {
			for _, fallback := range langInfo.FallbackChain {
				if _, err := exec.LookPath(fallback); err == nil {
					available = true
					resolved = fallback
					break
				}
			}
		}

		statusText := "unavailable"
		if available {
			statusText = "available"
		}
		common.CLILogger.Info("%s: %s", language, statusText)
		common.CLILogger.Info("   Command: %s %s", resolved, strings.Join(serverCfg.Args, " "))
	}

	return nil
}

// ShowCapabilities probes one language server rooted at the current
// directory and prints its capability set.
func ShowCapabilities(configPath, language string) error {
	cfg := LoadConfigWithFallback(configPath)
	factory := server.NewFactory(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	common.CLILogger.Info("Probing %s server...", language)
	caps, err := factory.GetServerCapabilities(ctx, language)
	if err != nil {
		return fmt.Errorf("failed to probe %s server: %w", language, err)
	}

	common.CLILogger.Info("Capabilities for %s:", language)
	common.CLILogger.Info("   completion: %v", caps.CompletionProvider != nil)
	common.CLILogger.Info("   hover: %v", caps.HoverProvider != nil)
	common.CLILogger.Info("   definition: %v", caps.DefinitionProvider != nil)
	common.CLILogger.Info("   references: %v", caps.ReferencesProvider != nil)
	common.CLILogger.Info("   formatting: %v", caps.DocumentFormattingProvider != nil)
	common.CLILogger.Info("   rename: %v", caps.RenameProvider != nil)
	return nil
}
