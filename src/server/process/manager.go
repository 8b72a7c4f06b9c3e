// Package process supervises language server child processes: spawning
// with piped standard streams, monitoring, and graceful termination.
package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/constants"
)

// Config describes how to spawn one language server process.
type Config struct {
	Command    string
	Args       []string
	WorkingDir string
	Env        map[string]string
}

// ProcessInfo holds information about a running language server process
type ProcessInfo struct {
	Cmd      *exec.Cmd
	Stdin    io.WriteCloser
	Stdout   io.ReadCloser
	Stderr   io.ReadCloser
	StopCh   chan struct{}
	Active   bool
	Language string
}

// ShutdownSender sends the LSP shutdown handshake before the process is
// terminated.
type ShutdownSender interface {
	SendShutdownRequest(ctx context.Context) error
	SendExitNotification(ctx context.Context) error
}

// ProcessManager handles language server process lifecycle
type ProcessManager interface {
	StartProcess(config Config, language string) (*ProcessInfo, error)
	StopProcess(info *ProcessInfo, sender ShutdownSender) error
	MonitorProcess(info *ProcessInfo, onExit func(error))
	CleanupProcess(info *ProcessInfo)
}

// LSPProcessManager implements ProcessManager for language server processes
type LSPProcessManager struct{}

// NewLSPProcessManager creates a new process manager
func NewLSPProcessManager() *LSPProcessManager {
	return &LSPProcessManager{}
}

// StartProcess spawns a language server with piped standard streams. The
// working directory is the resolved project root when one is given.
func (pm *LSPProcessManager) StartProcess(config Config, language string) (*ProcessInfo, error) {
	cmd := exec.Command(config.Command, config.Args...)

	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	} else if wd, err := os.Getwd(); err == nil {
		cmd.Dir = wd
	}

	if len(config.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range config.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	info := &ProcessInfo{
		Cmd:      cmd,
		StopCh:   make(chan struct{}),
		Active:   false,
		Language: language,
	}

	var err error
	info.Stdin, err = cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	info.Stdout, err = cmd.StdoutPipe()
	if err != nil {
		info.Stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	info.Stderr, err = cmd.StderrPipe()
	if err != nil {
		info.Stdin.Close()
		info.Stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		pm.CleanupProcess(info)
		return nil, fmt.Errorf("failed to start language server: %w", err)
	}

	common.LSPLogger.Info("Started language server process for %s: PID %d", language, cmd.Process.Pid)
	return info, nil
}

// StopProcess terminates a language server process. The shutdown/exit
// handshake is attempted first; after ProcessShutdownTimeout the process
// is killed regardless.
func (pm *LSPProcessManager) StopProcess(info *ProcessInfo, sender ShutdownSender) error {
	if info == nil {
		return nil
	}

	// Signal goroutines tied to this process to stop.
	select {
	case <-info.StopCh:
	default:
		close(info.StopCh)
	}

	if sender != nil {
		pm.sendShutdown(sender)
	}

	info.Active = false

	if info.Cmd != nil && info.Cmd.Process != nil {
		done := make(chan error, 1)
		go func() {
			done <- info.Cmd.Wait()
		}()

		select {
		case <-done:
			// Process exited gracefully
		case <-time.After(constants.ProcessShutdownTimeout):
			common.LSPLogger.Warn("Language server %s did not exit within %v, force killing", info.Language, constants.ProcessShutdownTimeout)
			if err := info.Cmd.Process.Kill(); err != nil {
				common.LSPLogger.Debug("Process kill for %s returned: %v", info.Language, err)
			}
			<-done
		}
	}

	pm.CleanupProcess(info)

	return nil
}

// MonitorProcess blocks until the process exits, then closes StopCh and
// reports the exit to the caller. Run it on its own goroutine.
func (pm *LSPProcessManager) MonitorProcess(info *ProcessInfo, onExit func(error)) {
	if info == nil || info.Cmd == nil || info.Cmd.Process == nil {
		common.LSPLogger.Error("MonitorProcess called with nil process info or command")
		if onExit != nil {
			onExit(fmt.Errorf("invalid process info"))
		}
		return
	}

	err := info.Cmd.Wait()

	wasActive := info.Active
	if err != nil {
		if wasActive {
			common.LSPLogger.Error("Language server %s crashed unexpectedly: %v", info.Language, err)
		} else {
			common.LSPLogger.Warn("Language server %s failed to start: %v", info.Language, err)
		}
	} else {
		common.LSPLogger.Info("Language server %s exited normally", info.Language)
	}

	select {
	case <-info.StopCh:
	default:
		close(info.StopCh)
	}

	if onExit != nil {
		onExit(err)
	}
}

// CleanupProcess closes all pipes and resources
func (pm *LSPProcessManager) CleanupProcess(info *ProcessInfo) {
	if info == nil {
		return
	}

	if info.Stdin != nil {
		info.Stdin.Close()
		info.Stdin = nil
	}
	if info.Stdout != nil {
		info.Stdout.Close()
		info.Stdout = nil
	}
	if info.Stderr != nil {
		info.Stderr.Close()
		info.Stderr = nil
	}
}

func (pm *LSPProcessManager) sendShutdown(sender ShutdownSender) {
	shutdownCtx, shutdownCancel := common.CreateContext(2 * time.Second)
	defer shutdownCancel()
	_ = sender.SendShutdownRequest(shutdownCtx)

	exitCtx, exitCancel := common.CreateContext(1 * time.Second)
	defer exitCancel()
	_ = sender.SendExitNotification(exitCtx)
}
