package process

import (
	"testing"
	"time"
)

func TestNewLSPProcessManager(t *testing.T) {
	pm := NewLSPProcessManager()
	if pm == nil {
		t.Fatal("NewLSPProcessManager returned nil")
	}
}

func TestStartProcess(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		language    string
		expectError bool
	}{
		{
			name: "valid command",
			config: Config{
				Command: "echo",
				Args:    []string{"hello"},
			},
			language:    "test",
			expectError: false,
		},
		{
			name: "invalid command",
			config: Config{
				Command: "nonexistentcommand12345",
				Args:    []string{},
			},
			language:    "test",
			expectError: true,
		},
		{
			name: "working directory honored",
			config: Config{
				Command:    "pwd",
				WorkingDir: "/tmp",
			},
			language:    "test",
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := NewLSPProcessManager()

			info, err := pm.StartProcess(tt.config, tt.language)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
					if info != nil {
						pm.StopProcess(info, nil)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if info == nil {
				t.Fatal("Expected non-nil ProcessInfo")
			}
			if info.Stdin == nil || info.Stdout == nil || info.Stderr == nil {
				t.Error("Expected non-nil pipes")
			}
			pm.StopProcess(info, nil)
		})
	}
}

func TestStopProcessIdempotent(t *testing.T) {
	pm := NewLSPProcessManager()

	info, err := pm.StartProcess(Config{Command: "sleep", Args: []string{"10"}}, "test")
	if err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pm.StopProcess(info, nil); err != nil {
		t.Errorf("Failed to stop process: %v", err)
	}

	// Stopping an already stopped process must not panic.
	if err := pm.StopProcess(info, nil); err != nil {
		t.Logf("Stopping already stopped process returned: %v", err)
	}
}

func TestProcessInfoStructure(t *testing.T) {
	pm := NewLSPProcessManager()

	info, err := pm.StartProcess(Config{Command: "echo", Args: []string{"test"}}, "test-lang")
	if err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	defer pm.StopProcess(info, nil)

	if info.Language != "test-lang" {
		t.Errorf("Expected language 'test-lang', got '%s'", info.Language)
	}
	if info.Cmd == nil {
		t.Error("ProcessInfo.Cmd should not be nil")
	}
	if info.StopCh == nil {
		t.Error("ProcessInfo.StopCh should not be nil")
	}
}

func TestMonitorProcess(t *testing.T) {
	pm := NewLSPProcessManager()

	info, err := pm.StartProcess(Config{Command: "sh", Args: []string{"-c", "exit 0"}}, "test")
	if err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	exitCalled := make(chan error, 1)
	go pm.MonitorProcess(info, func(err error) {
		exitCalled <- err
	})

	select {
	case err := <-exitCalled:
		if err != nil {
			t.Logf("Process exited with error: %v", err)
		}
		select {
		case <-info.StopCh:
		default:
			t.Error("StopCh should be closed after process exit")
		}
	case <-time.After(5 * time.Second):
		t.Error("Process monitoring timed out")
	}
}

func TestStartProcessEnvOverrides(t *testing.T) {
	pm := NewLSPProcessManager()

	info, err := pm.StartProcess(Config{
		Command: "sh",
		Args:    []string{"-c", "test \"$GATEWAY_TEST_VAR\" = on"},
		Env:     map[string]string{"GATEWAY_TEST_VAR": "on"},
	}, "test")
	if err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	exitCalled := make(chan error, 1)
	go pm.MonitorProcess(info, func(err error) {
		exitCalled <- err
	})

	select {
	case err := <-exitCalled:
		if err != nil {
			t.Errorf("environment override not visible to child: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timed out waiting for child exit")
	}
}

func TestCleanupProcess(t *testing.T) {
	pm := NewLSPProcessManager()

	info, err := pm.StartProcess(Config{Command: "echo", Args: []string{"test"}}, "test")
	if err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	pm.CleanupProcess(info)
	pm.CleanupProcess(nil)
}
