package server

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func TestStdioBridgeSession(t *testing.T) {
	factory, spawned := newTrackedFactory(t)
	active := NewActiveServerRegistry()
	dir := goProjectDir(t)

	input := strings.Join([]string{
		frame(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`),
		frame(`{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{"textDocument":{"uri":"file:///x.go"}}}`),
		frame(`{"jsonrpc":"2.0","id":2,"method":"textDocument/hover","params":{}}`),
		frame(`{"jsonrpc":"2.0","method":"exit"}`),
	}, "")

	out := &nopWriteCloser{}
	bridge := NewStdioBridge(factory, active, strings.NewReader(input), out)

	require.NoError(t, bridge.Run(context.Background(), "go", dir))

	require.Len(t, *spawned, 1)
	server := (*spawned)[0]

	// The hover reply is written asynchronously; wait for both replies.
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "Content-Length") >= 2
	}, 3*time.Second, 10*time.Millisecond)

	frames := decodeFrames(t, out.String())
	byID := map[float64]map[string]interface{}{}
	for _, f := range frames {
		if id, ok := f["id"].(float64); ok {
			byID[id] = f
		}
	}

	initReply := byID[1]
	require.NotNil(t, initReply, "initialize must be answered")
	result, ok := initReply["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, result, "capabilities")

	require.NotNil(t, byID[2], "hover must be answered")

	server.mu.Lock()
	notifications := append([]string(nil), server.notifications...)
	server.mu.Unlock()
	assert.Contains(t, notifications, "textDocument/didOpen")

	assert.True(t, server.wasStopped(), "exit must tear the server down")
	assert.False(t, active.IsRunning("go"), "registry mark must be cleared after the session")
}

func TestStdioBridgeRefusesDuplicateLanguage(t *testing.T) {
	factory, spawned := newTrackedFactory(t)
	active := NewActiveServerRegistry()
	dir := goProjectDir(t)

	require.True(t, active.MarkRunning("go"))

	bridge := NewStdioBridge(factory, active, strings.NewReader(""), &nopWriteCloser{})
	err := bridge.Run(context.Background(), "go", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
	assert.Empty(t, *spawned, "duplicate language must not spawn a second server")
	assert.True(t, active.IsRunning("go"), "the foreign mark must survive")
}

func TestStdioBridgeEndsOnEOF(t *testing.T) {
	factory, spawned := newTrackedFactory(t)
	active := NewActiveServerRegistry()
	dir := goProjectDir(t)

	bridge := NewStdioBridge(factory, active, strings.NewReader(""), &nopWriteCloser{})
	require.NoError(t, bridge.Run(context.Background(), "go", dir))

	require.Len(t, *spawned, 1)
	assert.True(t, (*spawned)[0].wasStopped())
}

func TestStdioBridgeRequestErrorEnvelope(t *testing.T) {
	factory, spawned := newTrackedFactory(t)
	active := NewActiveServerRegistry()
	dir := goProjectDir(t)

	input := frame(`{"jsonrpc":"2.0","id":3,"method":"textDocument/rename","params":{}}`) +
		frame(`{"jsonrpc":"2.0","method":"exit"}`)

	out := &nopWriteCloser{}
	bridge := NewStdioBridge(factory, active, &slowReader{payload: input, delay: 100 * time.Millisecond}, out)

	done := make(chan error, 1)
	go func() { done <- bridge.Run(context.Background(), "go", dir) }()

	// The server is spawned before any input is read; make the
	// forwarded request fail while the reader is still delayed.
	require.Eventually(t, func() bool { return len(*spawned) == 1 }, 3*time.Second, 5*time.Millisecond)
	(*spawned)[0].mu.Lock()
	(*spawned)[0].requestErr = fmt.Errorf("rename exploded")
	(*spawned)[0].mu.Unlock()

	require.NoError(t, <-done)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"error"`)
	}, 3*time.Second, 10*time.Millisecond)

	frames := decodeFrames(t, out.String())
	require.NotEmpty(t, frames)
	var errObj map[string]interface{}
	for _, f := range frames {
		if eo, ok := f["error"].(map[string]interface{}); ok {
			errObj = eo
		}
	}
	require.NotNil(t, errObj)
	assert.NotZero(t, errObj["code"])
}

// slowReader yields its payload only after a delay so tests can arrange
// server state first.
type slowReader struct {
	payload string
	delay   time.Duration
	started bool
	pos     int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if !r.started {
		time.Sleep(r.delay)
		r.started = true
	}
	if r.pos >= len(r.payload) {
		return 0, io.EOF
	}
	n := copy(p, r.payload[r.pos:])
	r.pos += n
	return n, nil
}
