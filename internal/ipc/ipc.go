// Package ipc provides the control channel between the maptrack daemon
// and the maptrackctl client: newline-delimited JSON over a unix socket.
//
// One request, one response, per line. The socket lives in a 0700
// directory and is created 0600, so only the owning user can trigger
// flows.
package ipc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Ops understood by the daemon.
const (
	OpPing       = "ping"
	OpStatus     = "status"
	OpPre        = "pre"
	OpPost       = "post"
	OpReset      = "reset"
	OpNewSession = "new-session"
	OpStop       = "stop"
)

// Request is one client command.
type Request struct {
	Op   string            `json:"op"`
	Args map[string]string `json:"args,omitempty"`
}

// Response is the daemon's reply.
type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ok builds a success response carrying data, which must marshal cleanly.
func Ok(data any) Response {
	if data == nil {
		return Response{OK: true}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Errf("encode response: %v", err)
	}
	return Response{OK: true, Data: raw}
}

// Errf builds a failure response.
func Errf(format string, args ...any) Response {
	return Response{OK: false, Error: fmt.Sprintf(format, args...)}
}

// DefaultSocketPath returns the per-user control socket path.
func DefaultSocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\maptrackd`
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "maptrack", "maptrackd.sock")
}
