// Package ipcclient talks to the osdbrainz daemon over its Unix socket.
//
// The protocol is line-delimited JSON: one {"type","data"} request per line,
// one {"status","error","data"} response per line.
package ipcclient

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// DefaultTimeout bounds one request/response exchange.
const DefaultTimeout = 5 * time.Second

// Request is one line sent to the daemon.
type Request struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Response represents the daemon's response
type Response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Send delivers req and returns the response data (non-nil only for
// get_status). A daemon-side error is returned as an error.
func Send(socketPath string, req Request) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", socketPath, DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(DefaultTimeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return resp.Data, nil
}
