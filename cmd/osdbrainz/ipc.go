package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server lets external clients drive the pad and read status:
//   - osd-ctl for manual testing without a controller attached
//   - scripted snapshot playback
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "event_name", "data": {...}}
//   - Server responds: {"status": "ok", "data": ...} or {"status": "error", "error": "msg"}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`  // get_status payload
}

// ipcServer carries the dependencies shared by all IPC connections.
type ipcServer struct {
	events       chan<- Event
	metrics      *Metrics
	logger       *slog.Logger
	replyTimeout time.Duration
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, metrics *Metrics, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	srv := &ipcServer{
		events:       events,
		metrics:      metrics,
		logger:       logger,
		replyTimeout: statusReplyTimeoutMS * time.Millisecond,
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go srv.handleConn(ctx, conn)
	}
}

// handleConn processes a single IPC client connection
func (s *ipcServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	s.logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.logger.Debug("IPC received", "line", line)

		resp, typ := s.handleLine(ctx, []byte(line))
		s.metrics.RecordIPC(ctx, typ, resp.Status)

		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	s.logger.Debug("IPC connection closed")
}

// handleLine parses and dispatches one request line and returns the reply
// plus the request type for metrics.
func (s *ipcServer) handleLine(ctx context.Context, line []byte) (IPCResponse, string) {
	ev, err := UnmarshalEvent(line)
	if err != nil {
		return IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)}, "invalid"
	}

	if _, ok := ev.(RequestStatus); ok {
		return s.requestStatus(ctx), "get_status"
	}

	typ := eventTypeName(ev)
	select {
	case s.events <- ev:
		return IPCResponse{Status: "ok"}, typ
	default:
		// Event channel is full (should rarely happen with buffer)
		return IPCResponse{Status: "error", Error: "event queue full"}, typ
	}
}

func (s *ipcServer) requestStatus(ctx context.Context) IPCResponse {
	reply := make(chan StatusSnapshot, 1)

	waitCtx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	select {
	case s.events <- RequestStatus{Reply: reply}:
	case <-waitCtx.Done():
		return IPCResponse{Status: "error", Error: "status request: " + waitCtx.Err().Error()}
	}

	select {
	case snap := <-reply:
		data, err := json.Marshal(snap)
		if err != nil {
			return IPCResponse{Status: "error", Error: fmt.Sprintf("marshal status: %v", err)}
		}
		return IPCResponse{Status: "ok", Data: data}
	case <-waitCtx.Done():
		return IPCResponse{Status: "error", Error: "status reply: " + waitCtx.Err().Error()}
	}
}

// eventTypeName returns the wire type of ev, or "unknown".
func eventTypeName(ev Event) string {
	b, err := MarshalEvent(ev)
	if err != nil {
		return "unknown"
	}
	var env EventEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return "unknown"
	}
	return env.Type
}
