// Package viz implements a best-effort client for the visualization
// telemetry sink: a WebSocket endpoint that receives register/progress/clear
// JSON frames describing a transfer in progress. Nothing a session does
// depends on the sink being reachable; every method here swallows its own
// failures after logging them, per the transfer pipeline's error handling
// design.
package viz

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// registerFrame is the "register" message sent once at the start of a
// transfer.
type registerFrame struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	Connections int    `json:"connections"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// progressFrame is sent once per completed chunk transfer.
type progressFrame struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	Host        string `json:"host"`
	Length      int64  `json:"length"`
	Offset      int64  `json:"offset"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// clearFrame is sent once a transfer has finished, successfully or not.
type clearFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// Sink is a connection to a visualization telemetry endpoint. The zero
// value is a valid no-op sink: every method is a harmless no-op when url
// was empty or the dial never succeeded.
type Sink struct {
	log *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial attempts to connect to url. Connection failures are logged at Debug
// and the returned Sink degrades to a no-op — callers never need to check
// an error here, matching the "best effort, failures logged and swallowed"
// requirement for the visualization sink.
func Dial(ctx context.Context, url string, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sink{log: log}
	if url == "" {
		return s
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		log.Debug("viz: dial failed, continuing without telemetry", zap.String("url", url), zap.Error(err))
		return s
	}
	s.conn = conn
	return s
}

// Register sends the one-time registration frame for a new transfer.
func (s *Sink) Register(sessionID, filename string, size int64, connections int) {
	s.send(registerFrame{
		Type:        "register",
		SessionID:   sessionID,
		Filename:    filename,
		Size:        size,
		Connections: connections,
		TimestampMS: nowMillis(),
	})
}

// Progress reports one completed chunk transfer.
func (s *Sink) Progress(sessionID, host string, length, offset int64) {
	s.send(progressFrame{
		Type:        "progress",
		SessionID:   sessionID,
		Host:        host,
		Length:      length,
		Offset:      offset,
		TimestampMS: nowMillis(),
	})
}

// Clear reports that a transfer has finished.
func (s *Sink) Clear(sessionID string) {
	s.send(clearFrame{Type: "clear", SessionID: sessionID})
}

// Close releases the underlying connection, if any. Best-effort.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.log.Debug("viz: close failed", zap.Error(err))
	}
	s.conn = nil
}

func (s *Sink) send(frame any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(frame); err != nil {
		s.log.Debug("viz: send failed, dropping connection", zap.Error(err))
		_ = s.conn.Close()
		s.conn = nil
	}
}

func nowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
