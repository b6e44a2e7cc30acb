// Package gateway exposes the turn orchestrator over a websocket push
// channel: protocol events stream out as JSON frames, tool resolutions and
// turn requests arrive as inbound frames.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/agui"
)

const wsWriteTimeout = 10 * time.Second

// WSSink streams protocol events to one websocket connection as JSON text
// frames. Writes are serialized; gorilla connections allow one concurrent
// writer.
type WSSink struct {
	mu   sync.Mutex
	conn *websocket.Conn

	// closeConn controls whether Close also closes the connection. The
	// gateway keeps the connection open across turns.
	closeConn bool
}

// NewWSSink wraps a connection. When closeConn is true, closing the sink
// closes the underlying connection too.
func NewWSSink(conn *websocket.Conn, closeConn bool) *WSSink {
	return &WSSink{conn: conn, closeConn: closeConn}
}

// Emit writes the event as one JSON frame. Write failures are dropped; a
// broken connection will surface on the gateway's read loop.
func (s *WSSink) Emit(ctx context.Context, e agui.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = s.conn.WriteJSON(e)
}

// Close implements agui.SinkCloser.
func (s *WSSink) Close() error {
	if !s.closeConn {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
