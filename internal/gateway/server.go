package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imdanibytes/nexus-agent-sub000/internal/agent"
	"github.com/imdanibytes/nexus-agent-sub000/internal/tools"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

const wsPongWait = 45 * time.Second

// inboundFrame is one client request over the socket.
type inboundFrame struct {
	// Type is "begin_turn" or "resolve_tool".
	Type string `json:"type"`

	// begin_turn fields.
	ConversationID string                  `json:"conversation_id,omitempty"`
	Messages       []models.WireMessage    `json:"messages,omitempty"`
	AgentID        string                  `json:"agent_id,omitempty"`
	ClientTools    []models.ToolDefinition `json:"client_tools,omitempty"`

	// resolve_tool fields.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Content    string `json:"content,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ackFrame answers inbound frames outside the event grammar.
type ackFrame struct {
	Type       string `json:"type"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Server bridges websocket clients to the orchestrator.
type Server struct {
	orchestrator *agent.Orchestrator
	bridge       *tools.Bridge
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// NewServer wires the gateway to its collaborators.
func NewServer(orchestrator *agent.Orchestrator, bridge *tools.Bridge, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orchestrator: orchestrator,
		bridge:       bridge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// Handler returns the websocket endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	sink := NewWSSink(conn, false)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.writeAck(sink, ackFrame{Type: "error", Error: "malformed frame"})
			continue
		}

		switch frame.Type {
		case "begin_turn":
			// One turn at a time per socket; the per-conversation lock
			// rejects overlap across sockets.
			go s.runTurn(r.Context(), sink, frame)
		case "resolve_tool":
			ok := s.bridge.Resolve(frame.ToolCallID, frame.Content, frame.IsError)
			s.writeAck(sink, ackFrame{Type: "resolve_ack", OK: ok, ToolCallID: frame.ToolCallID})
		default:
			s.writeAck(sink, ackFrame{Type: "error", Error: "unknown frame type " + frame.Type})
		}
	}
}

func (s *Server) runTurn(ctx context.Context, sink *WSSink, frame inboundFrame) {
	_, err := s.orchestrator.BeginTurn(ctx, agent.TurnRequest{
		ConversationID: frame.ConversationID,
		Messages:       frame.Messages,
		Sink:           sink,
		AgentID:        frame.AgentID,
		ClientTools:    frame.ClientTools,
	})
	if err != nil && !errors.Is(err, agent.ErrTurnInProgress) {
		s.logger.Warn("turn ended with error", "conversation_id", frame.ConversationID, "error", err)
	}
	if errors.Is(err, agent.ErrTurnInProgress) {
		// The lock conflict is synchronous and never reaches the event
		// stream, so report it as an ack instead.
		s.writeAck(sink, ackFrame{Type: "error", Error: err.Error()})
	}
}

func (s *Server) writeAck(sink *WSSink, ack ackFrame) {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	_ = sink.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = sink.conn.WriteJSON(ack)
}
