package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kiskahq/kiska/internal/service/conversation"
)

// WebSocketHandler runs the live conversation loop: recognized utterances
// and listening toggles come in, turn and state events go out.
type WebSocketHandler struct {
	engine   *conversation.Engine
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the websocket handler.
func NewWebSocketHandler(engine *conversation.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes mounts the websocket endpoint.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{conversationID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Data           json.RawMessage `json:"data"`
	Timestamp      int64           `json:"timestamp"`
}

// UtteranceMessage carries one recognized unit of user speech as text.
type UtteranceMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversationId,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      int64       `json:"timestamp"`
}

// socketSession serializes writes: the event forwarder, the ping loop and
// the read loop all write to the same connection.
type socketSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socketSession) write(msg outgoingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *socketSession) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		http.Error(w, "conversationID is required", http.StatusBadRequest)
		return
	}

	state, err := h.engine.State(conversationID)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	events, cancelSub, err := h.engine.Subscribe(conversationID)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	defer cancelSub()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for conversation: %s", conversationID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	session := &socketSession{conn: conn}

	go h.pingLoop(ctx, session)
	go h.forwardEvents(ctx, session, conversationID, events)

	h.send(session, conversationID, "connected", state)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if msg.ConversationID != "" && msg.ConversationID != conversationID {
				h.sendError(session, "conversation mismatch")
				continue
			}

			h.handleMessage(session, conversationID, &msg)
		}
	}
}

func (h *WebSocketHandler) handleMessage(session *socketSession, conversationID string, msg *inboundMessage) {
	switch msg.Type {
	case "utterance":
		h.handleUtteranceMessage(session, conversationID, msg.Data)
	case "toggle":
		h.handleToggleMessage(session, conversationID)
	default:
		h.sendError(session, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleUtteranceMessage(session *socketSession, conversationID string, raw json.RawMessage) {
	var utterance UtteranceMessage
	if err := json.Unmarshal(raw, &utterance); err != nil {
		h.sendError(session, "invalid utterance payload")
		return
	}

	if err := h.engine.HandleUtterance(conversationID, utterance.Text); err != nil {
		h.sendError(session, err.Error())
	}
	// Turn and state events arrive through the subscription feed.
}

func (h *WebSocketHandler) handleToggleMessage(session *socketSession, conversationID string) {
	_, err := h.engine.ToggleListening(conversationID)
	if errors.Is(err, conversation.ErrAssistantSpeaking) {
		h.sendError(session, "assistant is speaking")
		return
	}
	if err != nil {
		h.sendError(session, err.Error())
	}
}

func (h *WebSocketHandler) forwardEvents(ctx context.Context, session *socketSession, conversationID string, events <-chan conversation.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// Conversation ended; tell the client and stop.
				h.send(session, conversationID, "ended", nil)
				return
			}
			switch ev.Type {
			case conversation.EventTurn:
				h.send(session, conversationID, "turn", ev.Turn)
			case conversation.EventState:
				h.send(session, conversationID, "state", ev.State)
			}
		}
	}
}

func (h *WebSocketHandler) send(session *socketSession, conversationID, msgType string, data interface{}) {
	msg := outgoingMessage{
		Type:           msgType,
		ConversationID: conversationID,
		Data:           data,
		Timestamp:      time.Now().Unix(),
	}
	if err := session.write(msg); err != nil {
		log.Printf("[websocket] write failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(session *socketSession, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := session.write(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, session *socketSession) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := session.ping(); err != nil {
				return
			}
		}
	}
}
