package assistant

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	model "github.com/kiskahq/kiska/internal/model/conversation"
)

type wsEnvelope struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Data           json.RawMessage `json:"data"`
	Timestamp      int64           `json:"timestamp"`
}

func TestWebSocketNotFoundForUnknownConversation(t *testing.T) {
	engine := newTestEngine()
	r := chi.NewRouter()
	NewWebSocketHandler(engine).RegisterWebSocketRoutes(r)

	req := httptest.NewRequest("GET", "/ws/missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 404 {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestWebSocketConversationLoop(t *testing.T) {
	engine := newTestEngine()
	state := engine.Start("Trent")

	r := chi.NewRouter()
	NewWebSocketHandler(engine).RegisterWebSocketRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + state.ConversationID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var connected wsEnvelope
	if err := conn.ReadJSON(&connected); err != nil {
		t.Fatalf("read connected err: %v", err)
	}
	if connected.Type != "connected" {
		t.Fatalf("expected connected envelope, got %s", connected.Type)
	}

	payload := map[string]any{
		"type": "utterance",
		"data": map[string]string{"text": "hello"},
	}
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("write utterance err: %v", err)
	}

	var turnTexts []string
	for len(turnTexts) < 2 {
		var envelope wsEnvelope
		if err := conn.ReadJSON(&envelope); err != nil {
			t.Fatalf("read err after turns %v: %v", turnTexts, err)
		}
		if envelope.Type != "turn" {
			continue
		}
		var turn model.Turn
		if err := json.Unmarshal(envelope.Data, &turn); err != nil {
			t.Fatalf("decode turn err: %v", err)
		}
		turnTexts = append(turnTexts, turn.Text)
	}

	if turnTexts[0] != "hello" {
		t.Fatalf("expected echoed user turn first, got %q", turnTexts[0])
	}
	if turnTexts[1] != "Hello Trent. How can I assist you today?" {
		t.Fatalf("unexpected assistant turn: %q", turnTexts[1])
	}
}

func TestWebSocketRejectsMismatchedConversation(t *testing.T) {
	engine := newTestEngine()
	state := engine.Start("Trent")

	r := chi.NewRouter()
	NewWebSocketHandler(engine).RegisterWebSocketRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + state.ConversationID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var connected wsEnvelope
	if err := conn.ReadJSON(&connected); err != nil {
		t.Fatalf("read connected err: %v", err)
	}

	payload := map[string]any{
		"type":           "utterance",
		"conversationId": "other",
		"data":           map[string]string{"text": "hello"},
	}
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("write err: %v", err)
	}

	var envelope wsEnvelope
	if err := conn.ReadJSON(&envelope); err != nil {
		t.Fatalf("read err: %v", err)
	}
	if envelope.Type != "error" {
		t.Fatalf("expected error envelope, got %s", envelope.Type)
	}
}
