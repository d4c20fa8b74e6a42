package assistant

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authservice "github.com/kiskahq/kiska/internal/service/auth"
	"github.com/kiskahq/kiska/internal/service/conversation"
	"github.com/kiskahq/kiska/pkg/utils"
)

// Handler exposes the conversational turn engine over HTTP. Conversations
// sit behind the login gate: nothing here is reachable before the gate has
// authenticated.
type Handler struct {
	engine          *conversation.Engine
	gate            *authservice.Gate
	defaultUsername string
}

// New creates the assistant handler.
func New(engine *conversation.Engine, gate *authservice.Gate, defaultUsername string) *Handler {
	return &Handler{
		engine:          engine,
		gate:            gate,
		defaultUsername: defaultUsername,
	}
}

// RegisterRoutes mounts the conversation endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/conversations", func(cr chi.Router) {
		cr.Post("/", h.handleCreate)
		cr.Get("/{conversationID}", h.handleState)
		cr.Delete("/{conversationID}", h.handleEnd)
		cr.Get("/{conversationID}/transcript", h.handleTranscript)
		cr.Post("/{conversationID}/utterances", h.handleUtterance)
		cr.Post("/{conversationID}/listening", h.handleToggleListening)

		wsHandler := NewWebSocketHandler(h.engine)
		wsHandler.RegisterWebSocketRoutes(cr)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.gate.Current()
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "login required")
		return
	}

	username := sess.Username
	if username == "" {
		username = h.defaultUsername
	}

	state := h.engine.Start(username)
	utils.RespondJSON(w, http.StatusCreated, state)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.State(chi.URLParam(r, "conversationID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	turns, err := h.engine.Transcript(chi.URLParam(r, "conversationID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) handleUtterance(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	if err := h.engine.HandleUtterance(conversationID, payload.Text); err != nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	// An empty utterance is accepted but produces nothing.
	status := "queued"
	if strings.TrimSpace(payload.Text) == "" {
		status = "ignored"
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

func (h *Handler) handleToggleListening(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.ToggleListening(chi.URLParam(r, "conversationID"))
	switch {
	case errors.Is(err, conversation.ErrAssistantSpeaking):
		utils.RespondError(w, http.StatusConflict, "assistant is speaking")
		return
	case err != nil:
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.End(chi.URLParam(r, "conversationID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}
