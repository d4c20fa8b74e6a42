package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	authservice "github.com/kiskahq/kiska/internal/service/auth"
	"github.com/kiskahq/kiska/pkg/utils"
)

// Handler exposes the login gate over HTTP.
type Handler struct {
	gate *authservice.Gate
}

// New creates the auth handler.
func New(gate *authservice.Gate) *Handler {
	return &Handler{gate: gate}
}

// RegisterRoutes mounts the auth endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Get("/session", h.handleSession)
}

// handleSession is the launch-time check: it reports whether a persisted
// session already authenticates the user.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.gate.CheckSession(r.Context())
	if !ok {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      sess.Username,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.gate.Login(r.Context(), payload.Username, payload.Password)
	switch {
	case errors.Is(err, authservice.ErrCredentialsRequired):
		utils.RespondError(w, http.StatusBadRequest, "username and password are required")
		return
	case errors.Is(err, authservice.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		// Storage trouble is transient; the user just retries. The detail
		// stays in the log.
		log.Printf("[auth] login failed: %v", err)
		utils.RespondError(w, http.StatusServiceUnavailable, "login temporarily unavailable, please retry")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"token":    sess.Token,
		"username": sess.Username,
	})
}
