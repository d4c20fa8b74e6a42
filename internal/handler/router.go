package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	assistantHandler "github.com/kiskahq/kiska/internal/handler/assistant"
	authHandler "github.com/kiskahq/kiska/internal/handler/auth"
	middlewarePkg "github.com/kiskahq/kiska/internal/middleware"
	authService "github.com/kiskahq/kiska/internal/service/auth"
	"github.com/kiskahq/kiska/internal/service/conversation"
	"github.com/kiskahq/kiska/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(gate *authService.Gate, engine *conversation.Engine, defaultUsername string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{
				"status":  "healthy",
				"service": "kiska",
			})
		})

		authHandler.New(gate).RegisterRoutes(api)
		assistantHandler.New(engine, gate, defaultUsername).RegisterRoutes(api)
	})

	return r
}
