package server

import (
	"net/http"

	"github.com/cortexai/opsagent/internal/handler"
	"github.com/cortexai/opsagent/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func (s *Server) setupRoutes() http.Handler {
	cfg := s.cfg
	b := s.backends

	agentIDs := make([]string, 0, 3)
	for _, info := range b.Catalog.List() {
		agentIDs = append(agentIDs, info.ID)
	}
	healthH := handler.NewHealthHandler(agentIDs, b.Health)
	chatH := handler.NewChatHandler(b.Agents, cfg.CORSOrigins)

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		if cfg.EnableAuth {
			r.Use(middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
		}

		r.Post("/invoke_agent", b.Agents.InvokeAgent)

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/invoke", b.Agents.Invoke)
			r.Get("/agents", b.Agents.ListAgents)
			r.Delete("/sessions/{session_id}", b.Agents.ResetSession)
			r.Get("/chat", chatH.Chat)
		})
	})

	return r
}
