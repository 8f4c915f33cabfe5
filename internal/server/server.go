package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/g-ogaki/assistant-ui-langgraph/internal/chat"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/config"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/proxy"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/session"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/store"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/upstream"
)

type Server struct {
	router   *chi.Mux
	cfg      config.Config
	sessions *session.Store
	proxy    *proxy.Handler
	chat     *chat.Handler
}

func NewServer(cfg config.Config) *Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{chat.ThreadHeader},
		AllowCredentials: true, // Enable credentials for cookies
		MaxAge:           300,
	}))

	sessions := session.NewStore(cfg.SessionSecret, cfg.Production)
	// Identity must exist before any route runs.
	r.Use(sessions.Middleware)

	client := upstream.NewClient(cfg.UpstreamURL)
	s := &Server{
		router:   r,
		cfg:      cfg,
		sessions: sessions,
		proxy:    proxy.NewHandler(cfg.UpstreamURL),
		chat:     chat.NewHandler(client, store.NewThreadCache(store.DefaultTTL)),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	for _, m := range proxy.Methods {
		s.router.Method(m, "/api/*", s.proxy)
	}
	s.chat.RegisterRoutes(s.router)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
