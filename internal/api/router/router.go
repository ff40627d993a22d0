package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/omnitrix-widget/internal/http/middleware"
	"github.com/wolfman30/omnitrix-widget/internal/webchat"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webchat        *webchat.Handler
	MetricsHandler http.Handler

	// SessionTokens guards the per-session endpoints when a secret is set.
	SessionTokens      *httpmiddleware.SessionTokens
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Webchat == nil {
		return r
	}

	r.Group(func(widget chi.Router) {
		if cfg.RateLimiter != nil {
			widget.Use(cfg.RateLimiter.Middleware)
		}

		// The WebSocket upgrade must see the raw connection.
		widget.Get("/widget/ws", cfg.Webchat.HandleWebSocket)

		widget.Group(func(static chi.Router) {
			static.Use(middleware.Compress(5))
			static.Get("/widget.js", cfg.Webchat.HandleWidgetJS)
			static.Get("/widget/config", cfg.Webchat.HandleConfig)
		})

		widget.Route("/widget/sessions/{sessionID}", func(session chi.Router) {
			if cfg.SessionTokens.Enabled() {
				session.Use(httpmiddleware.RequireSession(cfg.SessionTokens))
			}
			session.Post("/messages", cfg.Webchat.HandlePushMessage)
			session.Get("/user", cfg.Webchat.HandleUser)
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
