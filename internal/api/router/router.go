package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/bme-companion/internal/conversation"
	httpmiddleware "github.com/wolfman30/bme-companion/internal/http/middleware"
	"github.com/wolfman30/bme-companion/pkg/logging"
)

const chatTimeout = 90 * time.Second

// Config holds router configuration
type Config struct {
	// Context bounds background work started by the router's middleware.
	// Nil means context.Background().
	Context             context.Context
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	RateLimitRPS        float64
	RateLimitBurst      int
	// LLMProvider is reported by /health.
	LLMProvider string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", healthHandler(cfg.LLMProvider))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ConversationHandler != nil {
		r.Route("/api", func(api chi.Router) {
			api.Use(httpmiddleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst))
			api.Use(middleware.Timeout(chatTimeout))
			api.Post("/chat", cfg.ConversationHandler.Chat)
		})
	}

	return r
}

func healthHandler(provider string) http.HandlerFunc {
	if provider == "" {
		provider = "stub"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":      "ok",
			"llmProvider": provider,
		})
	}
}
