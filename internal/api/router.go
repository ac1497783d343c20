package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rrens/nl2sql/internal/api/handler"
	customMiddleware "github.com/Rrens/nl2sql/internal/api/middleware"
	"github.com/Rrens/nl2sql/internal/app"
)

// NewRouter creates and configures the HTTP router
func NewRouter(a *app.App) http.Handler {
	cfg := a.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	sessionAuth := customMiddleware.NewSessionAuth(a.Tokens)
	sessions := handler.NewSessionHandler(a.Orchestrator, a.Tokens)
	messages := handler.NewMessageHandler(a.Orchestrator)
	uploads := handler.NewUploadHandler(a.Orchestrator, a.Documents, 0)

	limited := func(r chi.Router) {}
	if a.RateLimiter != nil {
		rateLimit := customMiddleware.NewRateLimitMiddleware(a.RateLimiter)
		limited = func(r chi.Router) { r.Use(rateLimit.Limit) }
	}

	requestTimeout := cfg.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 110 * time.Second
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(a.Ready))
		r.Get("/llm-providers", handler.ListLLMProviders(a.LLM))
		r.Get("/backends", handler.ListBackends(a.Databases))

		r.Group(func(r chi.Router) {
			limited(r)
			r.Post("/sessions", sessions.Create)
		})

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(sessionAuth.Authenticate)
			limited(r)
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/", sessions.Get)
			r.Delete("/", sessions.End)
			r.Post("/save", sessions.Save)
			r.Post("/restore", sessions.Restore)

			r.Post("/messages", messages.Send)
			r.Post("/connect", messages.Connect)
			r.Post("/dictionary/load", messages.LoadDictionary)
			r.Post("/dictionary/save", messages.SaveDictionary)
			r.Post("/dictionary/upload", uploads.UploadDictionary)

			if a.SchemaCache != nil {
				r.Post("/cache/flush", handler.FlushCache(a.SchemaCache))
			}
			if a.Transcript != nil {
				transcript := handler.NewTranscriptHandler(a.Transcript)
				r.Get("/transcript", transcript.List)
				r.Get("/suggestions", transcript.Suggestions)
			}
		})
	})

	return r
}
