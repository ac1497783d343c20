package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/nl2sql/internal/api/response"
	"github.com/Rrens/nl2sql/internal/llm"
)

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck reports readiness of the backing services.
func ReadyCheck(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			response.ServiceUnavailable(w, err.Error())
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ProviderLister describes the registered language providers.
type ProviderLister interface {
	GetProvidersInfo() []llm.ProviderInfo
	DefaultProvider() string
}

// ListLLMProviders returns available LLM providers
func ListLLMProviders(providers ProviderLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":        providers.GetProvidersInfo(),
			"default_provider": providers.DefaultProvider(),
		})
	}
}

// DatabaseLister describes the registered database backends.
type DatabaseLister interface {
	SupportedDatabases() []string
}

// ListBackends returns the database backends a session may connect to
func ListBackends(dbs DatabaseLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{"backends": dbs.SupportedDatabases()})
	}
}

// CacheFlusher drops cached schema context.
type CacheFlusher interface {
	FlushAll(ctx context.Context) (int64, error)
}

// FlushCache clears all schema cache from Redis
func FlushCache(cache CacheFlusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := cache.FlushAll(r.Context())
		if err != nil {
			response.InternalError(w, "failed to flush cache: "+err.Error())
			return
		}

		response.OK(w, map[string]any{
			"message":      "cache flushed successfully",
			"keys_deleted": deleted,
		})
	}
}
