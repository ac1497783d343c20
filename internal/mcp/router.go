package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrConnectionNotFound is returned for refs that are not in the pool.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrConnectionStale is returned when a pooled connection fails its health check.
	ErrConnectionStale = errors.New("connection failed health check")
)

// Router manages database adapters and connection pooling
type Router struct {
	factories map[string]AdapterFactory
	pool      map[string]Adapter
	mu        sync.RWMutex
}

// NewRouter creates a new adapter router
func NewRouter() *Router {
	return &Router{
		factories: make(map[string]AdapterFactory),
		pool:      make(map[string]Adapter),
	}
}

// RegisterAdapter registers an adapter factory for a database type
func (r *Router) RegisterAdapter(dbType string, factory AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[dbType] = factory
}

// SupportedDatabases returns list of supported database types
func (r *Router) SupportedDatabases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for dbType := range r.factories {
		types = append(types, dbType)
	}
	sort.Strings(types)
	return types
}

// Connect opens a new pooled connection and returns its ref.
func (r *Router) Connect(ctx context.Context, dbType string, config ConnectionConfig) (string, Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[dbType]
	r.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	adapter := factory()
	if err := adapter.Connect(ctx, config); err != nil {
		return "", nil, fmt.Errorf("failed to connect: %w", err)
	}

	ref := uuid.NewString()

	r.mu.Lock()
	r.pool[ref] = adapter
	r.mu.Unlock()

	log.Info().Str("ref", ref).Str("db_type", dbType).Msg("Database connection opened")
	return ref, adapter, nil
}

// Adapter returns the pooled adapter for ref. An unhealthy connection is
// closed and evicted, never reopened.
func (r *Router) Adapter(ctx context.Context, ref string) (Adapter, error) {
	r.mu.RLock()
	adapter, ok := r.pool[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrConnectionNotFound
	}

	if err := adapter.HealthCheck(ctx); err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Pooled connection is stale")
		r.evict(ref, adapter)
		return nil, fmt.Errorf("%w: %v", ErrConnectionStale, err)
	}

	return adapter, nil
}

// Release closes a specific connection
func (r *Router) Release(ref string) error {
	r.mu.Lock()
	adapter, ok := r.pool[ref]
	delete(r.pool, ref)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	log.Info().Str("ref", ref).Msg("Database connection released")
	return adapter.Close()
}

// CloseAll closes all connections
func (r *Router) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ref, adapter := range r.pool {
		if err := adapter.Close(); err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("Failed to close connection")
		}
		delete(r.pool, ref)
	}
}

// PoolSize returns the current number of pooled connections
func (r *Router) PoolSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pool)
}

func (r *Router) evict(ref string, adapter Adapter) {
	r.mu.Lock()
	if current, ok := r.pool[ref]; ok && current == adapter {
		delete(r.pool, ref)
	}
	r.mu.Unlock()
	_ = adapter.Close()
}
