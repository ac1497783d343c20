package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// Router is the registry of language providers. Lookups with an empty name
// resolve to the default provider, or to the first configured one when the
// default has no credentials.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	preferred string
	warned    sync.Map
}

// NewRouter creates an empty registry preferring the named provider.
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers: make(map[string]Provider),
		preferred: defaultProvider,
	}
}

// RegisterProvider adds p, replacing any provider with the same name.
func (r *Router) RegisterProvider(p Provider) {
	r.mu.Lock()
	r.providers[p.Name()] = p
	r.mu.Unlock()
}

// GetProvider resolves name to a configured provider.
func (r *Router) GetProvider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		return r.configured(name)
	}

	p, err := r.configured(r.preferred)
	if err == nil {
		return p, nil
	}
	for _, candidate := range r.sortedNames() {
		if r.providers[candidate].IsConfigured() {
			r.warnFallback(candidate)
			return r.providers[candidate], nil
		}
	}
	return nil, err
}

func (r *Router) configured(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	return p, nil
}

// warnFallback logs a default swap once per substitute.
func (r *Router) warnFallback(substitute string) {
	if _, seen := r.warned.LoadOrStore(substitute, true); seen {
		return
	}
	log.Warn().
		Str("preferred", r.preferred).
		Str("using", substitute).
		Msg("Default LLM provider unavailable, falling back")
}

// ListProviders returns the names of the configured providers, sorted.
func (r *Router) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for _, name := range r.sortedNames() {
		if r.providers[name].IsConfigured() {
			names = append(names, name)
		}
	}
	return names
}

// DefaultProvider returns the preferred provider name.
func (r *Router) DefaultProvider() string {
	return r.preferred
}

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	Name         string   `json:"name"`
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
	Default      bool     `json:"default"`
	Configured   bool     `json:"configured"`
}

// GetProvidersInfo describes every registered provider, sorted by name.
func (r *Router) GetProvidersInfo() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.sortedNames()
	infos := make([]ProviderInfo, len(names))
	for i, name := range names {
		p := r.providers[name]
		infos[i] = ProviderInfo{
			Name:         name,
			Models:       p.AvailableModels(),
			DefaultModel: p.DefaultModel(),
			Default:      name == r.preferred,
			Configured:   p.IsConfigured(),
		}
	}
	return infos
}

func (r *Router) sortedNames() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
