package docstore

import (
	"context"
	"fmt"
	"strings"
)

// Router dispatches a source to the store that owns it.
type Router struct {
	file  Store
	stage Store
	mongo Store
}

// RouterOption configures optional stores.
type RouterOption func(*Router)

// WithStage routes "@stage/" and "s3://" sources to s.
func WithStage(s Store) RouterOption {
	return func(r *Router) { r.stage = s }
}

// WithMongo routes "mongo://" sources to s.
func WithMongo(s Store) RouterOption {
	return func(r *Router) { r.mongo = s }
}

// NewRouter uses file for every source no other store claims.
func NewRouter(file Store, opts ...RouterOption) *Router {
	r := &Router{file: file}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the store responsible for source.
func (r *Router) Resolve(source string) (Store, error) {
	source = strings.TrimSpace(source)
	switch {
	case strings.HasPrefix(source, StagePrefix), strings.HasPrefix(source, "s3://"):
		if r.stage == nil {
			return nil, fmt.Errorf("stage store is not configured for %s", source)
		}
		return r.stage, nil
	case strings.HasPrefix(source, MongoPrefix):
		if r.mongo == nil {
			return nil, fmt.Errorf("mongo store is not configured for %s", source)
		}
		return r.mongo, nil
	default:
		if r.file == nil {
			return nil, fmt.Errorf("file store is not configured")
		}
		return r.file, nil
	}
}

func (r *Router) Read(ctx context.Context, source string) ([]byte, error) {
	s, err := r.Resolve(source)
	if err != nil {
		return nil, err
	}
	return s.Read(ctx, strings.TrimSpace(source))
}

func (r *Router) Write(ctx context.Context, destination string, data []byte) error {
	s, err := r.Resolve(destination)
	if err != nil {
		return err
	}
	return s.Write(ctx, strings.TrimSpace(destination), data)
}

func (r *Router) List(ctx context.Context, prefix string) ([]string, error) {
	s, err := r.Resolve(prefix)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, strings.TrimSpace(prefix))
}
