// Package agent holds the specialized agents the orchestrator dispatches to.
// Every agent works on a staged session transaction and commits only after its
// provider calls succeed.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/mcp"
	"github.com/Rrens/nl2sql/internal/session"
)

// Databases is the database-capability provider.
type Databases interface {
	Connect(ctx context.Context, dbType string, config mcp.ConnectionConfig) (string, mcp.Adapter, error)
	Adapter(ctx context.Context, ref string) (mcp.Adapter, error)
	Release(ref string) error
}

// Language is the language-capability provider.
type Language interface {
	GenerateSQL(ctx context.Context, req llm.SQLRequest) (*llm.SQLResult, error)
	DescribeFields(ctx context.Context, req llm.DescribeRequest) (map[string]llm.FieldDescription, error)
	ExplainError(ctx context.Context, question, sql, failure string) (string, error)
}

// Documents reads and writes dictionary documents.
type Documents interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// SchemaCache keeps rendered schema context between queries.
type SchemaCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
}

var (
	_ Databases = (*mcp.Router)(nil)
	_ Language  = (*llm.Client)(nil)
)

// liveAdapter returns the adapter behind the session's connection ref. A ref
// the pool no longer knows, or one that fails its health check, is cleared and
// committed so the caller sees NotConnected instead of a silent reconnect.
func liveAdapter(ctx context.Context, dbs Databases, tx *session.Tx) (mcp.Adapter, error) {
	s := tx.Session()
	if s.Connection == nil {
		return nil, domain.ErrNotConnected
	}

	adapter, err := dbs.Adapter(ctx, s.Connection.ID)
	if err == nil {
		return adapter, nil
	}

	if errors.Is(err, mcp.ErrConnectionNotFound) || errors.Is(err, mcp.ErrConnectionStale) {
		log.Warn().Err(err).
			Str("session_id", s.ID).
			Str("ref", s.Connection.ID).
			Msg("Clearing stale connection reference")

		s.ClearConnection()
		s.LastListing = nil
		if cerr := tx.Commit(ctx); cerr != nil {
			log.Warn().Err(cerr).Str("session_id", s.ID).Msg("Failed to commit cleared connection")
		}
		return nil, domain.ErrStaleConnection
	}

	return nil, domain.NewProviderError(string(s.Connection.Backend), "health_check", err)
}

// describeTables fetches metadata for refs concurrently, at most limit at a time.
// The first failure cancels the rest.
func describeTables(ctx context.Context, adapter mcp.Adapter, refs []domain.TableRef, limit int) ([]*mcp.TableInfo, error) {
	infos := make([]*mcp.TableInfo, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, ref := range refs {
		g.Go(func() error {
			info, err := adapter.DescribeTable(gctx, ref)
			if err != nil {
				return fmt.Errorf("failed to describe %s: %w", ref, err)
			}
			infos[i] = info
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func backendOf(s *domain.Session) string {
	if s.Connection == nil {
		return "database"
	}
	return string(s.Connection.Backend)
}

func numbered(header []string, rows [][]any) *domain.Table {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = append([]any{i + 1}, row...)
	}
	return &domain.Table{
		Columns:  append([]string{"#"}, header...),
		Rows:     out,
		RowCount: len(out),
	}
}
