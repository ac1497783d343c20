package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/dictionary"
	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/mcp"
	"github.com/Rrens/nl2sql/internal/security"
	"github.com/Rrens/nl2sql/internal/session"
)

// QueryOptions configure the query agent.
type QueryOptions struct {
	MaxRows          int
	Timeout          time.Duration
	HistoryWindow    int
	HistoryLimit     int
	SampleRows       int
	MaxContextTables int
	Concurrency      int
	ExplainErrors    bool
}

// QueryAgent turns a question into a checked read-only statement and runs it.
type QueryAgent struct {
	dbs     Databases
	lang    Language
	cache   SchemaCache
	checker *security.ReadOnlyChecker
	opts    QueryOptions
	now     func() time.Time
}

// NewQueryAgent creates a query agent. cache may be nil.
func NewQueryAgent(dbs Databases, lang Language, cache SchemaCache, opts QueryOptions) *QueryAgent {
	if opts.MaxRows <= 0 {
		opts.MaxRows = 1000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 5
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 5
	}
	if opts.MaxContextTables <= 0 {
		opts.MaxContextTables = 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &QueryAgent{
		dbs:     dbs,
		lang:    lang,
		cache:   cache,
		checker: security.NewReadOnlyChecker(),
		opts:    opts,
		now:     time.Now,
	}
}

// Query answers question with a generated statement.
func (a *QueryAgent) Query(ctx context.Context, tx *session.Tx, question string) domain.AgentResult {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Failure(fmt.Errorf("%w: ask a question about your data", domain.ErrInvalidRequest))
	}

	adapter, err := liveAdapter(ctx, a.dbs, tx)
	if err != nil {
		return domain.Failure(err)
	}

	s := tx.Session()
	backend := backendOf(s)

	schemaContext, err := a.schemaContext(ctx, s, adapter)
	if err != nil {
		return domain.Failure(domain.NewProviderError(backend, "fetch_metadata", err))
	}

	recent := s.RecentHistory(a.opts.HistoryWindow)
	history := make([]llm.HistoryTurn, len(recent))
	for i, rec := range recent {
		history[i] = llm.HistoryTurn{Question: rec.Question, SQL: rec.SQL, RowCount: rec.RowCount}
	}

	generated, err := a.lang.GenerateSQL(ctx, llm.SQLRequest{
		Question:      question,
		SchemaContext: schemaContext,
		Dialect:       adapter.SQLDialect(),
		DatabaseType:  adapter.DatabaseType(),
		History:       history,
	})
	if err != nil {
		return domain.Failure(err)
	}

	sql := generated.SQL
	if err := a.checker.Check(sql); err != nil {
		log.Warn().
			Str("session_id", s.ID).
			Str("sql", sql).
			Msg("Rejected generated statement")
		return domain.Failure(err).WithSQL(sql)
	}

	result, err := adapter.ExecuteQuery(ctx, sql, mcp.QueryOptions{MaxRows: a.opts.MaxRows, Timeout: a.opts.Timeout})
	if err != nil {
		return a.executionFailure(ctx, question, sql, backend, err)
	}

	sample := result.Rows
	if len(sample) > a.opts.SampleRows {
		sample = sample[:a.opts.SampleRows]
	}
	s.PushHistory(domain.QueryRecord{
		Question:   question,
		SQL:        sql,
		RowCount:   result.RowCount,
		Columns:    result.Columns,
		Sample:     sample,
		ExecutedAt: a.now().Unix(),
	}, a.opts.HistoryLimit)

	if err := tx.Commit(ctx); err != nil {
		return domain.Failure(err).WithSQL(sql)
	}

	log.Info().
		Str("session_id", s.ID).
		Int("rows", result.RowCount).
		Int("tokens", generated.TokensUsed).
		Int64("llm_latency_ms", generated.LatencyMs).
		Msg("Query executed")

	msg := fmt.Sprintf("Query returned %d rows.", result.RowCount)
	if result.Truncated {
		msg = fmt.Sprintf("Query returned more than %d rows, showing the first %d.", a.opts.MaxRows, result.RowCount)
	}
	return domain.Success(msg).WithSQL(sql).WithData(&domain.Table{
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
	})
}

func (a *QueryAgent) executionFailure(ctx context.Context, question, sql, backend string, err error) domain.AgentResult {
	failure := domain.Failure(domain.NewProviderError(backend, "execute_query", err)).WithSQL(sql)
	if !a.opts.ExplainErrors || domain.KindOf(err) != domain.KindProvider {
		return failure
	}

	explanation, xerr := a.lang.ExplainError(ctx, question, sql, err.Error())
	if xerr != nil {
		log.Debug().Err(xerr).Msg("Could not explain query failure")
		return failure
	}
	failure.Message += "\n\n" + explanation
	return failure
}

// schemaContext renders the loaded dictionary over the selected tables, or
// live metadata when the dictionary does not cover them.
func (a *QueryAgent) schemaContext(ctx context.Context, s *domain.Session, adapter mcp.Adapter) (string, error) {
	if s.Dictionary != nil {
		scoped := dictionary.Scope(s.Dictionary, s.SelectedTables)
		if len(scoped.Tables) > 0 {
			return dictionary.SchemaContext(scoped), nil
		}
	}

	refs := s.SelectedTables
	if len(refs) == 0 {
		tables, err := adapter.ListTables(ctx, s.Database, s.Schema)
		if err != nil {
			return "", fmt.Errorf("failed to list tables: %w", err)
		}
		if len(tables) > a.opts.MaxContextTables {
			tables = tables[:a.opts.MaxContextTables]
		}
		for _, t := range tables {
			refs = append(refs, domain.TableRef{Database: t.Database, Schema: t.Schema, Name: t.Name})
		}
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("no tables found in %s", domain.TableRef{Database: s.Database, Schema: s.Schema})
	}

	key := cacheKey(s, refs)
	if a.cache != nil {
		if ddl, ok := a.cache.Get(ctx, key); ok {
			return ddl, nil
		}
	}

	infos, err := describeTables(ctx, adapter, refs, a.opts.Concurrency)
	if err != nil {
		return "", err
	}
	ddl := mcp.BuildDDL(infos)

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, ddl); err != nil {
			log.Debug().Err(err).Msg("Failed to cache schema context")
		}
	}
	return ddl, nil
}

func cacheKey(s *domain.Session, refs []domain.TableRef) string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = strings.ToLower(ref.String())
	}
	return s.Connection.ID + ":" + strings.Join(names, ",")
}
