package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/session"
)

// Selection names the tables to select. Positions are 1-based indexes into
// the last table listing.
type Selection struct {
	Names     []string
	Positions []int
	All       bool
}

// Empty reports whether the selection names nothing.
func (s Selection) Empty() bool {
	return len(s.Names) == 0 && len(s.Positions) == 0 && !s.All
}

// ExplorationAgent lists and selects databases, schemas and tables.
type ExplorationAgent struct {
	dbs Databases
}

// NewExplorationAgent creates an exploration agent.
func NewExplorationAgent(dbs Databases) *ExplorationAgent {
	return &ExplorationAgent{dbs: dbs}
}

// ListDatabases shows a numbered list of databases.
func (a *ExplorationAgent) ListDatabases(ctx context.Context, tx *session.Tx) domain.AgentResult {
	adapter, err := liveAdapter(ctx, a.dbs, tx)
	if err != nil {
		return domain.Failure(err)
	}

	s := tx.Session()
	names, err := adapter.ListDatabases(ctx)
	if err != nil {
		return domain.Failure(domain.NewProviderError(backendOf(s), "list_databases", err))
	}

	items := make([]domain.ListingItem, len(names))
	rows := make([][]any, len(names))
	for i, name := range names {
		items[i] = domain.ListingItem{Name: name}
		rows[i] = []any{name}
	}

	s.LastListing = &domain.Listing{Kind: domain.ListingDatabases, Items: items}
	if err := tx.Commit(ctx); err != nil {
		return domain.Failure(err)
	}

	return domain.Success(fmt.Sprintf("Found %d databases.", len(names))).
		WithData(numbered([]string{"database"}, rows))
}

// ListSchemas shows the schemas of database, or of the current database.
func (a *ExplorationAgent) ListSchemas(ctx context.Context, tx *session.Tx, database string) domain.AgentResult {
	adapter, err := liveAdapter(ctx, a.dbs, tx)
	if err != nil {
		return domain.Failure(err)
	}

	s := tx.Session()
	if database == "" {
		database = s.Database
	}

	names, err := adapter.ListSchemas(ctx, database)
	if err != nil {
		return domain.Failure(domain.NewProviderError(backendOf(s), "list_schemas", err))
	}

	items := make([]domain.ListingItem, len(names))
	rows := make([][]any, len(names))
	for i, name := range names {
		items[i] = domain.ListingItem{Name: name, Database: database}
		rows[i] = []any{name}
	}

	if database != s.Database {
		s.Database = database
		s.Schema = ""
	}
	s.LastListing = &domain.Listing{Kind: domain.ListingSchemas, Database: database, Items: items}
	if err := tx.Commit(ctx); err != nil {
		return domain.Failure(err)
	}

	msg := fmt.Sprintf("Found %d schemas", len(names))
	if database != "" {
		msg += " in " + database
	}
	return domain.Success(msg + ".").WithData(numbered([]string{"schema"}, rows))
}

// ListTables shows the tables of database.schema with row counts. Empty
// arguments fall back to the current selection.
func (a *ExplorationAgent) ListTables(ctx context.Context, tx *session.Tx, database, schema string) domain.AgentResult {
	adapter, err := liveAdapter(ctx, a.dbs, tx)
	if err != nil {
		return domain.Failure(err)
	}

	s := tx.Session()
	if database == "" {
		database = s.Database
	}
	if schema == "" && database == s.Database {
		schema = s.Schema
	}

	tables, err := adapter.ListTables(ctx, database, schema)
	if err != nil {
		return domain.Failure(domain.NewProviderError(backendOf(s), "list_tables", err))
	}

	items := make([]domain.ListingItem, len(tables))
	rows := make([][]any, len(tables))
	for i, t := range tables {
		items[i] = domain.ListingItem{Name: t.Name, Database: t.Database, Schema: t.Schema, RowCount: t.RowCount}
		var count any
		if t.RowCount != nil {
			count = *t.RowCount
		}
		rows[i] = []any{t.Name, t.Kind, count}
	}

	s.Database = database
	s.Schema = schema
	s.LastListing = &domain.Listing{Kind: domain.ListingTables, Database: database, Schema: schema, Items: items}
	if err := tx.Commit(ctx); err != nil {
		return domain.Failure(err)
	}

	where := domain.TableRef{Database: database, Schema: schema}.String()
	msg := fmt.Sprintf("Found %d tables", len(tables))
	if where != "" {
		msg += " in " + where
	}
	if len(tables) > 0 {
		msg += ". Select tables by number or name, for example \"select tables 1 and 2\""
	}
	return domain.Success(msg + ".").WithData(numbered([]string{"table", "type", "rows"}, rows))
}

// SelectTables sets the session's table scope. Nothing is staged on failure.
func (a *ExplorationAgent) SelectTables(ctx context.Context, tx *session.Tx, sel Selection) domain.AgentResult {
	adapter, err := liveAdapter(ctx, a.dbs, tx)
	if err != nil {
		return domain.Failure(err)
	}

	if sel.Empty() {
		return domain.Failure(fmt.Errorf("%w: name the tables or their numbers to select", domain.ErrInvalidRequest))
	}

	s := tx.Session()
	var listing []domain.ListingItem
	if s.LastListing != nil && s.LastListing.Kind == domain.ListingTables {
		listing = s.LastListing.Items
	}

	var refs []domain.TableRef
	seen := make(map[string]bool)
	add := func(ref domain.TableRef) {
		key := strings.ToLower(ref.String())
		if !seen[key] {
			seen[key] = true
			refs = append(refs, ref)
		}
	}

	if sel.All {
		if listing == nil {
			tables, err := adapter.ListTables(ctx, s.Database, s.Schema)
			if err != nil {
				return domain.Failure(domain.NewProviderError(backendOf(s), "list_tables", err))
			}
			for _, t := range tables {
				add(domain.TableRef{Database: t.Database, Schema: t.Schema, Name: t.Name})
			}
		}
		for _, item := range listing {
			add(item.TableRef())
		}
	}

	for _, pos := range sel.Positions {
		if pos < 1 || pos > len(listing) {
			return domain.Failure(&domain.SelectionOutOfRangeError{Position: pos, Available: len(listing)})
		}
		add(listing[pos-1].TableRef())
	}

	for _, name := range sel.Names {
		ref, ok := listedOrQualified(name, s, listing)
		if !ok {
			return domain.Failure(fmt.Errorf("%w: %q is not in the last table listing; list tables first or use a qualified name", domain.ErrInvalidRequest, name))
		}
		add(ref)
	}

	if len(refs) == 0 {
		return domain.Failure(fmt.Errorf("%w: no tables matched the selection", domain.ErrInvalidRequest))
	}

	s.SelectedTables = refs
	if err := tx.Commit(ctx); err != nil {
		return domain.Failure(err)
	}

	names := make([]string, len(refs))
	rows := make([][]any, len(refs))
	for i, ref := range refs {
		names[i] = ref.String()
		rows[i] = []any{ref.String()}
	}
	return domain.Success(fmt.Sprintf("Selected %d tables: %s.", len(refs), strings.Join(names, ", "))).
		WithData(numbered([]string{"table"}, rows))
}

// DescribeTable shows columns, types and sample values of one table.
func (a *ExplorationAgent) DescribeTable(ctx context.Context, tx *session.Tx, name string) domain.AgentResult {
	adapter, err := liveAdapter(ctx, a.dbs, tx)
	if err != nil {
		return domain.Failure(err)
	}
	if strings.TrimSpace(name) == "" {
		return domain.Failure(fmt.Errorf("%w: name the table to describe", domain.ErrInvalidRequest))
	}

	s := tx.Session()
	var listing []domain.ListingItem
	if s.LastListing != nil && s.LastListing.Kind == domain.ListingTables {
		listing = s.LastListing.Items
	}
	ref := resolveName(name, s, listing)

	info, err := adapter.DescribeTable(ctx, ref)
	if err != nil {
		return domain.Failure(domain.NewProviderError(backendOf(s), "describe_table", err))
	}

	rows := make([][]any, len(info.Columns))
	for i, col := range info.Columns {
		rows[i] = []any{
			col.Name,
			col.DataType,
			col.Nullable,
			col.PrimaryKey,
			col.Description,
			strings.Join(col.SampleValues, ", "),
		}
	}

	msg := fmt.Sprintf("%s has %d columns", info.Ref(), len(info.Columns))
	if info.RowCount != nil {
		msg += fmt.Sprintf(" and %d rows", *info.RowCount)
	}
	return domain.Success(msg + ".").WithData(&domain.Table{
		Columns:  []string{"column", "type", "nullable", "primary_key", "description", "samples"},
		Rows:     rows,
		RowCount: len(rows),
	})
}

// listedOrQualified resolves a selected name. Bare names must appear in the
// last listing.
func listedOrQualified(name string, s *domain.Session, listing []domain.ListingItem) (domain.TableRef, bool) {
	name = strings.Trim(strings.TrimSpace(name), "\"'`")
	if strings.Contains(name, ".") {
		return domain.ParseTableRef(name, s.Database, s.Schema), true
	}
	for _, item := range listing {
		if strings.EqualFold(item.Name, name) {
			return item.TableRef(), true
		}
	}
	return domain.TableRef{}, false
}

// resolveName qualifies a bare name from the last listing when it appears
// there, otherwise from the current database and schema.
func resolveName(name string, s *domain.Session, listing []domain.ListingItem) domain.TableRef {
	name = strings.Trim(strings.TrimSpace(name), "\"'`")
	if !strings.Contains(name, ".") {
		for _, item := range listing {
			if strings.EqualFold(item.Name, name) {
				return item.TableRef()
			}
		}
	}
	return domain.ParseTableRef(name, s.Database, s.Schema)
}
