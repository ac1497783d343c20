package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Rrens/nl2sql/internal/dictionary"
	"github.com/Rrens/nl2sql/internal/docstore"
	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/mcp"
	"github.com/Rrens/nl2sql/internal/session"
)

// DictionaryOptions configure the dictionary agent.
type DictionaryOptions struct {
	DefaultFile string
	Concurrency int
}

// DictionaryAgent generates, loads and saves data dictionaries.
type DictionaryAgent struct {
	dbs  Databases
	lang Language
	docs Documents
	opts DictionaryOptions
	now  func() time.Time
}

// NewDictionaryAgent creates a dictionary agent.
func NewDictionaryAgent(dbs Databases, lang Language, docs Documents, opts DictionaryOptions) *DictionaryAgent {
	if opts.DefaultFile == "" {
		opts.DefaultFile = dictionary.DefaultFile
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &DictionaryAgent{dbs: dbs, lang: lang, docs: docs, opts: opts, now: time.Now}
}

// Generate documents tables, defaulting to the session's selection. Tables
// whose descriptions cannot be generated are kept with their fields marked
// unavailable and the result is partial.
func (a *DictionaryAgent) Generate(ctx context.Context, tx *session.Tx, tables []string) domain.AgentResult {
	adapter, err := liveAdapter(ctx, a.dbs, tx)
	if err != nil {
		return domain.Failure(err)
	}

	s := tx.Session()
	refs := s.SelectedTables
	if len(tables) > 0 {
		refs = make([]domain.TableRef, 0, len(tables))
		for _, name := range tables {
			refs = append(refs, domain.ParseTableRef(name, s.Database, s.Schema))
		}
	}
	refs = uniqueRefs(refs)
	if len(refs) == 0 {
		return domain.Failure(domain.ErrNoTablesSelected)
	}

	backend := backendOf(s)
	infos, err := describeTables(ctx, adapter, refs, a.opts.Concurrency)
	if err != nil {
		return domain.Failure(domain.NewProviderError(backend, "fetch_metadata", err))
	}

	described := a.describeAll(ctx, infos)

	generated := &domain.Dictionary{
		Database:    s.Database,
		Schema:      s.Schema,
		GeneratedAt: a.now().UTC().Format(time.RFC3339),
		Tables:      make(map[string]*domain.TableEntry, len(infos)),
	}

	keys := entryKeys(infos)

	var warnings []string
	scope := make([]domain.TableRef, len(infos))
	for i, info := range infos {
		entry, missing := buildEntry(info, described[i].fields)
		generated.Tables[keys[i]] = entry
		scope[i] = info.Ref()

		switch {
		case described[i].err != nil:
			warnings = append(warnings, fmt.Sprintf("descriptions unavailable for %s: %v", info.Ref(), described[i].err))
		case missing > 0:
			warnings = append(warnings, fmt.Sprintf("%d fields of %s have no description", missing, info.Ref()))
		}
	}

	merged := dictionary.Merge(s.Dictionary, generated)
	s.Dictionary = merged
	if err := tx.Commit(ctx); err != nil {
		return domain.Failure(err)
	}

	names := make([]string, len(scope))
	for i, ref := range scope {
		names[i] = ref.String()
	}

	log.Info().
		Str("session_id", s.ID).
		Strs("tables", names).
		Int("warnings", len(warnings)).
		Msg("Data dictionary generated")

	doc := dictionary.Scope(merged, scope)
	if len(warnings) > 0 {
		msg := fmt.Sprintf("Generated data dictionary for %d tables (%s), some descriptions are unavailable.",
			len(scope), strings.Join(names, ", "))
		return domain.Partial(msg, warnings).WithDictionary(doc)
	}
	msg := fmt.Sprintf("Generated data dictionary for %d tables (%s).", len(scope), strings.Join(names, ", "))
	return domain.Success(msg).WithDictionary(doc)
}

// uniqueRefs drops repeated tables, comparing qualified names without case.
func uniqueRefs(refs []domain.TableRef) []domain.TableRef {
	seen := make(map[string]bool, len(refs))
	out := make([]domain.TableRef, 0, len(refs))
	for _, ref := range refs {
		k := strings.ToLower(ref.String())
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, ref)
	}
	return out
}

// entryKeys names each table by its bare name, qualifying the ones whose
// bare name is shared with another table of the batch.
func entryKeys(infos []*mcp.TableInfo) []string {
	count := make(map[string]int, len(infos))
	for _, info := range infos {
		count[strings.ToLower(info.Name)]++
	}
	keys := make([]string, len(infos))
	for i, info := range infos {
		keys[i] = info.Name
		if count[strings.ToLower(info.Name)] > 1 {
			keys[i] = info.Ref().String()
		}
	}
	return keys
}

type tableDescriptions struct {
	fields map[string]llm.FieldDescription
	err    error
}

// describeAll asks the language provider for field descriptions, one call per
// table. A failed call only affects its own table.
func (a *DictionaryAgent) describeAll(ctx context.Context, infos []*mcp.TableInfo) []tableDescriptions {
	out := make([]tableDescriptions, len(infos))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, info := range infos {
		g.Go(func() error {
			req := llm.DescribeRequest{Table: info.Ref().String(), RowCount: info.RowCount}
			for _, col := range info.Columns {
				req.Columns = append(req.Columns, llm.ColumnSample{
					Name:         col.Name,
					Type:         col.DataType,
					SampleValues: col.SampleValues,
				})
			}

			fields, err := a.lang.DescribeFields(ctx, req)
			if err != nil {
				log.Warn().Err(err).Str("table", req.Table).Msg("Field descriptions failed")
			}
			out[i] = tableDescriptions{fields: fields, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// buildEntry documents one table and counts the fields left without a description.
func buildEntry(info *mcp.TableInfo, fields map[string]llm.FieldDescription) (*domain.TableEntry, int) {
	entry := &domain.TableEntry{
		Name:     info.Name,
		Database: info.Database,
		Schema:   info.Schema,
		RowCount: info.RowCount,
		Columns:  make([]domain.FieldEntry, len(info.Columns)),
	}

	missing := 0
	for i, col := range info.Columns {
		f := domain.FieldEntry{
			Name:         col.Name,
			Type:         col.DataType,
			Nullable:     col.Nullable,
			PrimaryKey:   col.PrimaryKey,
			SampleValues: col.SampleValues,
		}

		if d, ok := fields[strings.ToLower(col.Name)]; ok {
			f.Description = d.Description
			f.Category = d.Category
			f.BusinessRules = d.BusinessRules
		} else if col.Description != "" {
			f.Description = col.Description
		} else {
			f.Description = domain.DescriptionUnavailable
			missing++
		}
		entry.Columns[i] = f
	}

	return entry, missing
}

// Load replaces the session dictionary with the document at source. The
// previous dictionary stays in place when reading or parsing fails.
func (a *DictionaryAgent) Load(ctx context.Context, tx *session.Tx, source string) domain.AgentResult {
	source = strings.TrimSpace(source)
	named := source != ""
	if !named {
		source = a.opts.DefaultFile
	}

	data, err := a.docs.Read(ctx, source)
	if err != nil {
		res := domain.Failure(domain.NewProviderError("docstore", "read", err))
		if !named && errors.Is(err, docstore.ErrNotFound) {
			return a.offerDocuments(ctx, res, source)
		}
		return res
	}

	d, err := dictionary.Decode(source, data)
	if err != nil {
		return domain.Failure(err)
	}

	s := tx.Session()
	s.Dictionary = d
	if err := tx.Commit(ctx); err != nil {
		return domain.Failure(err)
	}

	names := d.TableNames()
	sort.Strings(names)
	msg := fmt.Sprintf("Loaded data dictionary from %s with %d tables", source, len(names))
	if len(names) > 0 {
		msg += ": " + strings.Join(names, ", ")
	}
	return domain.Success(msg + ".").WithDictionary(d)
}

// offerDocuments replaces the message of a failed default load with the
// dictionary documents that can be loaded by name.
func (a *DictionaryAgent) offerDocuments(ctx context.Context, res domain.AgentResult, missing string) domain.AgentResult {
	names, err := a.docs.List(ctx, "")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list dictionary documents")
		return res
	}

	var rows [][]any
	for _, name := range names {
		if dictionary.IsDocument(name) {
			rows = append(rows, []any{name})
		}
	}
	if len(rows) == 0 {
		res.Message = fmt.Sprintf("No dictionary found at %s and no dictionary files are stored. Generate one first.", missing)
		return res
	}

	files := make([]string, len(rows))
	for i, row := range rows {
		files[i] = row[0].(string)
	}
	res.Message = fmt.Sprintf("No dictionary found at %s. Available dictionary files: %s. Load one by name.", missing, strings.Join(files, ", "))
	return res.WithData(numbered([]string{"file"}, rows))
}

// Preview summarises the session dictionary, one row per documented table.
func (a *DictionaryAgent) Preview(ctx context.Context, tx *session.Tx) domain.AgentResult {
	d := tx.Session().Dictionary
	if d == nil {
		return domain.Failure(domain.ErrNoDictionaryLoaded)
	}

	names := d.TableNames()
	sort.Strings(names)

	rows := make([][]any, len(names))
	for i, name := range names {
		t := d.Tables[name]
		rows[i] = []any{name, t.Description, len(t.Columns), strings.Join(t.Tags, ", ")}
	}

	msg := fmt.Sprintf("The data dictionary documents %d tables", len(names))
	if n := len(d.Relationships); n > 0 {
		msg += fmt.Sprintf(" and %d relationships", n)
	}
	return domain.Success(msg + ".").
		WithData(numbered([]string{"table", "description", "columns", "tags"}, rows)).
		WithDictionary(d)
}

// Save writes the session dictionary to destination.
func (a *DictionaryAgent) Save(ctx context.Context, tx *session.Tx, destination string) domain.AgentResult {
	s := tx.Session()
	if s.Dictionary == nil {
		return domain.Failure(domain.ErrNoDictionaryLoaded)
	}

	destination = strings.TrimSpace(destination)
	if destination == "" {
		destination = a.opts.DefaultFile
	}

	data, err := dictionary.Encode(destination, s.Dictionary)
	if err != nil {
		return domain.Failure(err)
	}

	if err := a.docs.Write(ctx, destination, data); err != nil {
		return domain.Failure(domain.NewProviderError("docstore", "write", err))
	}

	return domain.Success(fmt.Sprintf("Saved data dictionary with %d tables to %s (%s).",
		len(s.Dictionary.Tables), destination, dictionary.FormatFor(destination)))
}
