package dictionary

import (
	"strings"

	"github.com/Rrens/nl2sql/internal/domain"
)

// Merge folds a freshly generated document into an existing one and returns
// a new document. Neither input is modified.
//
// Regenerated tables take structural fields from generated and keep any
// curated text already present in existing. Generated text only fills gaps
// or replaces the unavailable marker. Tables absent from generated are kept
// as they are.
func Merge(existing, generated *domain.Dictionary) *domain.Dictionary {
	if existing == nil {
		return generated.Clone()
	}
	if generated == nil {
		return existing.Clone()
	}

	merged := existing.Clone()
	if merged.Tables == nil {
		merged.Tables = make(map[string]*domain.TableEntry)
	}
	if merged.Database == "" {
		merged.Database = generated.Database
	}
	if merged.Schema == "" {
		merged.Schema = generated.Schema
	}
	if generated.GeneratedAt != "" {
		merged.GeneratedAt = generated.GeneratedAt
	}

	for _, key := range generated.TableNames() {
		fresh := generated.Tables[key]
		if fresh == nil {
			continue
		}
		ref := entryRef(generated, key, fresh)
		if oldKey, old := Find(merged, ref); old != nil {
			merged.Tables[oldKey] = mergeTable(old, fresh)
			continue
		}
		if _, taken := merged.Tables[key]; taken {
			key = ref.String()
		}
		merged.Tables[key] = fresh.Clone()
	}

	merged.Relationships = mergeRelationships(merged.Relationships, generated.Relationships)
	merged.BusinessRules = mergeStrings(merged.BusinessRules, generated.BusinessRules)

	return merged
}

func mergeTable(old, fresh *domain.TableEntry) *domain.TableEntry {
	t := fresh.Clone()
	if old.Description != "" {
		t.Description = old.Description
	}
	if len(old.Tags) > 0 {
		t.Tags = append([]string(nil), old.Tags...)
	}

	previous := make(map[string]domain.FieldEntry, len(old.Columns))
	for _, col := range old.Columns {
		previous[strings.ToLower(col.Name)] = col
	}

	for i, col := range t.Columns {
		prev, ok := previous[strings.ToLower(col.Name)]
		if !ok {
			continue
		}
		if !prev.Unavailable() {
			col.Description = prev.Description
		} else if col.Description == "" {
			col.Description = prev.Description
		}
		if prev.Category != "" {
			col.Category = prev.Category
		}
		if len(prev.BusinessRules) > 0 {
			col.BusinessRules = append([]string(nil), prev.BusinessRules...)
		}
		if len(prev.Relationships) > 0 {
			col.Relationships = append([]string(nil), prev.Relationships...)
		}
		t.Columns[i] = col
	}

	return t
}

func mergeRelationships(existing, generated []domain.Relationship) []domain.Relationship {
	seen := make(map[string]bool, len(existing))
	out := append([]domain.Relationship(nil), existing...)
	for _, r := range existing {
		seen[strings.ToLower(r.From+"->"+r.To)] = true
	}
	for _, r := range generated {
		key := strings.ToLower(r.From + "->" + r.To)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func mergeStrings(existing, generated []string) []string {
	out := append([]string(nil), existing...)
	for _, s := range generated {
		found := false
		for _, e := range out {
			if strings.EqualFold(e, s) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the key and entry documenting ref. Names compare without
// case. A database or schema missing on either side matches anything, and
// among several candidates the one agreeing on the most parts wins.
func Find(d *domain.Dictionary, ref domain.TableRef) (string, *domain.TableEntry) {
	if d == nil || ref.Name == "" {
		return "", nil
	}

	var (
		bestKey   string
		best      *domain.TableEntry
		bestScore = -1
	)
	for _, key := range d.TableNames() {
		t := d.Tables[key]
		if t == nil {
			continue
		}
		score, ok := matchScore(entryRef(d, key, t), ref)
		if ok && score > bestScore {
			bestKey, best, bestScore = key, t, score
		}
	}
	return bestKey, best
}

// entryRef qualifies a table entry from its own fields, then its key, then
// the document defaults.
func entryRef(d *domain.Dictionary, key string, t *domain.TableEntry) domain.TableRef {
	fromKey := domain.ParseTableRef(key, "", "")
	return domain.TableRef{
		Database: firstNonEmpty(t.Database, fromKey.Database, d.Database),
		Schema:   firstNonEmpty(t.Schema, fromKey.Schema, d.Schema),
		Name:     firstNonEmpty(t.Name, fromKey.Name),
	}
}

func matchScore(have, want domain.TableRef) (int, bool) {
	if !strings.EqualFold(have.Name, want.Name) {
		return 0, false
	}
	score := 0
	for _, pair := range [][2]string{{have.Database, want.Database}, {have.Schema, want.Schema}} {
		switch {
		case pair[0] == "" || pair[1] == "":
		case strings.EqualFold(pair[0], pair[1]):
			score++
		default:
			return 0, false
		}
	}
	return score, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Scope returns a copy restricted to tables. An empty list keeps every table.
// Relationships are kept when either end touches a kept table.
func Scope(d *domain.Dictionary, tables []domain.TableRef) *domain.Dictionary {
	if d == nil {
		return nil
	}
	if len(tables) == 0 {
		return d.Clone()
	}

	out := d.Clone()
	out.Tables = make(map[string]*domain.TableEntry, len(tables))
	kept := make(map[string]bool, len(tables))
	for _, ref := range tables {
		key, t := Find(d, ref)
		if t == nil {
			continue
		}
		out.Tables[key] = t.Clone()
		kept[strings.ToLower(t.Name)] = true
	}

	out.Relationships = nil
	for _, r := range d.Relationships {
		if kept[relationTable(r.From)] || kept[relationTable(r.To)] {
			out.Relationships = append(out.Relationships, r)
		}
	}

	return out
}

// relationTable extracts the table of a "table.column" endpoint.
func relationTable(endpoint string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(endpoint)), ".")
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[len(parts)-2]
}
