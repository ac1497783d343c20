package dictionary

import (
	"fmt"
	"strings"

	"github.com/Rrens/nl2sql/internal/domain"
)

// SchemaContext renders d as prompt context for SQL generation.
func SchemaContext(d *domain.Dictionary) string {
	if d == nil {
		return ""
	}

	var sb strings.Builder
	if d.Database != "" || d.Schema != "" {
		sb.WriteString("-- Data dictionary")
		if d.Database != "" {
			fmt.Fprintf(&sb, " for database %s", d.Database)
		}
		if d.Schema != "" {
			fmt.Fprintf(&sb, ", schema %s", d.Schema)
		}
		sb.WriteString("\n\n")
	}

	for i, name := range d.TableNames() {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeTable(&sb, name, d.Tables[name])
	}

	if len(d.Relationships) > 0 {
		sb.WriteString("\nRelationships:\n")
		for _, r := range d.Relationships {
			fmt.Fprintf(&sb, "- %s -> %s", r.From, r.To)
			if r.Description != "" {
				fmt.Fprintf(&sb, ": %s", r.Description)
			}
			sb.WriteString("\n")
		}
	}

	if len(d.BusinessRules) > 0 {
		sb.WriteString("\nBusiness rules:\n")
		for _, rule := range d.BusinessRules {
			fmt.Fprintf(&sb, "- %s\n", rule)
		}
	}

	return sb.String()
}

func writeTable(sb *strings.Builder, key string, t *domain.TableEntry) {
	ref := domain.TableRef{Database: t.Database, Schema: t.Schema, Name: t.Name}
	if t.Name == "" {
		ref.Name = key
	}

	fmt.Fprintf(sb, "Table: %s", ref.String())
	if t.RowCount != nil {
		fmt.Fprintf(sb, " (%d rows)", *t.RowCount)
	}
	sb.WriteString("\n")
	if t.Description != "" {
		fmt.Fprintf(sb, "Description: %s\n", t.Description)
	}

	sb.WriteString("Columns:\n")
	for _, col := range t.Columns {
		fmt.Fprintf(sb, "- %s", col.Name)

		var attrs []string
		if col.Type != "" {
			attrs = append(attrs, col.Type)
		}
		if col.PrimaryKey {
			attrs = append(attrs, "primary key")
		}
		if len(attrs) > 0 {
			fmt.Fprintf(sb, " (%s)", strings.Join(attrs, ", "))
		}
		if !col.Unavailable() {
			fmt.Fprintf(sb, ": %s", col.Description)
		}
		if col.Category != "" {
			fmt.Fprintf(sb, " [%s]", col.Category)
		}
		if len(col.SampleValues) > 0 {
			fmt.Fprintf(sb, " e.g. %s", strings.Join(col.SampleValues, ", "))
		}
		sb.WriteString("\n")
		for _, rule := range col.BusinessRules {
			fmt.Fprintf(sb, "    rule: %s\n", rule)
		}
	}
}
