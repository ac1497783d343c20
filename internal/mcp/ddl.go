package mcp

import (
	"fmt"
	"strings"
)

// BuildDDL renders table metadata as CREATE TABLE statements for LLM context.
func BuildDDL(tables []*TableInfo) string {
	var ddl strings.Builder

	for i, t := range tables {
		if t == nil {
			continue
		}
		if i > 0 {
			ddl.WriteString("\n\n")
		}

		if t.RowCount != nil {
			fmt.Fprintf(&ddl, "-- %d rows\n", *t.RowCount)
		}
		fmt.Fprintf(&ddl, "CREATE TABLE %s (\n", t.Ref().String())

		for j, c := range t.Columns {
			fmt.Fprintf(&ddl, "  %s %s", c.Name, c.DataType)
			if !c.Nullable {
				ddl.WriteString(" NOT NULL")
			}
			if c.PrimaryKey {
				ddl.WriteString(" PRIMARY KEY")
			}
			if j < len(t.Columns)-1 {
				ddl.WriteString(",")
			}

			var notes []string
			if c.Description != "" {
				notes = append(notes, c.Description)
			}
			if len(c.SampleValues) > 0 {
				notes = append(notes, "e.g. "+strings.Join(c.SampleValues, ", "))
			}
			if len(notes) > 0 {
				fmt.Fprintf(&ddl, " -- %s", strings.Join(notes, "; "))
			}
			ddl.WriteString("\n")
		}

		ddl.WriteString(");")
	}

	return ddl.String()
}
