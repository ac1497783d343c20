package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/orchestrator"
)

const maxRenderedRows = 50

// renderer prints envelopes either as pterm output or as indented JSON.
type renderer struct {
	out    io.Writer
	asJSON bool
}

func (r renderer) envelope(env orchestrator.Envelope) error {
	if r.asJSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	switch env.Status {
	case domain.StatusSuccess:
		pterm.Fprintln(r.out, pterm.Success.Sprint(env.Message))
	case domain.StatusPartial:
		pterm.Fprintln(r.out, pterm.Warning.Sprint(env.Message))
	default:
		pterm.Fprintln(r.out, pterm.Error.Sprint(env.Message))
	}

	if env.UsedDefaultRoute {
		pterm.Fprintln(r.out, pterm.Info.Sprint("Treated as a data question."))
	}

	for _, w := range env.Warnings {
		pterm.Fprintln(r.out, pterm.Warning.Sprint(w))
	}

	if env.SQL != "" {
		pterm.Fprintln(r.out, pterm.DefaultBox.WithTitle("SQL").Sprint(env.SQL))
	}

	if env.Data != nil && len(env.Data.Columns) > 0 {
		if err := r.table(env.Data); err != nil {
			return err
		}
	}

	if env.Dictionary != nil {
		return r.dictionary(env.Dictionary)
	}
	return nil
}

func (r renderer) table(t *domain.Table) error {
	data := pterm.TableData{t.Columns}
	for i, row := range t.Rows {
		if i == maxRenderedRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cell(v)
		}
		data = append(data, cells)
	}

	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	pterm.Fprintln(r.out, rendered)

	if hidden := len(t.Rows) - maxRenderedRows; hidden > 0 {
		pterm.Fprintln(r.out, pterm.Info.Sprintf("%d more rows not shown.", hidden))
	}
	if t.Truncated {
		pterm.Fprintln(r.out, pterm.Info.Sprintf("Result capped at %d rows.", t.RowCount))
	}
	return nil
}

func (r renderer) dictionary(d *domain.Dictionary) error {
	items := make([]pterm.BulletListItem, 0, len(d.Tables))
	for _, name := range d.TableNames() {
		t := d.Tables[name]
		text := fmt.Sprintf("%s (%d columns)", name, len(t.Columns))
		if t.Description != "" {
			text += ": " + t.Description
		}
		items = append(items, pterm.BulletListItem{Level: 0, Text: text})
	}

	rendered, err := pterm.DefaultBulletList.WithItems(items).Srender()
	if err != nil {
		return fmt.Errorf("failed to render dictionary: %w", err)
	}
	pterm.Fprintln(r.out, rendered)
	return nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
