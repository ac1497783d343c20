package mcp

import (
	"database/sql"
	"fmt"
	"time"
)

// DefaultSampleSize is how many distinct values DescribeTable keeps per column.
const DefaultSampleSize = 5

// ScanRows reads at most maxRows rows. One extra row is read to detect truncation.
func ScanRows(rows *sql.Rows, maxRows int) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var resultRows [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			values[i] = normalizeValue(v)
		}

		resultRows = append(resultRows, values)

		if maxRows > 0 && len(resultRows) > maxRows {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	truncated := maxRows > 0 && len(resultRows) > maxRows
	if truncated {
		resultRows = resultRows[:maxRows]
	}

	return &QueryResult{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
	}, nil
}

// SampleValues collects up to limit distinct non-null values per column.
func SampleValues(result *QueryResult, limit int) map[string][]string {
	samples := make(map[string][]string, len(result.Columns))
	seen := make(map[string]map[string]bool, len(result.Columns))

	for _, row := range result.Rows {
		for i, col := range result.Columns {
			if i >= len(row) || row[i] == nil {
				continue
			}
			if len(samples[col]) >= limit {
				continue
			}
			v := fmt.Sprint(row[i])
			if seen[col] == nil {
				seen[col] = make(map[string]bool)
			}
			if seen[col][v] {
				continue
			}
			seen[col][v] = true
			samples[col] = append(samples[col], v)
		}
	}

	return samples
}

// AttachSamples copies sample values onto matching columns.
func AttachSamples(info *TableInfo, samples map[string][]string) {
	for i := range info.Columns {
		if v, ok := samples[info.Columns[i].Name]; ok {
			info.Columns[i].SampleValues = v
		}
	}
}

// normalizeValue converts driver types into JSON-friendly values.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}
