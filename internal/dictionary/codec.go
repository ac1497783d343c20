// Package dictionary encodes, validates, merges and renders data dictionaries.
package dictionary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Rrens/nl2sql/internal/domain"
)

// DefaultFile is used when load or save names no document.
const DefaultFile = "data_dictionary.yaml"

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFor picks the encoding from the extension of source. Unknown
// extensions are YAML.
func FormatFor(source string) Format {
	switch strings.ToLower(path.Ext(strings.TrimSpace(source))) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// IsDocument reports whether name has a dictionary file extension.
func IsDocument(name string) bool {
	switch strings.ToLower(path.Ext(strings.TrimSpace(name))) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

// Decode parses data in the format of source and checks its structure.
func Decode(source string, data []byte) (*domain.Dictionary, error) {
	var d domain.Dictionary

	var err error
	switch FormatFor(source) {
	case FormatJSON:
		err = json.Unmarshal(data, &d)
	case FormatTOML:
		err = toml.Unmarshal(data, &d)
	default:
		err = yaml.Unmarshal(data, &d)
	}
	if err != nil {
		return nil, &domain.DictionaryFormatError{Source: source, Reason: firstLine(err.Error())}
	}

	if ferr := validate(&d); ferr != nil {
		ferr.Source = source
		return nil, ferr
	}

	return &d, nil
}

// Validate checks the required structure and fills table names from their keys.
func Validate(d *domain.Dictionary) error {
	if ferr := validate(d); ferr != nil {
		return ferr
	}
	return nil
}

func validate(d *domain.Dictionary) *domain.DictionaryFormatError {
	if d == nil || d.Tables == nil {
		return &domain.DictionaryFormatError{Reason: "missing required key \"tables\""}
	}

	for key, table := range d.Tables {
		if table == nil {
			return &domain.DictionaryFormatError{Reason: fmt.Sprintf("table %q must be a mapping", key)}
		}
		if table.Name == "" {
			table.Name = key
		}
		for i, col := range table.Columns {
			if strings.TrimSpace(col.Name) == "" {
				return &domain.DictionaryFormatError{
					Reason: fmt.Sprintf("column %d of table %q has no name", i+1, key),
				}
			}
		}
	}

	return nil
}

// Encode renders d in the format of destination.
func Encode(destination string, d *domain.Dictionary) ([]byte, error) {
	if d == nil {
		return nil, domain.ErrNoDictionaryLoaded
	}

	switch FormatFor(destination) {
	case FormatJSON:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode dictionary: %w", err)
		}
		return append(data, '\n'), nil
	case FormatTOML:
		data, err := toml.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to encode dictionary: %w", err)
		}
		return data, nil
	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return nil, fmt.Errorf("failed to encode dictionary: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode dictionary: %w", err)
		}
		return buf.Bytes(), nil
	}
}

func firstLine(s string) string {
	if line, _, ok := strings.Cut(s, "\n"); ok {
		return line
	}
	return s
}
