package domain

import "sort"

// DescriptionUnavailable marks a field whose description could not be generated.
const DescriptionUnavailable = "description unavailable"

// Dictionary is a data dictionary document.
type Dictionary struct {
	Database      string                 `json:"database,omitempty" yaml:"database,omitempty" toml:"database,omitempty"`
	Schema        string                 `json:"schema,omitempty" yaml:"schema,omitempty" toml:"schema,omitempty"`
	GeneratedAt   string                 `json:"generated_at,omitempty" yaml:"generated_at,omitempty" toml:"generated_at,omitempty"`
	Tables        map[string]*TableEntry `json:"tables" yaml:"tables" toml:"tables"`
	Relationships []Relationship         `json:"relationships,omitempty" yaml:"relationships,omitempty" toml:"relationships,omitempty"`
	BusinessRules []string               `json:"business_rules,omitempty" yaml:"business_rules,omitempty" toml:"business_rules,omitempty"`
}

// TableEntry documents one table.
type TableEntry struct {
	Name        string       `json:"name" yaml:"name" toml:"name"`
	Database    string       `json:"database,omitempty" yaml:"database,omitempty" toml:"database,omitempty"`
	Schema      string       `json:"schema,omitempty" yaml:"schema,omitempty" toml:"schema,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	RowCount    *int64       `json:"row_count,omitempty" yaml:"row_count,omitempty" toml:"row_count,omitempty"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
	Columns     []FieldEntry `json:"columns" yaml:"columns" toml:"columns"`
}

// FieldEntry documents one column.
type FieldEntry struct {
	Name          string   `json:"name" yaml:"name" toml:"name"`
	Type          string   `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Nullable      bool     `json:"nullable,omitempty" yaml:"nullable,omitempty" toml:"nullable,omitempty"`
	PrimaryKey    bool     `json:"primary_key,omitempty" yaml:"primary_key,omitempty" toml:"primary_key,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Category      string   `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
	BusinessRules []string `json:"business_rules,omitempty" yaml:"business_rules,omitempty" toml:"business_rules,omitempty"`
	Relationships []string `json:"relationships,omitempty" yaml:"relationships,omitempty" toml:"relationships,omitempty"`
	SampleValues  []string `json:"sample_values,omitempty" yaml:"sample_values,omitempty" toml:"sample_values,omitempty"`
}

// Relationship links columns across tables.
type Relationship struct {
	From        string `json:"from" yaml:"from" toml:"from"`
	To          string `json:"to" yaml:"to" toml:"to"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// Unavailable reports whether the field description is missing.
func (f FieldEntry) Unavailable() bool {
	return f.Description == "" || f.Description == DescriptionUnavailable
}

// TableNames returns the documented table names in sorted order.
func (d *Dictionary) TableNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Tables))
	for name := range d.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (d *Dictionary) Clone() *Dictionary {
	if d == nil {
		return nil
	}
	c := *d
	c.Tables = make(map[string]*TableEntry, len(d.Tables))
	for name, t := range d.Tables {
		c.Tables[name] = t.Clone()
	}
	c.Relationships = append([]Relationship(nil), d.Relationships...)
	c.BusinessRules = append([]string(nil), d.BusinessRules...)
	return &c
}

// Clone returns a deep copy.
func (t *TableEntry) Clone() *TableEntry {
	if t == nil {
		return nil
	}
	c := *t
	if t.RowCount != nil {
		n := *t.RowCount
		c.RowCount = &n
	}
	c.Tags = append([]string(nil), t.Tags...)
	c.Columns = make([]FieldEntry, len(t.Columns))
	for i, f := range t.Columns {
		f.BusinessRules = append([]string(nil), f.BusinessRules...)
		f.Relationships = append([]string(nil), f.Relationships...)
		f.SampleValues = append([]string(nil), f.SampleValues...)
		c.Columns[i] = f
	}
	return &c
}
