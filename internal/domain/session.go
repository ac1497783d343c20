package domain

import (
	"context"
	"strings"
	"time"
)

// Session is the per-conversation state shared by the agents.
type Session struct {
	ID             string            `json:"id"`
	Connection     *ConnectionRef    `json:"connection,omitempty"`
	Database       string            `json:"database,omitempty"`
	Schema         string            `json:"schema,omitempty"`
	Stage          string            `json:"stage,omitempty"`
	SelectedTables []TableRef        `json:"selected_tables,omitempty"`
	LastListing    *Listing          `json:"last_listing,omitempty"`
	History        []QueryRecord     `json:"history,omitempty"`
	Dictionary     *Dictionary       `json:"dictionary,omitempty"`
	Preferences    map[string]string `json:"preferences,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivity   time.Time         `json:"last_activity"`
}

// NewSession creates an empty session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Preferences:  make(map[string]string),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// IsConnected reports whether the session holds a connection reference.
func (s *Session) IsConnected() bool {
	return s.Connection != nil
}

// ClearConnection drops the connection reference.
func (s *Session) ClearConnection() {
	s.Connection = nil
}

// PushHistory prepends rec and evicts the oldest entries beyond limit.
func (s *Session) PushHistory(rec QueryRecord, limit int) {
	history := make([]QueryRecord, 0, len(s.History)+1)
	history = append(history, rec)
	history = append(history, s.History...)
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	s.History = history
}

// RecentHistory returns at most n entries, most recent first.
func (s *Session) RecentHistory(n int) []QueryRecord {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[:n]
}

// Clone returns a deep copy so staged writes never alias committed state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s
	if s.Connection != nil {
		conn := *s.Connection
		c.Connection = &conn
	}
	c.SelectedTables = append([]TableRef(nil), s.SelectedTables...)
	if s.LastListing != nil {
		listing := *s.LastListing
		listing.Items = append([]ListingItem(nil), s.LastListing.Items...)
		c.LastListing = &listing
	}
	c.History = make([]QueryRecord, len(s.History))
	for i, rec := range s.History {
		c.History[i] = rec.clone()
	}
	c.Dictionary = s.Dictionary.Clone()
	c.Preferences = make(map[string]string, len(s.Preferences))
	for k, v := range s.Preferences {
		c.Preferences[k] = v
	}
	return &c
}

// TableRef identifies a table by its fully qualified name.
type TableRef struct {
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Name     string `json:"name"`
}

// ParseTableRef splits a possibly qualified name (db.schema.table or schema.table)
// and fills missing parts from the given defaults.
func ParseTableRef(name, database, schema string) TableRef {
	parts := strings.Split(strings.TrimSpace(name), ".")
	switch len(parts) {
	case 3:
		return TableRef{Database: parts[0], Schema: parts[1], Name: parts[2]}
	case 2:
		return TableRef{Database: database, Schema: parts[0], Name: parts[1]}
	default:
		return TableRef{Database: database, Schema: schema, Name: parts[0]}
	}
}

// String returns the qualified name.
func (t TableRef) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Database, t.Schema, t.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// ListingKind tells what a numbered listing enumerates.
type ListingKind string

const (
	ListingDatabases ListingKind = "databases"
	ListingSchemas   ListingKind = "schemas"
	ListingTables    ListingKind = "tables"
)

// Listing is the most recent numbered listing shown to the user.
type Listing struct {
	Kind     ListingKind   `json:"kind"`
	Database string        `json:"database,omitempty"`
	Schema   string        `json:"schema,omitempty"`
	Items    []ListingItem `json:"items"`
}

// ListingItem is one numbered entry.
type ListingItem struct {
	Name     string `json:"name"`
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
	RowCount *int64 `json:"row_count,omitempty"`
}

// TableRef converts a table listing entry into a reference.
func (i ListingItem) TableRef() TableRef {
	return TableRef{Database: i.Database, Schema: i.Schema, Name: i.Name}
}

// Snapshotter persists sessions on explicit save.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context, session *Session) error
	LoadSnapshot(ctx context.Context, id string) (*Session, error)
}

// TranscriptRecorder keeps an audit trail of handled messages.
type TranscriptRecorder interface {
	Record(ctx context.Context, entry *TranscriptEntry) error
}
