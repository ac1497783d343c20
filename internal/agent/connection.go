package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/mcp"
	"github.com/Rrens/nl2sql/internal/session"
)

// ConnectionOptions configure the connection agent.
type ConnectionOptions struct {
	Defaults        domain.ConnectionDescriptor
	ConnectTimeout  time.Duration
	ReleasePrevious bool
}

// ConnectionAgent opens, reports and closes the session's database connection.
type ConnectionAgent struct {
	dbs      Databases
	opts     ConnectionOptions
	validate *validator.Validate
	now      func() time.Time
}

// NewConnectionAgent creates a connection agent.
func NewConnectionAgent(dbs Databases, opts ConnectionOptions) *ConnectionAgent {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	return &ConnectionAgent{
		dbs:      dbs,
		opts:     opts,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Connect opens a connection with the configured defaults overridden by creds.
func (a *ConnectionAgent) Connect(ctx context.Context, tx *session.Tx, creds *domain.ConnectionDescriptor) domain.AgentResult {
	desc := a.opts.Defaults.Merge(creds)
	if desc.Backend == "" {
		desc.Backend = domain.BackendSnowflake
	}

	if err := a.validate.Struct(desc); err != nil {
		return domain.Failure(fmt.Errorf("%w: %s", domain.ErrInvalidRequest, describeValidation(err)))
	}

	cctx, cancel := context.WithTimeout(ctx, a.opts.ConnectTimeout)
	defer cancel()

	backend := string(desc.Backend)
	ref, adapter, err := a.dbs.Connect(cctx, backend, mcp.ConfigFromDescriptor(desc))
	if err != nil {
		log.Warn().Err(err).Str("backend", backend).Msg("Connection attempt failed")
		return domain.Failure(domain.NewProviderError(backend, "connect", err))
	}

	resolved := desc.Redacted()
	if reporter, ok := adapter.(mcp.ContextReporter); ok {
		if cc, err := reporter.CurrentContext(cctx); err == nil {
			applyContext(&resolved, cc)
		} else {
			log.Debug().Err(err).Str("backend", backend).Msg("Could not resolve connection context")
		}
	}

	s := tx.Session()
	previous := s.Connection
	if s.Database != resolved.Database || s.Schema != resolved.Schema {
		s.SelectedTables = nil
	}
	s.Connection = &domain.ConnectionRef{
		ID:          ref,
		Backend:     desc.Backend,
		Descriptor:  resolved,
		ConnectedAt: a.now(),
	}
	s.Database = resolved.Database
	s.Schema = resolved.Schema
	s.LastListing = nil

	if err := tx.Commit(ctx); err != nil {
		if relErr := a.dbs.Release(ref); relErr != nil {
			log.Warn().Err(relErr).Str("ref", ref).Msg("Failed to release uncommitted connection")
		}
		return domain.Failure(err)
	}

	if previous != nil && previous.ID != ref && a.opts.ReleasePrevious {
		if err := a.dbs.Release(previous.ID); err != nil {
			log.Warn().Err(err).Str("ref", previous.ID).Msg("Failed to release previous connection")
		}
	}

	log.Info().
		Str("session_id", s.ID).
		Str("backend", backend).
		Str("ref", ref).
		Msg("Session connected")

	return domain.Success(fmt.Sprintf("Connected to %s%s.", backend, describeTarget(resolved))).
		WithData(connectionTable(s.Connection))
}

// Status reports the current connection. A stale reference is cleared.
func (a *ConnectionAgent) Status(ctx context.Context, tx *session.Tx) domain.AgentResult {
	s := tx.Session()
	if s.Connection == nil {
		return domain.Success("Not connected. Say \"connect\" to open a connection.")
	}

	if _, err := liveAdapter(ctx, a.dbs, tx); err != nil {
		return domain.Failure(err)
	}

	conn := s.Connection
	return domain.Success(fmt.Sprintf("Connected to %s%s since %s.",
		conn.Backend, describeTarget(conn.Descriptor), conn.ConnectedAt.Format(time.RFC3339))).
		WithData(connectionTable(conn))
}

// Disconnect releases the pooled connection and clears the reference.
func (a *ConnectionAgent) Disconnect(ctx context.Context, tx *session.Tx) domain.AgentResult {
	s := tx.Session()
	if s.Connection == nil {
		return domain.Success("Not connected.")
	}

	ref := s.Connection.ID
	backend := s.Connection.Backend
	s.ClearConnection()
	s.LastListing = nil

	if err := tx.Commit(ctx); err != nil {
		return domain.Failure(err)
	}

	if err := a.dbs.Release(ref); err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Failed to release connection")
	}

	return domain.Success(fmt.Sprintf("Disconnected from %s.", backend))
}

func applyContext(d *domain.ConnectionDescriptor, cc *mcp.ConnectionContext) {
	if cc.Account != "" {
		d.Account = cc.Account
	}
	if cc.User != "" {
		d.User = cc.User
	}
	if cc.Warehouse != "" {
		d.Warehouse = cc.Warehouse
	}
	if cc.Database != "" {
		d.Database = cc.Database
	}
	if cc.Schema != "" {
		d.Schema = cc.Schema
	}
	if cc.Role != "" {
		d.Role = cc.Role
	}
}

func describeTarget(d domain.ConnectionDescriptor) string {
	var parts []string
	add := func(label, v string) {
		if v != "" {
			parts = append(parts, label+" "+v)
		}
	}
	add("account", d.Account)
	add("user", d.User)
	add("warehouse", d.Warehouse)
	add("database", d.Database)
	add("schema", d.Schema)
	if d.Path != "" {
		add("file", d.Path)
	} else {
		add("host", d.Host)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func connectionTable(ref *domain.ConnectionRef) *domain.Table {
	d := ref.Descriptor
	rows := [][]any{{"backend", string(ref.Backend)}}
	for _, kv := range [][2]string{
		{"account", d.Account},
		{"user", d.User},
		{"warehouse", d.Warehouse},
		{"database", d.Database},
		{"schema", d.Schema},
		{"role", d.Role},
		{"host", d.Host},
		{"path", d.Path},
	} {
		if kv[1] != "" {
			rows = append(rows, []any{kv[0], kv[1]})
		}
	}
	return &domain.Table{Columns: []string{"property", "value"}, Rows: rows, RowCount: len(rows)}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, strings.ToLower(fe.Field())+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
		}
	}
	return strings.Join(msgs, ", ")
}

// ReleaseOnExpire returns a session expire hook that releases the session's
// pooled connection.
func ReleaseOnExpire(dbs Databases) session.ExpireFunc {
	return func(ctx context.Context, s *domain.Session) {
		if s.Connection == nil {
			return
		}
		if err := dbs.Release(s.Connection.ID); err != nil {
			log.Warn().Err(err).
				Str("session_id", s.ID).
				Str("ref", s.Connection.ID).
				Msg("Failed to release expired session connection")
		}
	}
}
