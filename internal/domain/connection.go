package domain

import "time"

// Backend names a database-capability provider.
type Backend string

const (
	BackendSnowflake Backend = "snowflake"
	BackendPostgres  Backend = "postgres"
	BackendMySQL     Backend = "mysql"
	BackendSQLite    Backend = "sqlite"
)

// ConnectionDescriptor holds the credentials used to open a connection.
// Values come from configuration or from the caller, never from the core.
type ConnectionDescriptor struct {
	Backend   Backend `json:"backend" validate:"required,oneof=snowflake postgres mysql sqlite"`
	Account   string  `json:"account,omitempty" validate:"required_if=Backend snowflake"`
	User      string  `json:"user,omitempty"`
	Password  string  `json:"-"`
	Warehouse string  `json:"warehouse,omitempty"`
	Database  string  `json:"database,omitempty"`
	Schema    string  `json:"schema,omitempty"`
	Role      string  `json:"role,omitempty"`
	Host      string  `json:"host,omitempty" validate:"required_if=Backend postgres,required_if=Backend mysql"`
	Port      int     `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	SSLMode   string  `json:"ssl_mode,omitempty"`
	Path      string  `json:"path,omitempty" validate:"required_if=Backend sqlite"`
	Endpoint  string  `json:"endpoint,omitempty" validate:"omitempty,url"`
}

// Merge returns d with every non-empty field of override applied on top.
func (d ConnectionDescriptor) Merge(override *ConnectionDescriptor) ConnectionDescriptor {
	if override == nil {
		return d
	}
	merged := d
	if override.Backend != "" {
		merged.Backend = override.Backend
	}
	setIf(&merged.Account, override.Account)
	setIf(&merged.User, override.User)
	setIf(&merged.Password, override.Password)
	setIf(&merged.Warehouse, override.Warehouse)
	setIf(&merged.Database, override.Database)
	setIf(&merged.Schema, override.Schema)
	setIf(&merged.Role, override.Role)
	setIf(&merged.Host, override.Host)
	setIf(&merged.SSLMode, override.SSLMode)
	setIf(&merged.Path, override.Path)
	setIf(&merged.Endpoint, override.Endpoint)
	if override.Port != 0 {
		merged.Port = override.Port
	}
	return merged
}

// Redacted drops the password.
func (d ConnectionDescriptor) Redacted() ConnectionDescriptor {
	d.Password = ""
	return d
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ConnectionRef points at a pooled live connection.
type ConnectionRef struct {
	ID          string               `json:"id"`
	Backend     Backend              `json:"backend"`
	Descriptor  ConnectionDescriptor `json:"descriptor"`
	ConnectedAt time.Time            `json:"connected_at"`
}
