package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/nl2sql/internal/api/response"
	"github.com/Rrens/nl2sql/internal/domain"
)

// MessageRequest carries one free-text user message.
type MessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// DictionaryRequest names a dictionary document.
type DictionaryRequest struct {
	Source      string `json:"source,omitempty" validate:"max=512"`
	Destination string `json:"destination,omitempty" validate:"max=512"`
}

// ConnectRequest overrides configured connection defaults. Empty fields keep the default.
type ConnectRequest struct {
	Backend   domain.Backend `json:"backend,omitempty"`
	Account   string         `json:"account,omitempty"`
	User      string         `json:"user,omitempty"`
	Password  string         `json:"password,omitempty"`
	Warehouse string         `json:"warehouse,omitempty"`
	Database  string         `json:"database,omitempty"`
	Schema    string         `json:"schema,omitempty"`
	Role      string         `json:"role,omitempty"`
	Host      string         `json:"host,omitempty"`
	Port      int            `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	SSLMode   string         `json:"ssl_mode,omitempty"`
	Path      string         `json:"path,omitempty"`
	Endpoint  string         `json:"endpoint,omitempty" validate:"omitempty,url"`
}

func (c ConnectRequest) descriptor() *domain.ConnectionDescriptor {
	return &domain.ConnectionDescriptor{
		Backend:   c.Backend,
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Warehouse: c.Warehouse,
		Database:  c.Database,
		Schema:    c.Schema,
		Role:      c.Role,
		Host:      c.Host,
		Port:      c.Port,
		SSLMode:   c.SSLMode,
		Path:      c.Path,
		Endpoint:  c.Endpoint,
	}
}

// MessageHandler handles the conversational endpoints of a session
type MessageHandler struct {
	orch Orchestrator
}

func NewMessageHandler(orch Orchestrator) *MessageHandler {
	return &MessageHandler{orch: orch}
}

// Send classifies and dispatches one message
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if _, err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Invalid(w, err)
		return
	}

	env := h.orch.Handle(r.Context(), chi.URLParam(r, "sessionID"), req.Message)
	response.Envelope(w, env)
}

// Connect opens a connection; the body may override configured credentials
func (h *MessageHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	present, err := decodeOptional(r, &req)
	if err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Invalid(w, err)
		return
	}

	var override *domain.ConnectionDescriptor
	if present {
		override = req.descriptor()
	}

	env := h.orch.Connect(r.Context(), chi.URLParam(r, "sessionID"), override)
	response.Envelope(w, env)
}

// LoadDictionary reads a dictionary document into the session
func (h *MessageHandler) LoadDictionary(w http.ResponseWriter, r *http.Request) {
	var req DictionaryRequest
	if _, err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Invalid(w, err)
		return
	}

	env := h.orch.LoadDictionary(r.Context(), chi.URLParam(r, "sessionID"), req.Source)
	response.Envelope(w, env)
}

// SaveDictionary writes the session dictionary
func (h *MessageHandler) SaveDictionary(w http.ResponseWriter, r *http.Request) {
	var req DictionaryRequest
	if _, err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Invalid(w, err)
		return
	}

	env := h.orch.SaveDictionary(r.Context(), chi.URLParam(r, "sessionID"), req.Destination)
	response.Envelope(w, env)
}
