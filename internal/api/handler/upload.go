package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/nl2sql/internal/api/response"
)

const defaultMaxUploadBytes = 5 << 20

var dictionaryExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
	".toml": true,
}

// DocumentWriter stores uploaded documents.
type DocumentWriter interface {
	Write(ctx context.Context, name string, data []byte) error
}

// UploadHandler accepts dictionary files and loads them into the session
type UploadHandler struct {
	orch     Orchestrator
	docs     DocumentWriter
	maxBytes int64
}

// NewUploadHandler creates a new upload handler. A non-positive maxBytes uses 5 MiB.
func NewUploadHandler(orch Orchestrator, docs DocumentWriter, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &UploadHandler{orch: orch, docs: docs, maxBytes: maxBytes}
}

// UploadDictionary stores the "file" form field under uploads/<session>/ and loads it
func (h *UploadHandler) UploadDictionary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		response.BadRequest(w, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !dictionaryExtensions[ext] {
		response.BadRequest(w, fmt.Sprintf("unsupported dictionary format %q, use yaml, json or toml", ext))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "failed to read file")
		return
	}

	stored := path.Join("uploads", sessionID, name)
	if err := h.docs.Write(r.Context(), stored, data); err != nil {
		response.InternalError(w, "failed to store file")
		return
	}

	response.Envelope(w, h.orch.LoadDictionary(r.Context(), sessionID, stored))
}
