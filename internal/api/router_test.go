package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/app"
	"github.com/Rrens/nl2sql/internal/config"
	"github.com/Rrens/nl2sql/internal/repository/postgres"
)

func newTestApp(t *testing.T, secret string) *app.App {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Dictionary.Dir = t.TempDir()
	cfg.Auth.JWTSecret = secret

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func createSession(t *testing.T, h http.Handler) (string, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data struct {
			SessionID string `json:"session_id"`
			Token     string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Data.SessionID, body.Data.Token
}

func TestRouter_MessageRoundTrip(t *testing.T) {
	h := NewRouter(newTestApp(t, ""))
	id, token := createSession(t, h)
	assert.Empty(t, token)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages",
		strings.NewReader(`{"message":"connection status"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessionId":"`+id+`"`)
	assert.Contains(t, rec.Body.String(), "Not connected")
}

func TestRouter_TokensGuardSessions(t *testing.T) {
	h := NewRouter(newTestApp(t, "router-secret-with-enough-length!!"))
	id, token := createSession(t, h)
	require.NotEmpty(t, token)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h := NewRouter(newTestApp(t, ""))

	for _, path := range []string{"/api/v1/health", "/api/v1/ready", "/api/v1/backends", "/api/v1/llm-providers", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "nl2sql_http_requests_total")
}

func TestRouter_SnapshotsDisabled(t *testing.T) {
	h := NewRouter(newTestApp(t, ""))
	id, _ := createSession(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/save", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

// unavailableDB records query arguments and fails every query.
type unavailableDB struct {
	queries [][]any
}

func (d *unavailableDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unavailable")
}

func (d *unavailableDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	d.queries = append(d.queries, args)
	return nil, errors.New("unavailable")
}

func (d *unavailableDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestRouter_SuggestionsAreSessionScoped(t *testing.T) {
	a := newTestApp(t, "router-secret-with-enough-length!!")
	db := &unavailableDB{}
	a.Transcript = postgres.NewTranscriptRepository(db)
	h := NewRouter(a)
	id, token := createSession(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/suggestions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/suggestions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, db.queries)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/suggestions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, db.queries, 1)
	assert.Equal(t, id, db.queries[0][0])
}
