package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/security"
)

func sessionRouter(auth *SessionAuth) http.Handler {
	r := chi.NewRouter()
	r.With(auth.Authenticate).Get("/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := GetSessionID(r.Context())
		_, _ = w.Write([]byte(id))
	})
	return r
}

func TestSessionAuth(t *testing.T) {
	tokens := security.NewTokenManager("test-secret-with-enough-length!!", time.Hour)
	token, _, err := tokens.Issue("s1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid", "/sessions/s1", "Bearer " + token, http.StatusOK},
		{"missing header", "/sessions/s1", "", http.StatusUnauthorized},
		{"bad scheme", "/sessions/s1", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "/sessions/s1", "Bearer nope", http.StatusUnauthorized},
		{"other session", "/sessions/s2", "Bearer " + token, http.StatusForbidden},
	}

	handler := sessionRouter(NewSessionAuth(tokens))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSessionAuth_DisabledPassesThrough(t *testing.T) {
	handler := sessionRouter(NewSessionAuth(security.NewTokenManager("", time.Hour)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/s9", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s9", rec.Body.String())
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	args := m.Called(key)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}

func (m *mockLimiter) Limit() int { return 70 }

func TestRateLimit(t *testing.T) {
	reset := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	limiter := new(mockLimiter)
	limiter.On("Allow", "s1").Return(true, 5, reset, nil).Once()
	limiter.On("Allow", "s1").Return(false, 0, reset, nil).Once()
	limiter.On("Allow", "s1").Return(false, 0, time.Time{}, errors.New("redis down")).Once()

	r := chi.NewRouter()
	auth := NewSessionAuth(nil)
	rl := NewRateLimitMiddleware(limiter)
	r.With(auth.Authenticate, rl.Limit).Get("/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	call := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/s1", nil))
		return rec
	}

	rec := call()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "70", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2026-03-01T12:01:00Z", rec.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusTooManyRequests, call().Code)

	// Limiter failures let the request through.
	assert.Equal(t, http.StatusNoContent, call().Code)
	limiter.AssertExpectations(t)
}

func TestLogger_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Logger)
	r.Get("/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	expected := `
# HELP nl2sql_http_requests_total Total number of HTTP requests.
# TYPE nl2sql_http_requests_total counter
nl2sql_http_requests_total{method="GET",route="/widgets/{id}",status="418"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(prometheus.DefaultGatherer,
		strings.NewReader(expected), "nl2sql_http_requests_total"))
}
