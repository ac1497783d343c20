package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/llm/anthropic"
)

func TestProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be terse", body["system"])
		assert.EqualValues(t, 2048, body["max_tokens"])

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"query"}],"usage":{"input_tokens":5,"output_tokens":1}}`))
	}))
	defer server.Close()

	p := anthropic.NewProvider("key", "", anthropic.WithBaseURL(server.URL))
	out, err := p.Complete(context.Background(), llm.CompletionRequest{System: "be terse", Prompt: "classify"}, "")
	require.NoError(t, err)
	assert.Equal(t, "query", out.Text)
	assert.Equal(t, 6, out.TokensUsed)
	assert.Equal(t, p.DefaultModel(), out.Model)
}

func TestProvider_Complete_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	p := anthropic.NewProvider("key", "", anthropic.WithBaseURL(server.URL))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{Prompt: "q"}, "")
	assert.Error(t, err)
}
