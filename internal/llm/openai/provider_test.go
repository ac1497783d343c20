package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/llm/openai"
)

func TestProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4", body["model"])
		assert.InDelta(t, 0.1, body["temperature"], 0.0001)
		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4-0613","choices":[{"message":{"content":"SELECT 1"}}],"usage":{"total_tokens":12}}`))
	}))
	defer server.Close()

	p := openai.NewProvider("sk-test", "", openai.WithBaseURL(server.URL))
	require.True(t, p.IsConfigured())

	out, err := p.Complete(context.Background(), llm.CompletionRequest{
		System:      "system prompt",
		Prompt:      "question",
		Temperature: 0.1,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out.Text)
	assert.Equal(t, "gpt-4-0613", out.Model)
	assert.Equal(t, 12, out.TokensUsed)
}

func TestProvider_Complete_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p := openai.NewProvider("bad", "gpt-4", openai.WithBaseURL(server.URL+"/"))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{Prompt: "q"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestProvider_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p := openai.NewProvider("sk", "gpt-4", openai.WithBaseURL(server.URL))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{Prompt: "q"}, "")
	assert.Error(t, err)
}
