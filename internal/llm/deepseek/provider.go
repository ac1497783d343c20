// Package deepseek registers DeepSeek, which serves the OpenAI chat
// completions API under its own models.
package deepseek

import (
	"github.com/Rrens/nl2sql/internal/llm/openai"
)

const baseURL = "https://api.deepseek.com/v1"

// NewProvider creates a DeepSeek provider. An empty model selects deepseek-chat.
func NewProvider(apiKey, defaultModel string, opts ...openai.Option) *openai.Provider {
	opts = append([]openai.Option{
		openai.WithBaseURL(baseURL),
		openai.WithIdentity("deepseek", "deepseek-chat", "deepseek-coder", "deepseek-reasoner"),
	}, opts...)
	return openai.NewProvider(apiKey, defaultModel, opts...)
}
