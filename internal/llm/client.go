package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/domain"
)

// Options tune every request made by a Client.
type Options struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client exposes the language operations the agents need on top of a Router.
type Client struct {
	router *Router
	opts   Options
}

// NewClient creates a client. Zero option values fall back to defaults.
func NewClient(router *Router, opts Options) *Client {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{router: router, opts: opts}
}

// ProviderName returns the provider requests are routed to.
func (c *Client) ProviderName() string {
	if c.opts.Provider != "" {
		return c.opts.Provider
	}
	return c.router.DefaultProvider()
}

// SQLResult is a generated statement.
type SQLResult struct {
	SQL        string
	Raw        string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// ClassifyIntent labels a message with one of the intent labels.
func (c *Client) ClassifyIntent(ctx context.Context, message string) (IntentLabel, error) {
	out, err := c.complete(ctx, "classify_intent", CompletionRequest{
		System:    classifySystemPrompt,
		Prompt:    BuildClassifyPrompt(message),
		MaxTokens: 10,
	})
	if err != nil {
		return "", err
	}

	label, ok := ParseIntentLabel(out.Text)
	if !ok {
		return "", domain.NewProviderError(c.ProviderName(), "classify_intent",
			fmt.Errorf("unrecognized label %q", strings.TrimSpace(out.Text)))
	}
	return label, nil
}

// GenerateSQL turns a question into a statement.
func (c *Client) GenerateSQL(ctx context.Context, req SQLRequest) (*SQLResult, error) {
	out, err := c.complete(ctx, "generate_sql", CompletionRequest{
		System:      sqlSystemPrompt,
		Prompt:      BuildSQLPrompt(req),
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	sql := ExtractSQL(out.Text)
	if sql == "" {
		return nil, domain.NewProviderError(c.ProviderName(), "generate_sql", fmt.Errorf("empty response"))
	}

	return &SQLResult{
		SQL:        sql,
		Raw:        out.Text,
		Model:      out.Model,
		TokensUsed: out.TokensUsed,
		LatencyMs:  out.LatencyMs,
	}, nil
}

// GenerateText runs a free-form prompt.
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	out, err := c.complete(ctx, "generate_text", CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

// DescribeFields asks for descriptions of every column of one table.
func (c *Client) DescribeFields(ctx context.Context, req DescribeRequest) (map[string]FieldDescription, error) {
	text, err := c.GenerateText(ctx, describeSystemPrompt, BuildDescribePrompt(req))
	if err != nil {
		return nil, err
	}

	fields, err := ParseFieldDescriptions(text)
	if err != nil {
		return nil, domain.NewProviderError(c.ProviderName(), "describe_fields", err)
	}
	return fields, nil
}

// ExplainError asks for a short, human readable cause of a failed statement.
func (c *Client) ExplainError(ctx context.Context, question, sql, failure string) (string, error) {
	return c.GenerateText(ctx, "", BuildExplainPrompt(question, sql, failure))
}

func (c *Client) complete(ctx context.Context, op string, req CompletionRequest) (*Completion, error) {
	provider, err := c.router.GetProvider(c.opts.Provider)
	if err != nil {
		return nil, domain.NewProviderError(c.ProviderName(), op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	out, err := provider.Complete(ctx, req, c.opts.Model)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider.Name()).Str("op", op).Msg("LLM request failed")
		return nil, domain.NewProviderError(provider.Name(), op, err)
	}

	log.Debug().
		Str("provider", provider.Name()).
		Str("op", op).
		Str("model", out.Model).
		Int("tokens", out.TokensUsed).
		Int64("latency_ms", out.LatencyMs).
		Msg("LLM request completed")

	return out, nil
}
