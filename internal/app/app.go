// Package app assembles the orchestrator and its providers from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/agent"
	"github.com/Rrens/nl2sql/internal/config"
	"github.com/Rrens/nl2sql/internal/docstore"
	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/llm/anthropic"
	"github.com/Rrens/nl2sql/internal/llm/deepseek"
	"github.com/Rrens/nl2sql/internal/llm/gemini"
	"github.com/Rrens/nl2sql/internal/llm/ollama"
	"github.com/Rrens/nl2sql/internal/llm/openai"
	"github.com/Rrens/nl2sql/internal/mcp"
	mcpMySQL "github.com/Rrens/nl2sql/internal/mcp/mysql"
	mcpPostgres "github.com/Rrens/nl2sql/internal/mcp/postgres"
	mcpSnowflake "github.com/Rrens/nl2sql/internal/mcp/snowflake"
	mcpSQLite "github.com/Rrens/nl2sql/internal/mcp/sqlite"
	"github.com/Rrens/nl2sql/internal/orchestrator"
	"github.com/Rrens/nl2sql/internal/repository/postgres"
	"github.com/Rrens/nl2sql/internal/repository/redis"
	"github.com/Rrens/nl2sql/internal/security"
	"github.com/Rrens/nl2sql/internal/session"
)

// App holds every long-lived component. Optional parts are nil when disabled.
type App struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Sessions     *session.Store
	Databases    *mcp.Router
	Documents    *docstore.Router
	LLM          *llm.Router
	Tokens       *security.TokenManager

	DB          *postgres.DB
	Redis       *redis.Client
	RateLimiter *redis.RateLimiter
	SchemaCache *redis.SchemaCache
	Transcript  *postgres.TranscriptRepository
	Snapshots   *postgres.SnapshotRepository

	closers []func()
}

// New connects the configured backing services and builds the orchestrator.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		Tokens: security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenTTL),
	}

	if err := a.connectBackingServices(ctx); err != nil {
		a.Close()
		return nil, err
	}

	docs, err := a.newDocuments(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Documents = docs

	snapshots, err := a.newSnapshotter()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Databases = NewDatabases()
	a.closers = append(a.closers, a.Databases.CloseAll)
	a.LLM = NewLLMRouter(cfg.LLM)
	lang := llm.NewClient(a.LLM, llm.Options{
		Provider:    cfg.LLM.DefaultProvider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})

	storeOpts := []session.Option{session.WithExpireHook(agent.ReleaseOnExpire(a.Databases))}
	if snapshots != nil {
		storeOpts = append(storeOpts, session.WithSnapshotter(snapshots))
	}
	a.Sessions = session.NewStore(cfg.Session.IdleTimeout, storeOpts...)

	var cache agent.SchemaCache
	if a.SchemaCache != nil {
		cache = a.SchemaCache
	}

	agents := orchestrator.Agents{
		Connection: agent.NewConnectionAgent(a.Databases, agent.ConnectionOptions{
			Defaults:        cfg.DefaultConnection(),
			ConnectTimeout:  cfg.MCP.ConnectTimeout,
			ReleasePrevious: cfg.MCP.ReleasePrevious,
		}),
		Exploration: agent.NewExplorationAgent(a.Databases),
		Query: agent.NewQueryAgent(a.Databases, lang, cache, agent.QueryOptions{
			MaxRows:          cfg.Security.MaxRows,
			Timeout:          cfg.Security.QueryTimeout,
			HistoryWindow:    cfg.Session.HistoryWindow,
			HistoryLimit:     cfg.Session.HistoryLimit,
			SampleRows:       cfg.Session.SampleRows,
			MaxContextTables: cfg.Query.MaxContextTables,
			Concurrency:      cfg.Query.Concurrency,
			ExplainErrors:    cfg.Query.ExplainErrors,
		}),
		Dictionary: agent.NewDictionaryAgent(a.Databases, lang, docs, agent.DictionaryOptions{
			DefaultFile: cfg.Dictionary.DefaultFile,
			Concurrency: cfg.Dictionary.Concurrency,
		}),
	}

	var classifierLang orchestrator.IntentClassifier
	if cfg.LLM.ClassifyIntents {
		classifierLang = lang
	}

	var opts []orchestrator.Option
	if a.Transcript != nil {
		opts = append(opts, orchestrator.WithTranscript(a.Transcript))
	}
	a.Orchestrator = orchestrator.New(a.Sessions, orchestrator.NewClassifier(nil, classifierLang), agents, opts...)

	log.Info().
		Str("backend", cfg.MCP.Backend).
		Str("llm_provider", cfg.LLM.DefaultProvider).
		Strs("llm_providers", a.LLM.ListProviders()).
		Bool("snapshots", snapshots != nil).
		Bool("transcript", a.Transcript != nil).
		Msg("orchestrator ready")

	return a, nil
}

// Start runs background maintenance until ctx is done.
func (a *App) Start(ctx context.Context) {
	go a.Sessions.Run(ctx, a.Config.Session.SweepInterval)

	if a.Snapshots != nil {
		if n, err := a.Snapshots.DeleteExpired(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete expired snapshots")
		} else if n > 0 {
			log.Info().Int64("deleted", n).Msg("expired snapshots removed")
		}
	}
}

// Ready pings the enabled backing services.
func (a *App) Ready(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.Ping(ctx); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
	}
	return nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) connectBackingServices(ctx context.Context) error {
	cfg := a.Config

	if cfg.Database.Enabled {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		a.Transcript = postgres.NewTranscriptRepository(db.Pool)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.SchemaCache = redis.NewSchemaCache(client, cfg.Query.SchemaCacheTTL)
		a.RateLimiter = redis.NewRateLimiter(client, cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
	}

	return nil
}

func (a *App) newSnapshotter() (domain.Snapshotter, error) {
	cfg := a.Config
	if cfg.Session.SnapshotStore == "" || cfg.Session.SnapshotStore == "none" {
		return nil, nil
	}
	if cfg.Security.EncryptionKey == "" {
		return nil, errors.New("session snapshots need security.encryption_key")
	}

	enc, err := security.NewEncryptorFromSecret(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot encryptor: %w", err)
	}

	switch cfg.Session.SnapshotStore {
	case "redis":
		if a.Redis == nil {
			return nil, errors.New("redis snapshot store requires redis.enabled")
		}
		return redis.NewSnapshotStore(a.Redis, enc, cfg.Session.SnapshotTTL), nil
	case "postgres":
		if a.DB == nil {
			return nil, errors.New("postgres snapshot store requires database.enabled")
		}
		a.Snapshots = postgres.NewSnapshotRepository(a.DB.Pool, enc, cfg.Session.SnapshotTTL)
		return a.Snapshots, nil
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", cfg.Session.SnapshotStore)
	}
}

func (a *App) newDocuments(ctx context.Context) (*docstore.Router, error) {
	cfg := a.Config.Dictionary

	file, err := docstore.NewFileStore(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary directory: %w", err)
	}

	var opts []docstore.RouterOption
	if cfg.Stage.Enabled() {
		stage, err := docstore.NewStageStore(ctx, docstore.StageConfig{
			Endpoint:         cfg.Stage.Endpoint,
			Region:           cfg.Stage.Region,
			Bucket:           cfg.Stage.Bucket,
			AccessKeyID:      cfg.Stage.AccessKey,
			SecretAccessKey:  cfg.Stage.SecretKey,
			UseSSL:           cfg.Stage.UseSSL,
			Prefix:           cfg.Stage.Prefix,
			AutoCreateBucket: cfg.Stage.AutoCreateBucket,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, docstore.WithStage(stage))
	}

	if cfg.Mongo.URI != "" {
		mongo, err := docstore.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongo.Close(closeCtx)
		})
		opts = append(opts, docstore.WithMongo(mongo))
	}

	return docstore.NewRouter(file, opts...), nil
}

// NewDatabases registers every supported backend.
func NewDatabases() *mcp.Router {
	r := mcp.NewRouter()
	r.RegisterAdapter(string(domain.BackendSnowflake), mcpSnowflake.NewAdapter)
	r.RegisterAdapter(string(domain.BackendPostgres), mcpPostgres.NewAdapter)
	r.RegisterAdapter(string(domain.BackendMySQL), mcpMySQL.NewAdapter)
	r.RegisterAdapter(string(domain.BackendSQLite), mcpSQLite.NewAdapter)
	return r
}

// NewLLMRouter registers every provider that has credentials.
func NewLLMRouter(cfg config.LLMConfig) *llm.Router {
	r := llm.NewRouter(cfg.DefaultProvider)

	if cfg.Ollama.Host != "" {
		r.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}
	if cfg.OpenAI.APIKey != "" {
		var opts []openai.Option
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		r.RegisterProvider(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, opts...))
	}
	if cfg.Anthropic.APIKey != "" {
		r.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	}
	if cfg.DeepSeek.APIKey != "" {
		r.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model))
	}
	if cfg.Gemini.APIKey != "" {
		r.RegisterProvider(gemini.NewProvider(cfg.Gemini.APIKey, cfg.Gemini.Model))
	} else {
		log.Debug().Msg("gemini api key is empty, skipping registration")
	}

	return r
}
