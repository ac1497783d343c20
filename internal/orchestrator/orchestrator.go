// Package orchestrator classifies messages and dispatches them to the agents
// on a per-session transaction.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/agent"
	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/metrics"
	"github.com/Rrens/nl2sql/internal/session"
)

// Agents are the specialized agents messages are dispatched to.
type Agents struct {
	Connection  *agent.ConnectionAgent
	Exploration *agent.ExplorationAgent
	Query       *agent.QueryAgent
	Dictionary  *agent.DictionaryAgent
}

type route func(ctx context.Context, tx *session.Tx, in domain.Intent) domain.AgentResult

// Orchestrator is the single entry point of the core.
type Orchestrator struct {
	store      *session.Store
	classifier *Classifier
	agents     Agents
	routes     map[domain.IntentKind]route
	transcript domain.TranscriptRecorder
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTranscript records every handled message.
func WithTranscript(rec domain.TranscriptRecorder) Option {
	return func(o *Orchestrator) { o.transcript = rec }
}

// New creates an orchestrator.
func New(store *session.Store, classifier *Classifier, agents Agents, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		classifier: classifier,
		agents:     agents,
		now:        time.Now,
	}
	o.routes = map[domain.IntentKind]route{
		domain.IntentConnect:            o.connect,
		domain.IntentExplore:            o.explore,
		domain.IntentQuery:              o.query,
		domain.IntentDictionaryGenerate: o.generateDictionary,
		domain.IntentDictionaryLoad:     o.loadDictionary,
		domain.IntentDictionarySave:     o.saveDictionary,
		domain.IntentDictionaryPreview:  o.previewDictionary,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle classifies message and runs it against the session with the given id.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, message string) Envelope {
	start := o.now()

	if err := session.ValidateID(sessionID); err != nil {
		return o.finish(ctx, start, message, Normalize(sessionID, domain.IntentUnknown, domain.Failure(err), false))
	}

	intent := o.classifier.Classify(ctx, message)
	log.Debug().
		Str("session_id", sessionID).
		Str("intent", string(intent.Kind)).
		Str("action", string(intent.Action)).
		Str("source", string(intent.Source)).
		Msg("Message classified")

	res, defaultRoute := o.withSession(ctx, sessionID, func(tx *session.Tx) (domain.AgentResult, bool) {
		return o.dispatch(ctx, tx, intent)
	})
	return o.finish(ctx, start, message, Normalize(sessionID, intent.Kind, res, defaultRoute))
}

// Classify exposes the classifier for diagnostics.
func (o *Orchestrator) Classify(ctx context.Context, message string) domain.Intent {
	return o.classifier.Classify(ctx, message)
}

// dispatch runs intent through the route registry. UNKNOWN falls back to
// the query route.
func (o *Orchestrator) dispatch(ctx context.Context, tx *session.Tx, intent domain.Intent) (domain.AgentResult, bool) {
	r, ok := o.routes[intent.Kind]
	if !ok {
		return o.query(ctx, tx, intent), true
	}
	return r(ctx, tx, intent), false
}

// withSession locks the session, opens a transaction for fn and rolls back
// whatever fn did not commit.
func (o *Orchestrator) withSession(ctx context.Context, sessionID string, fn func(tx *session.Tx) (domain.AgentResult, bool)) (domain.AgentResult, bool) {
	h, err := o.store.Acquire(ctx, sessionID)
	if err != nil {
		return domain.Failure(err), false
	}
	defer h.Release()

	if h.Created() {
		metrics.SetActiveSessions(o.store.Len())
		log.Info().Str("session_id", sessionID).Msg("Session created")
	}

	tx := h.Begin()
	defer tx.Rollback()

	res, defaultRoute := fn(tx)

	var pe *domain.ProviderError
	if errors.As(res.Err, &pe) {
		metrics.IncrementProviderError(pe.Provider, pe.Op)
	}
	return res, defaultRoute
}

func (o *Orchestrator) connect(ctx context.Context, tx *session.Tx, in domain.Intent) domain.AgentResult {
	switch in.Action {
	case domain.ActionStatus:
		return o.agents.Connection.Status(ctx, tx)
	case domain.ActionDisconnect:
		return o.agents.Connection.Disconnect(ctx, tx)
	default:
		return o.agents.Connection.Connect(ctx, tx, nil)
	}
}

func (o *Orchestrator) explore(ctx context.Context, tx *session.Tx, in domain.Intent) domain.AgentResult {
	a := o.agents.Exploration
	switch in.Action {
	case domain.ActionListDatabases:
		return a.ListDatabases(ctx, tx)
	case domain.ActionListSchemas:
		return a.ListSchemas(ctx, tx, in.Slots.Database)
	case domain.ActionSelectTables:
		return a.SelectTables(ctx, tx, agent.Selection{
			Names:     in.Slots.Tables,
			Positions: in.Slots.Positions,
			All:       in.Slots.All,
		})
	case domain.ActionDescribeTable:
		var name string
		if len(in.Slots.Tables) > 0 {
			name = in.Slots.Tables[0]
		}
		return a.DescribeTable(ctx, tx, name)
	default:
		return a.ListTables(ctx, tx, in.Slots.Database, in.Slots.Schema)
	}
}

func (o *Orchestrator) query(ctx context.Context, tx *session.Tx, in domain.Intent) domain.AgentResult {
	return o.agents.Query.Query(ctx, tx, in.Body)
}

func (o *Orchestrator) generateDictionary(ctx context.Context, tx *session.Tx, in domain.Intent) domain.AgentResult {
	return o.agents.Dictionary.Generate(ctx, tx, in.Slots.Tables)
}

func (o *Orchestrator) loadDictionary(ctx context.Context, tx *session.Tx, in domain.Intent) domain.AgentResult {
	return o.agents.Dictionary.Load(ctx, tx, in.Slots.File)
}

func (o *Orchestrator) saveDictionary(ctx context.Context, tx *session.Tx, in domain.Intent) domain.AgentResult {
	return o.agents.Dictionary.Save(ctx, tx, in.Slots.File)
}

func (o *Orchestrator) previewDictionary(ctx context.Context, tx *session.Tx, _ domain.Intent) domain.AgentResult {
	return o.agents.Dictionary.Preview(ctx, tx)
}

// Connect opens a connection for the session with explicit credentials.
func (o *Orchestrator) Connect(ctx context.Context, sessionID string, creds *domain.ConnectionDescriptor) Envelope {
	return o.direct(ctx, sessionID, domain.IntentConnect, "connect", func(tx *session.Tx) domain.AgentResult {
		return o.agents.Connection.Connect(ctx, tx, creds)
	})
}

// LoadDictionary loads the dictionary document at source into the session.
func (o *Orchestrator) LoadDictionary(ctx context.Context, sessionID, source string) Envelope {
	return o.direct(ctx, sessionID, domain.IntentDictionaryLoad, "load dictionary "+source, func(tx *session.Tx) domain.AgentResult {
		return o.agents.Dictionary.Load(ctx, tx, source)
	})
}

// SaveDictionary writes the session dictionary to destination.
func (o *Orchestrator) SaveDictionary(ctx context.Context, sessionID, destination string) Envelope {
	return o.direct(ctx, sessionID, domain.IntentDictionarySave, "save dictionary "+destination, func(tx *session.Tx) domain.AgentResult {
		return o.agents.Dictionary.Save(ctx, tx, destination)
	})
}

func (o *Orchestrator) direct(ctx context.Context, sessionID string, kind domain.IntentKind, message string, fn func(tx *session.Tx) domain.AgentResult) Envelope {
	start := o.now()
	if err := session.ValidateID(sessionID); err != nil {
		return o.finish(ctx, start, message, Normalize(sessionID, kind, domain.Failure(err), false))
	}

	res, _ := o.withSession(ctx, sessionID, func(tx *session.Tx) (domain.AgentResult, bool) {
		return fn(tx), false
	})
	return o.finish(ctx, start, message, Normalize(sessionID, kind, res, false))
}

// NewSession creates an empty session and returns its id.
func (o *Orchestrator) NewSession(ctx context.Context) (string, error) {
	id := session.NewID()
	h, err := o.store.Acquire(ctx, id)
	if err != nil {
		return "", err
	}
	h.Release()

	metrics.SetActiveSessions(o.store.Len())
	return id, nil
}

// EndSession tears down a session and releases its connection.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	if err := session.ValidateID(sessionID); err != nil {
		return err
	}
	if err := o.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	metrics.SetActiveSessions(o.store.Len())
	return nil
}

// Snapshot returns a copy of the committed session state.
func (o *Orchestrator) Snapshot(sessionID string) (*domain.Session, bool) {
	return o.store.Get(sessionID)
}

// Save persists the session through the configured snapshot store.
func (o *Orchestrator) Save(ctx context.Context, sessionID string) error {
	if err := session.ValidateID(sessionID); err != nil {
		return err
	}
	return o.store.Save(ctx, sessionID)
}

// Restore replaces the session with its saved snapshot.
func (o *Orchestrator) Restore(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := o.store.Restore(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	metrics.SetActiveSessions(o.store.Len())
	return s, nil
}

// finish records metrics and the transcript entry of a handled call.
func (o *Orchestrator) finish(ctx context.Context, start time.Time, message string, env Envelope) Envelope {
	elapsed := o.now().Sub(start)
	metrics.ObserveDispatch(string(env.Intent), string(env.Status), env.UsedDefaultRoute, elapsed)

	if env.ErrorKind == domain.KindProvider {
		log.Warn().
			Str("session_id", env.SessionID).
			Str("intent", string(env.Intent)).
			Msg(env.Message)
	}

	if o.transcript == nil || env.ErrorKind == domain.KindSession {
		return env
	}

	entry := &domain.TranscriptEntry{
		ID:               uuid.New(),
		SessionID:        env.SessionID,
		Message:          message,
		Intent:           env.Intent,
		Status:           env.Status,
		Response:         env.Message,
		SQL:              env.SQL,
		ErrorKind:        env.ErrorKind,
		UsedDefaultRoute: env.UsedDefaultRoute,
		LatencyMs:        elapsed.Milliseconds(),
		CreatedAt:        start,
	}
	if err := o.transcript.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Error().Err(err).Str("session_id", env.SessionID).Msg("Failed to record transcript")
	}
	return env
}
