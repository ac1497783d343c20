package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/llm"
)

// Rule maps a lexical pattern to an intent. Rules are tried in order and the
// first match wins.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Kind    domain.IntentKind
	Action  domain.Action
}

// DefaultRules is the heuristic rule table.
var DefaultRules = []Rule{
	{"disconnect", regexp.MustCompile(`(?i)\b(disconnect|log\s*out|close\s+(the\s+)?connection)\b`), domain.IntentConnect, domain.ActionDisconnect},
	{"status", regexp.MustCompile(`(?i)^\s*(connection\s+)?status\s*[?.!]*\s*$|\b(am\s+i|are\s+we|are\s+you)\s+connected\b|\bconnection\s+(status|details|info)\b`), domain.IntentConnect, domain.ActionStatus},
	{"connect", regexp.MustCompile(`(?i)\b(connect|reconnect|log\s*in)\b`), domain.IntentConnect, domain.ActionConnect},

	{"dictionary_preview", regexp.MustCompile(`(?i)^\s*(show|preview|view|display|print)\s+(me\s+)?(the\s+)?(current\s+|loaded\s+)?(data\s+)?(dictionary|dict)\s*[?.!]?\s*$|\bwhat('?s|\s+is)\s+in\s+the\s+(data\s+)?dictionary\b`), domain.IntentDictionaryPreview, domain.ActionNone},
	{"dictionary_load", regexp.MustCompile(`(?i)\b(load|import|open|read)\b.*(\b(dictionary|dict)\b|\.(ya?ml|json|toml)\b|@stage/|s3://|mongo://)`), domain.IntentDictionaryLoad, domain.ActionNone},
	{"dictionary_save", regexp.MustCompile(`(?i)\b(save|export|write|store)\b.*(\b(dictionary|dict)\b|\.(ya?ml|json|toml)\b|@stage/|s3://|mongo://)`), domain.IntentDictionarySave, domain.ActionNone},
	{"dictionary_generate", regexp.MustCompile(`(?i)\b(data\s+dictionary|dictionary|document(ation)?\s+(the\s+)?(tables?|fields|columns))\b`), domain.IntentDictionaryGenerate, domain.ActionNone},

	{"select_tables", regexp.MustCompile(`(?i)^\s*(select|use|pick|choose)\s+(the\s+)?(tables?\b|all(\s+(of\s+)?(them|the\s+tables?|tables?))?\s*[.!]?\s*$|\d+(\s*(,|and|&)?\s*\d+)*\s*[.!]?\s*$)`), domain.IntentExplore, domain.ActionSelectTables},
	{"describe_table", describeTarget, domain.IntentExplore, domain.ActionDescribeTable},

	{"list_databases", regexp.MustCompile(`(?i)\b(list|show|what|which|available|see)\b.*\bdatabases\b`), domain.IntentExplore, domain.ActionListDatabases},
	{"list_schemas", regexp.MustCompile(`(?i)\b(list|show|what|which|available|see)\b.*\bschemas\b`), domain.IntentExplore, domain.ActionListSchemas},
	{"list_tables", regexp.MustCompile(`(?i)\b(list|show|what|which|available|see)\b.*\btables\b`), domain.IntentExplore, domain.ActionListTables},

	{"sql", regexp.MustCompile(`(?i)^\s*(select|with)\b|\b(how\s+many|how\s+much|count|sum|total|average|avg|top\s+\d+|group\s+by|order\s+by|per\s+(day|week|month|year)|max(imum)?|min(imum)?)\b`), domain.IntentQuery, domain.ActionNone},
}

var (
	prefixPattern  = regexp.MustCompile(`(?is)^\s*[@/](query|sql|dictionary|dict|connect|explore)\b\s*(.*)$`)
	describeTarget = regexp.MustCompile(`(?i)^\s*(?:describe|desc|show\s+(?:me\s+)?(?:the\s+)?columns\s+(?:of|in|for))\s+(?:table\s+)?([A-Za-z_"][\w$."]*)\s*[?.!]?\s*$`)
	loadVerb       = regexp.MustCompile(`(?i)^\s*(load|import)\b`)
	saveVerb       = regexp.MustCompile(`(?i)^\s*(save|export)\b`)
	previewVerb    = regexp.MustCompile(`(?i)^\s*(show|preview|view|display)\b`)
)

// IntentClassifier is the language provider's classification call.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, message string) (llm.IntentLabel, error)
}

// Classifier resolves a message to an intent through explicit prefixes, the
// rule table and optionally the language provider.
type Classifier struct {
	rules []Rule
	llm   IntentClassifier
}

// NewClassifier creates a classifier. lang may be nil to skip the language layer.
func NewClassifier(rules []Rule, lang IntentClassifier) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules, llm: lang}
}

// Classify returns the intent of message. It never fails: unresolvable
// messages classify as UNKNOWN.
func (c *Classifier) Classify(ctx context.Context, message string) domain.Intent {
	text := strings.TrimSpace(message)

	if m := prefixPattern.FindStringSubmatch(text); m != nil {
		return c.fromPrefix(strings.ToLower(m[1]), strings.TrimSpace(m[2]))
	}

	if rule, ok := c.match(text); ok {
		return build(rule.Kind, rule.Action, text, domain.SourceHeuristic)
	}

	if c.llm != nil && text != "" {
		label, err := c.llm.ClassifyIntent(ctx, text)
		if err != nil {
			log.Warn().Err(err).Msg("Intent classification by language provider failed")
		} else if kind, action, ok := c.fromLabel(label, text); ok {
			return build(kind, action, text, domain.SourceLLM)
		}
	}

	return build(domain.IntentUnknown, domain.ActionNone, text, domain.SourceFallback)
}

func (c *Classifier) match(text string) (Rule, bool) {
	for _, rule := range c.rules {
		if rule.Pattern.MatchString(text) {
			return rule, true
		}
	}
	return Rule{}, false
}

// matchKind returns the first rule of kind that matches text.
func (c *Classifier) matchKind(kind domain.IntentKind, text string) (Rule, bool) {
	for _, rule := range c.rules {
		if rule.Kind == kind && rule.Pattern.MatchString(text) {
			return rule, true
		}
	}
	return Rule{}, false
}

func (c *Classifier) fromPrefix(prefix, body string) domain.Intent {
	switch prefix {
	case "query", "sql":
		return build(domain.IntentQuery, domain.ActionNone, body, domain.SourcePrefix)
	case "dictionary", "dict":
		return build(dictionaryKind(body), domain.ActionNone, body, domain.SourcePrefix)
	case "connect":
		action := domain.ActionConnect
		if rule, ok := c.matchKind(domain.IntentConnect, body); ok {
			action = rule.Action
		}
		return build(domain.IntentConnect, action, body, domain.SourcePrefix)
	default:
		action := domain.ActionListTables
		if rule, ok := c.matchKind(domain.IntentExplore, body); ok {
			action = rule.Action
		}
		return build(domain.IntentExplore, action, body, domain.SourcePrefix)
	}
}

func (c *Classifier) fromLabel(label llm.IntentLabel, text string) (domain.IntentKind, domain.Action, bool) {
	switch label {
	case llm.LabelConnection:
		if rule, ok := c.matchKind(domain.IntentConnect, text); ok {
			return domain.IntentConnect, rule.Action, true
		}
		return domain.IntentConnect, domain.ActionConnect, true
	case llm.LabelQuery:
		return domain.IntentQuery, domain.ActionNone, true
	case llm.LabelExploration:
		if rule, ok := c.matchKind(domain.IntentExplore, text); ok {
			return domain.IntentExplore, rule.Action, true
		}
		return domain.IntentExplore, domain.ActionListTables, true
	case llm.LabelDictionary:
		return dictionaryKind(text), domain.ActionNone, true
	default:
		return "", "", false
	}
}

// dictionaryKind picks load, save or preview from the leading verb, otherwise generate.
func dictionaryKind(body string) domain.IntentKind {
	switch {
	case loadVerb.MatchString(body):
		return domain.IntentDictionaryLoad
	case saveVerb.MatchString(body):
		return domain.IntentDictionarySave
	case previewVerb.MatchString(body):
		return domain.IntentDictionaryPreview
	default:
		return domain.IntentDictionaryGenerate
	}
}

func build(kind domain.IntentKind, action domain.Action, body string, source domain.IntentSource) domain.Intent {
	return domain.Intent{
		Kind:   kind,
		Action: action,
		Slots:  ExtractSlots(kind, action, body),
		Body:   body,
		Source: source,
	}
}
