package orchestrator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Rrens/nl2sql/internal/domain"
)

var (
	positionPattern  = regexp.MustCompile(`\b\d+\b`)
	allPattern       = regexp.MustCompile(`(?i)\ball\b`)
	qualifiedPattern = regexp.MustCompile(`\b[A-Za-z_][\w$]*\.[A-Za-z_][\w$]*\.[A-Za-z_][\w$]*\b`)
	locationPattern  = regexp.MustCompile(`(?i)\bin\s+(?:(database|schema)\s+)?([A-Za-z_][\w$]*)(?:\.([A-Za-z_][\w$]*))?`)
	selectBody       = regexp.MustCompile(`(?i)^\s*(?:select|use|pick|choose)\s+(?:the\s+)?(?:tables?\s+)?(.*)$`)
	nameToken        = regexp.MustCompile(`^[A-Za-z_"][\w$."]*$`)

	filePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:s3|mongo)://[^\s"'` + "`" + `]+`),
		regexp.MustCompile(`@stage/[^\s"'` + "`" + `]+`),
		regexp.MustCompile(`["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`),
		regexp.MustCompile(`(?i)[\w./-]+\.(?:ya?ml|json|toml)\b`),
		regexp.MustCompile(`(?i)\b(?:file|named|called)\s+([\w./-]+)`),
	}
)

var stopwords = map[string]bool{
	"and": true, "or": true, "all": true, "the": true, "table": true, "tables": true,
	"of": true, "them": true, "please": true, "both": true, "&": true,
}

// ExtractSlots pulls the values the routed agent needs out of body.
func ExtractSlots(kind domain.IntentKind, action domain.Action, body string) domain.Slots {
	var slots domain.Slots

	switch kind {
	case domain.IntentDictionaryLoad, domain.IntentDictionarySave:
		slots.File = extractFile(body)
	case domain.IntentDictionaryGenerate:
		slots.Tables = qualifiedPattern.FindAllString(body, -1)
	case domain.IntentExplore:
		switch action {
		case domain.ActionSelectTables:
			slots.Positions = extractPositions(body)
			slots.All = allPattern.MatchString(body)
			slots.Tables = selectNames(body)
		case domain.ActionDescribeTable:
			if m := describeTarget.FindStringSubmatch(body); m != nil {
				slots.Tables = []string{m[1]}
			}
		case domain.ActionListSchemas, domain.ActionListTables:
			slots.Database, slots.Schema = extractLocation(body)
		}
	}

	return slots
}

func extractPositions(body string) []int {
	var out []int
	for _, m := range positionPattern.FindAllString(body, -1) {
		if n, err := strconv.Atoi(m); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// selectNames returns the table names of a selection, skipping positions
// and filler words.
func selectNames(body string) []string {
	m := selectBody.FindStringSubmatch(body)
	if m == nil {
		return nil
	}

	var names []string
	for _, tok := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		tok = strings.TrimRight(tok, ".!?;")
		if tok == "" || stopwords[strings.ToLower(tok)] || positionPattern.MatchString(tok) {
			continue
		}
		if nameToken.MatchString(tok) {
			names = append(names, tok)
		}
	}
	return names
}

func extractFile(body string) string {
	for i, pattern := range filePatterns {
		m := pattern.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 {
			value = m[1]
		}
		value = strings.TrimRight(value, ".,;!?")
		// a quoted phrase only counts when it looks like a path
		if i == 2 && strings.ContainsAny(value, " \t") {
			continue
		}
		return value
	}
	return ""
}

func extractLocation(body string) (database, schema string) {
	for _, m := range locationPattern.FindAllStringSubmatch(body, -1) {
		name := m[2]
		if stopwords[strings.ToLower(name)] {
			continue
		}
		if strings.EqualFold(m[1], "schema") {
			return "", name
		}
		return name, m[3]
	}
	return "", ""
}
