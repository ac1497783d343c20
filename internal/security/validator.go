package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rrens/nl2sql/internal/domain"
)

// readOnlyKeywords are the statement types a generated query may start with.
var readOnlyKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
}

var leadingWord = regexp.MustCompile(`^[A-Za-z]+`)

// ReadOnlyChecker rejects anything that is not a single read-only statement.
// It runs locally and never relies on the provider's own validation.
type ReadOnlyChecker struct {
	blockedPatterns []*regexp.Regexp
}

// NewReadOnlyChecker creates a checker with the default blocklist plus extra patterns.
func NewReadOnlyChecker(extra ...*regexp.Regexp) *ReadOnlyChecker {
	patterns := []string{
		`(?i)\bINSERT\b`,
		`(?i)\bUPDATE\b`,
		`(?i)\bDELETE\b`,
		`(?i)\bMERGE\b`,
		`(?i)\bDROP\b`,
		`(?i)\bTRUNCATE\b`,
		`(?i)\bALTER\b`,
		`(?i)\bCREATE\b`,
		`(?i)\bGRANT\b`,
		`(?i)\bREVOKE\b`,
		`(?i)\bCALL\b`,
		`(?i)\bEXEC\b`,
		`(?i)\bEXECUTE\b`,
		`(?i)\bCOPY\s+INTO\b`,
		`(?i)\bINTO\s+OUTFILE\b`,
		`(?i)\bINTO\s+DUMPFILE\b`,
		`(?i)\bLOAD_FILE\b`,
		`(?i)pg_read_file`,
		`(?i)pg_write_file`,
		`(?i)\bUNION\s+ALL\s+SELECT\s+NULL`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns)+len(extra))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	compiled = append(compiled, extra...)

	return &ReadOnlyChecker{blockedPatterns: compiled}
}

// Check returns a *domain.UnsafeQueryError when sql is not allowed.
//
// Backends disagree on whether a backslash escapes a quote inside a string
// literal, so the statement is scanned both ways and must pass both.
func (c *ReadOnlyChecker) Check(sql string) error {
	if err := c.check(sql, false); err != nil {
		return err
	}
	return c.check(sql, true)
}

func (c *ReadOnlyChecker) check(sql string, backslashEscapes bool) error {
	reject := func(reason string) error {
		return &domain.UnsafeQueryError{SQL: sql, Reason: reason}
	}

	masked, err := maskSQL(sql, backslashEscapes)
	if err != nil {
		return reject(err.Error())
	}
	if strings.TrimSpace(masked) == "" {
		return reject("empty statement")
	}

	statements := 0
	for _, part := range strings.Split(masked, ";") {
		if strings.TrimSpace(part) != "" {
			statements++
		}
	}
	if statements > 1 {
		return reject("multiple statements are not allowed")
	}

	body := strings.TrimLeft(strings.TrimSpace(masked), "( \t\r\n")
	keyword := strings.ToUpper(leadingWord.FindString(body))
	if !readOnlyKeywords[keyword] {
		if keyword == "" {
			return reject("statement does not start with a keyword")
		}
		return reject(fmt.Sprintf("%s statements are not allowed, only read-only queries", keyword))
	}

	for _, pattern := range c.blockedPatterns {
		if m := pattern.FindString(masked); m != "" {
			return reject(fmt.Sprintf("blocked keyword %q in statement", strings.ToUpper(m)))
		}
	}

	return nil
}

// maskSQL walks sql once, left to right. Comments become a space, string
// literals become '' and quoted identifiers become "_", so keyword and
// statement checks only see SQL structure. Whichever construct opens first
// wins, which keeps a quote inside a comment from hiding what follows.
func maskSQL(sql string, backslashEscapes bool) (string, error) {
	var b strings.Builder
	b.Grow(len(sql))

	for i := 0; i < len(sql); {
		switch {
		case strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				i = len(sql)
			} else {
				i += end
			}
			b.WriteByte(' ')

		case strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("unterminated block comment")
			}
			i += 2 + end + 2
			b.WriteByte(' ')

		case sql[i] == '\'' || sql[i] == '"':
			end, ok := closingQuote(sql, i, backslashEscapes && sql[i] == '\'')
			if !ok {
				return "", fmt.Errorf("unterminated quoted text")
			}
			if sql[i] == '\'' {
				b.WriteString("''")
			} else {
				b.WriteString(`"_"`)
			}
			i = end + 1

		default:
			b.WriteByte(sql[i])
			i++
		}
	}
	return b.String(), nil
}

// closingQuote returns the index of the quote closing the one at start.
// A doubled quote is an escaped quote.
func closingQuote(sql string, start int, backslashEscapes bool) (int, bool) {
	q := sql[start]
	for i := start + 1; i < len(sql); i++ {
		switch {
		case backslashEscapes && sql[i] == '\\':
			i++
		case sql[i] == q:
			if i+1 < len(sql) && sql[i+1] == q {
				i++
				continue
			}
			return i, true
		}
	}
	return 0, false
}
