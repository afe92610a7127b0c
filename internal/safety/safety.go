// Package safety implements the lexical read-only gate that every query passes before it
// reaches a database connection.
//
// The gate is a prefix allow-list plus a chained-statement deny pattern. It is not a SQL
// parser: it does not prove a statement is valid, and keywords hidden behind comments
// (for example "; /* */ DROP") are not caught.
package safety

import (
	"regexp"
	"strings"
)

const (
	ReasonNotReadOnly        = "only read-only statements allowed"
	ReasonChainedDestructive = "chained destructive command detected"
)

// DefaultAllowedPrefixes is the allow-list for the embedded SQLite backend.
var DefaultAllowedPrefixes = []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN"}

// ForbiddenKeywords may not follow a semicolon anywhere in the statement.
var ForbiddenKeywords = []string{
	"UPDATE", "DELETE", "DROP", "ALTER", "INSERT",
	"CREATE", "REPLACE", "TRUNCATE", "GRANT", "REVOKE",
}

var chainedPattern = regexp.MustCompile(`;\s*(` + strings.Join(ForbiddenKeywords, "|") + `)\b`)

type Verdict struct {
	Safe   bool
	Reason string
}

func Safe() Verdict { return Verdict{Safe: true} }

func Unsafe(reason string) Verdict { return Verdict{Reason: reason} }

type Validator struct {
	prefixes []string
}

// New returns a validator accepting statements that start with one of prefixes.
// With no prefixes it falls back to DefaultAllowedPrefixes.
func New(prefixes ...string) *Validator {
	if len(prefixes) == 0 {
		prefixes = DefaultAllowedPrefixes
	}
	normalized := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		prefix = strings.ToUpper(strings.TrimSpace(prefix))
		if prefix == "" {
			continue
		}
		normalized = append(normalized, prefix)
	}
	return &Validator{prefixes: normalized}
}

func (v *Validator) AllowedPrefixes() []string {
	return append([]string(nil), v.prefixes...)
}

// Check classifies query. The query itself is never rewritten; only an uppercased working
// copy is inspected.
func (v *Validator) Check(query string) Verdict {
	upper := strings.ToUpper(strings.TrimSpace(query))

	allowed := false
	for _, prefix := range v.prefixes {
		if strings.HasPrefix(upper, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return Unsafe(ReasonNotReadOnly)
	}
	if chainedPattern.MatchString(upper) {
		return Unsafe(ReasonChainedDestructive)
	}
	return Safe()
}
