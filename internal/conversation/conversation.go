// Package conversation rewrites follow-up questions into standalone ones using the chat
// history.
package conversation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sqlagent/sqlagent/internal/query"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// MaxHistoryTurns is how many trailing turns are shown to the model.
	MaxHistoryTurns = 6
)

type Turn struct {
	Role    string      `json:"role"`
	Content string      `json:"content"`
	SQL     string      `json:"sql,omitempty"`
	Results []query.Row `json:"results,omitempty"`
}

// FormatHistory renders the last MaxHistoryTurns turns, one "Role: content" entry per
// turn, followed by the turn's SQL when it has one.
func FormatHistory(history []Turn) string {
	if len(history) == 0 {
		return "No history."
	}
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}

	entries := make([]string, 0, len(history))
	for _, turn := range history {
		role := turn.Role
		if role == "" {
			role = "unknown"
		}
		entry := capitalize(role) + ": " + turn.Content
		if turn.SQL != "" {
			entry += "\n(Context SQL: " + turn.SQL + ")"
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, "\n")
}

func capitalize(value string) string {
	first, size := utf8.DecodeRuneInString(value)
	return string(unicode.ToUpper(first)) + strings.ToLower(value[size:])
}

var comparisonKeywords = []struct {
	keyword string
	tag     string
}{
	{"vs", "versus"},
	{"versus", "versus"},
	{"compared to", "comparison"},
	{"compared with", "comparison"},
	{"difference", "difference"},
	{"growth", "growth"},
	{"change", "change"},
	{"increased", "trend"},
	{"decreased", "trend"},
	{"higher", "comparison"},
	{"lower", "comparison"},
	{"improvement", "trend"},
	{"decline", "trend"},
	{"quarter", "time_period"},
	{"month", "time_period"},
	{"year", "time_period"},
	{"last", "time_reference"},
	{"previous", "time_reference"},
}

// DetectComparison reports the first comparison keyword found as a substring of the
// lower-cased question.
func DetectComparison(question string) (string, bool) {
	lowered := strings.ToLower(question)
	for _, candidate := range comparisonKeywords {
		if strings.Contains(lowered, candidate.keyword) {
			return candidate.tag, true
		}
	}
	return "", false
}
