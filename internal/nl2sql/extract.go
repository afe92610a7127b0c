package nl2sql

import (
	"regexp"
	"strings"
)

var (
	sqlFencePattern   = regexp.MustCompile("(?s)```sql\\s*(.*?)```")
	jsonFencePattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	jsonObjectPattern = regexp.MustCompile(`(?s)(\{.*\})`)
)

// ExtractSQL pulls the statement out of model output. A ```sql fenced block wins;
// otherwise the trimmed text is returned as is.
func ExtractSQL(text string) string {
	if match := sqlFencePattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(text)
}

// ExtractJSON returns the first fenced JSON object in text, or the span from the first
// "{" to the last "}".
func ExtractJSON(text string) (string, bool) {
	if match := jsonFencePattern.FindStringSubmatch(text); match != nil {
		return match[1], true
	}
	if match := jsonObjectPattern.FindStringSubmatch(text); match != nil {
		return match[1], true
	}
	return "", false
}
