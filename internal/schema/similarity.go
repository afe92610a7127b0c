package schema

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// CosineSimilarity returns the cosine of the angle between two equally sized vectors.
// Zero vectors have similarity 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same dimension")
	}

	var dot, sumA, sumB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		sumA += float64(a[i]) * float64(a[i])
		sumB += float64(b[i]) * float64(b[i])
	}
	if sumA == 0 || sumB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(sumA) * math.Sqrt(sumB))), nil
}

// lexicalScore counts question tokens that also occur in the document.
func lexicalScore(questionTokens []string, documentTokens map[string]struct{}) int {
	score := 0
	for _, token := range questionTokens {
		if _, ok := documentTokens[token]; ok {
			score++
		}
	}
	return score
}

func tokenSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, token := range tokenize(text) {
		set[token] = struct{}{}
	}
	return set
}

// tokenize lower-cases text, splits it on non-alphanumerics and drops a trailing "s" from
// words longer than three letters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 2 {
			continue
		}
		if len(field) > 3 {
			field = strings.TrimSuffix(field, "s")
		}
		tokens = append(tokens, field)
	}
	return tokens
}
