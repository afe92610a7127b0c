package conversation

import (
	"context"
	"strings"

	"github.com/sqlagent/sqlagent/internal/apperr"
	"github.com/sqlagent/sqlagent/internal/nl2sql"
)

const reformulatorSystemPrompt = "You are a helpful assistant rewriting questions to be standalone, understanding context and comparisons."

type Reformulator struct {
	completer nl2sql.Completer
}

func NewReformulator(completer nl2sql.Completer) *Reformulator {
	return &Reformulator{completer: completer}
}

// Reformulate returns question unchanged when there is no history. Otherwise it asks the
// model for a standalone version of question.
func (r *Reformulator) Reformulate(ctx context.Context, question string, history []Turn) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	raw, err := r.completer.Complete(ctx, nl2sql.Prompt{
		System: reformulatorSystemPrompt,
		User:   BuildPrompt(question, history),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, "question reformulation failed", err)
	}
	refined := strings.TrimSpace(raw)
	if refined == "" {
		return "", apperr.New(apperr.KindGeneration, "question reformulation returned nothing")
	}
	return refined, nil
}

// BuildPrompt renders the reformulation prompt.
func BuildPrompt(question string, history []Turn) string {
	var b strings.Builder
	b.WriteString("Context History:\n")
	b.WriteString(FormatHistory(history))
	b.WriteString("\n\nLatest User Question: ")
	b.WriteString(question)
	b.WriteString("\n")

	if tag, ok := DetectComparison(question); ok {
		b.WriteString("\nIMPORTANT: The user is asking for a COMPARISON (type: ")
		b.WriteString(tag)
		b.WriteString(").\n")
		b.WriteString("- Identify what is being compared (time periods, groups, metrics).\n")
		b.WriteString("- Include BOTH the current state AND the comparison baseline.\n")
		b.WriteString("- \"vs last quarter\" means the current quarter AND the previous quarter; \"growth vs last year\" is a year-over-year comparison.\n")
	}

	b.WriteString(`
Task:
Rewrite the "Latest User Question" into a standalone question that:
1. Captures context from history, especially previous SQL queries and results.
2. Resolves pronouns: "their" means the entities from the previous query, "it" the previous metric.
3. Includes temporal context: "last quarter" is relative to the current period.
4. For comparisons, names BOTH items being compared.

Examples:
History: User asked "Show sales by region"
Question: "How much higher was North vs South?"
Reformulated: "What are the total sales for North region compared to South region?"

History: User asked "Q4 revenue"
Question: "How much did we grow?"
Reformulated: "What is the growth rate comparing Q4 revenue to Q3 revenue?"

Output ONLY the reformulated question, no explanations.`)
	return b.String()
}
