package nl2sql

import (
	"context"
	"strings"

	"github.com/sqlagent/sqlagent/internal/apperr"
)

// RefusalSQL is returned by the model for questions unrelated to the database.
const RefusalSQL = "SELECT 'I can only answer questions about the connected database.' AS Service_Message;"

const generatorSystemPrompt = "You are an expert SQL assistant skilled in business analysis and comparisons. " +
	"You write a single correct read-only SQL query for the schema you are given."

// SQLGenerator asks a Completer for a SQL statement answering a standalone question.
type SQLGenerator struct {
	completer Completer
	dialect   string
}

func NewSQLGenerator(completer Completer, dialect string) *SQLGenerator {
	return &SQLGenerator{completer: completer, dialect: dialect}
}

func (g *SQLGenerator) Generate(ctx context.Context, question, schemaContext string) (string, error) {
	raw, err := g.completer.Complete(ctx, Prompt{
		System: generatorSystemPrompt,
		User:   BuildSQLPrompt(g.dialect, question, schemaContext),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, "sql generation failed", err)
	}
	sqlText := ExtractSQL(raw)
	if sqlText == "" {
		return "", apperr.New(apperr.KindGeneration, "sql generation returned no statement")
	}
	return sqlText, nil
}

// BuildSQLPrompt renders the generation prompt for dialect.
func BuildSQLPrompt(dialect, question, schemaContext string) string {
	var b strings.Builder
	b.WriteString("Use the schema below to answer the user's question by writing a correct SQL query.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- GENERATE ONLY READ-ONLY SQL (")
	b.WriteString(readOnlyStatements(dialect))
	b.WriteString("). DO NOT generate UPDATE, DELETE, DROP, INSERT, or ALTER statements.\n")
	b.WriteString(dialectRules(dialect))
	b.WriteString("- Comparisons: when the user compares two periods or groups, use UNION or JOIN to show both side-by-side with clear aliases ")
	b.WriteString("such as current_period and previous_period, calculate (current - previous) / previous * 100 AS growth_pct when growth is asked for, ")
	b.WriteString("and order results chronologically or by metric value.\n")
	b.WriteString("- Temporal queries: the database is HISTORICAL and only contains data from 2009 to 2013. ")
	b.WriteString("If the user asks for \"today\", \"now\" or a relative period without context, assume today is 2013-12-31. ")
	b.WriteString("\"Last quarter\" is Oct-Dec 2013 and \"last year\" is 2012.\n")
	b.WriteString("- Ambiguity: if the user asks for \"best\" or \"top\" without a metric, assume total sales or count with clear aliases.\n")
	b.WriteString("- Refusal: if the question is unrelated to the database (for example \"capital of France\"), return: ")
	b.WriteString(RefusalSQL)
	b.WriteString("\n")
	b.WriteString("- Only use tables and columns that exist in the schema. Do not assume columns like \"total\" exist; calculate them if needed.\n")
	b.WriteString("- Use JOINs based on the foreign keys in the schema and short table aliases.\n")
	b.WriteString("- Return ONLY the SQL query inside a ```sql code block.\n\n")
	b.WriteString("Schema:\n")
	b.WriteString(schemaContext)
	b.WriteString("\n\nUser Question:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nOutput the SQL inside a ```sql code block.")
	return b.String()
}

func readOnlyStatements(dialect string) string {
	switch dialect {
	case "postgres":
		return "SELECT, WITH"
	case "duckdb":
		return "SELECT, WITH, DESCRIBE"
	default:
		return "SELECT, WITH, PRAGMA"
	}
}

func dialectRules(dialect string) string {
	switch dialect {
	case "postgres":
		return "- Dialect: PostgreSQL. Use LIMIT n at the end of the query.\n" +
			"- Date handling: use to_char(DateColumn, 'YYYY-MM') for year/month and EXTRACT(YEAR FROM DateColumn) for year.\n"
	case "duckdb":
		return "- Dialect: DuckDB. Use LIMIT n at the end of the query.\n" +
			"- Date handling: use strftime(DateColumn, '%Y-%m') for year/month and year(DateColumn) for year.\n"
	default:
		return "- Dialect: SQLite. Do NOT use TOP n. Use LIMIT n at the end of the query.\n" +
			"- Date handling: use strftime('%Y-%m', DateColumn) for year/month and strftime('%Y', DateColumn) for year. Always use strftime for date comparisons.\n"
	}
}
