// Package schema turns the connected database's tables into text documents and picks the
// ones relevant to a question.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqlagent/sqlagent/internal/query"
)

type Column struct {
	Name string
	Type string
}

type Table struct {
	Name    string
	Columns []Column
}

type Document struct {
	Table   string `json:"table"`
	Content string `json:"content"`
}

// NewDocument renders table as
//
//	Table: <name>
//	Columns:
//	- <column> (<type>)
func NewDocument(table Table) Document {
	var builder strings.Builder
	builder.WriteString("Table: ")
	builder.WriteString(table.Name)
	builder.WriteString("\nColumns:")
	for _, column := range table.Columns {
		builder.WriteString("\n- ")
		builder.WriteString(column.Name)
		builder.WriteString(" (")
		builder.WriteString(column.Type)
		builder.WriteString(")")
	}
	return Document{Table: table.Name, Content: builder.String()}
}

// JoinContext concatenates document contents with blank lines between them.
func JoinContext(documents []Document) string {
	parts := make([]string, 0, len(documents))
	for _, document := range documents {
		parts = append(parts, document.Content)
	}
	return strings.Join(parts, "\n\n")
}

type Introspector interface {
	Tables(ctx context.Context) ([]Table, error)
}

const sqliteColumnsSQL = `SELECT m.name AS table_name, p.name AS column_name, p.type AS data_type
FROM sqlite_master AS m
JOIN pragma_table_info(m.name) AS p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`

const informationSchemaColumnsSQL = `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_name, ordinal_position`

// NewIntrospector reads table metadata through backend, so the statements pass the same
// safety gate as generated SQL.
func NewIntrospector(backend query.Backend) Introspector {
	statement := informationSchemaColumnsSQL
	if backend.Dialect() == "sqlite" {
		statement = sqliteColumnsSQL
	}
	return &sqlIntrospector{backend: backend, statement: statement}
}

type sqlIntrospector struct {
	backend   query.Backend
	statement string
}

func (s *sqlIntrospector) Tables(ctx context.Context) ([]Table, error) {
	result, err := s.backend.Execute(ctx, s.statement)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	tables := make([]Table, 0)
	index := map[string]int{}
	for _, row := range result.Rows {
		tableName := stringValue(row["table_name"])
		if tableName == "" {
			continue
		}
		position, ok := index[tableName]
		if !ok {
			position = len(tables)
			index[tableName] = position
			tables = append(tables, Table{Name: tableName})
		}
		tables[position].Columns = append(tables[position].Columns, Column{
			Name: stringValue(row["column_name"]),
			Type: stringValue(row["data_type"]),
		})
	}
	return tables, nil
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}
