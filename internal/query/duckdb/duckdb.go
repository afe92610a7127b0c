package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/sqlagent/sqlagent/internal/query"
	"github.com/sqlagent/sqlagent/internal/safety"
)

const Dialect = "duckdb"

// AllowedPrefixes extends the default read-only prefixes with DuckDB's metadata statements.
var AllowedPrefixes = append(append([]string{}, safety.DefaultAllowedPrefixes...), "DESCRIBE", "SHOW", "SUMMARIZE")

type Config struct {
	Path    string
	Timeout time.Duration
}

// New returns a backend that opens the database file read-only for every statement.
func New(cfg Config) (*query.SQLBackend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("duckdb path is required")
	}
	backend := query.NewSQLBackend(Dialect, safety.New(AllowedPrefixes...), opener(path), cfg.Timeout)
	return backend.WithNormalizer(normalizeValue), nil
}

// normalizeValue turns DECIMAL columns into float64. HUGEINT aggregates arrive as
// *big.Int and are handled by the shared conversions.
func normalizeValue(_ string, value any) any {
	switch typed := value.(type) {
	case goduckdb.Decimal:
		return typed.Float64()
	case *goduckdb.Decimal:
		if typed == nil {
			return nil
		}
		return typed.Float64()
	default:
		return value
	}
}

func opener(path string) query.Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("stat database file: %w", err)
		}
		return query.OpenDB(ctx, "duckdb", dsn(path))
	}
}

func dsn(path string) string {
	return path + "?access_mode=read_only"
}
