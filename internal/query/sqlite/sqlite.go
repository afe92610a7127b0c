// Package sqlite provides the default embedded-file backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlagent/sqlagent/internal/query"
	"github.com/sqlagent/sqlagent/internal/safety"
)

const Dialect = "sqlite"

var AllowedPrefixes = safety.DefaultAllowedPrefixes

type Config struct {
	Path    string
	Timeout time.Duration
}

func New(cfg Config) (*query.SQLBackend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	return query.NewSQLBackend(Dialect, safety.New(AllowedPrefixes...), opener(path), cfg.Timeout), nil
}

// opener refuses missing files so the driver never creates an empty database.
func opener(path string) query.Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("stat database file: %w", err)
		}
		return query.OpenDB(ctx, "sqlite3", dsn(path))
	}
}

// uriPathEscaper escapes the characters SQLite's URI parser would read as a query, a
// fragment or an escape.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

func dsn(path string) string {
	values := url.Values{}
	values.Set("_busy_timeout", "5000")
	return "file:" + uriPathEscaper.Replace(path) + "?" + values.Encode()
}
