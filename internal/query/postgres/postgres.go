package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlagent/sqlagent/internal/query"
	"github.com/sqlagent/sqlagent/internal/safety"
)

const Dialect = "postgres"

var AllowedPrefixes = []string{"SELECT", "WITH", "EXPLAIN", "SHOW"}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Timeout  time.Duration
}

func New(cfg Config) (*query.SQLBackend, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	backend := query.NewSQLBackend(Dialect, safety.New(AllowedPrefixes...), opener(*connConfig), cfg.Timeout)
	return backend.WithNormalizer(normalizeValue), nil
}

// normalizeValue parses NUMERIC columns, which the pgx stdlib driver returns as text.
// NaN, infinities and values that do not parse stay strings.
func normalizeValue(databaseType string, value any) any {
	text, ok := value.(string)
	if !ok || databaseType != "NUMERIC" {
		return value
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return value
	}
	return parsed
}

func opener(connConfig pgx.ConnConfig) query.Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		return query.Prepare(ctx, stdlib.OpenDB(connConfig))
	}
}

// DSN renders cfg as a postgres URL. Port defaults to 5432 and sslmode to prefer.
func DSN(cfg Config) (string, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return "", fmt.Errorf("postgres host is required")
	}
	database := strings.TrimSpace(cfg.Database)
	if database == "" {
		return "", fmt.Errorf("postgres database is required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 5432
	}
	sslMode := strings.TrimSpace(cfg.SSLMode)
	if sslMode == "" {
		sslMode = "prefer"
	}

	dsn := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			dsn.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			dsn.User = url.User(cfg.User)
		}
	}
	return dsn.String(), nil
}
