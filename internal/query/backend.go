package query

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/sqlagent/sqlagent/internal/apperr"
	"github.com/sqlagent/sqlagent/internal/safety"
)

// Opener returns a freshly opened, reachable database handle. It is called once per
// Execute and the handle is closed before Execute returns.
type Opener func(ctx context.Context) (*sql.DB, error)

// ValueNormalizer converts a driver-specific value into a plain Go value. databaseType is
// the driver's column type name and may be empty. It runs after the shared conversions.
type ValueNormalizer func(databaseType string, value any) any

type SQLBackend struct {
	dialect   string
	validator *safety.Validator
	open      Opener
	timeout   time.Duration
	normalize ValueNormalizer
}

func NewSQLBackend(dialect string, validator *safety.Validator, open Opener, timeout time.Duration) *SQLBackend {
	if validator == nil {
		validator = safety.New()
	}
	return &SQLBackend{
		dialect:   dialect,
		validator: validator,
		open:      open,
		timeout:   timeout,
	}
}

// WithNormalizer sets the backend's value hook and returns b.
func (b *SQLBackend) WithNormalizer(normalize ValueNormalizer) *SQLBackend {
	b.normalize = normalize
	return b
}

func (b *SQLBackend) Dialect() string {
	return b.dialect
}

func (b *SQLBackend) Check(sqlText string) safety.Verdict {
	return b.validator.Check(sqlText)
}

func (b *SQLBackend) Execute(ctx context.Context, sqlText string) (Result, error) {
	if verdict := b.validator.Check(sqlText); !verdict.Safe {
		return Result{}, apperr.New(apperr.KindValidation, verdict.Reason)
	}
	if b.open == nil {
		return Result{}, apperr.New(apperr.KindConnection, "database is not configured")
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	db, err := b.open(ctx)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindConnection, "database connection failed", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExecution, "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExecution, "query execution failed", fmt.Errorf("query columns: %w", err))
	}

	resultRows := make([]Row, 0)
	if len(columns) == 0 {
		return Result{Rows: resultRows, Duration: time.Since(start)}, nil
	}
	databaseTypes := make([]string, len(columns))
	if b.normalize != nil {
		if columnTypes, err := rows.ColumnTypes(); err == nil && len(columnTypes) == len(columns) {
			for i, columnType := range columnTypes {
				databaseTypes[i] = columnType.DatabaseTypeName()
			}
		}
	}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, apperr.Wrap(apperr.KindExecution, "query execution failed", fmt.Errorf("scan row: %w", err))
		}
		resultRows = append(resultRows, b.toRow(columns, databaseTypes, values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, apperr.Wrap(apperr.KindExecution, "query execution failed", fmt.Errorf("iterate rows: %w", err))
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

// Prepare limits db to a single connection and verifies it is reachable. db is closed
// when the ping fails.
func Prepare(ctx context.Context, db *sql.DB) (*sql.DB, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenDB opens driverName with dsn and prepares it with Prepare.
func OpenDB(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return Prepare(ctx, db)
}

func (b *SQLBackend) toRow(columns, databaseTypes []string, values []any) Row {
	row := make(Row, len(columns))
	for i, column := range columns {
		value := normalizeValue(values[i])
		if b.normalize != nil {
			value = b.normalize(databaseTypes[i], value)
		}
		row[column] = value
	}
	return row
}

// normalizeValue maps values every driver may return onto strings and plain numbers.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case *big.Int:
		return BigIntValue(typed)
	case time.Time:
		return FormatTime(typed)
	default:
		return typed
	}
}

// BigIntValue returns v as an int64 when it fits and as a float64 otherwise.
func BigIntValue(v *big.Int) any {
	if v == nil {
		return nil
	}
	if v.IsInt64() {
		return v.Int64()
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// FormatTime renders UTC timestamps without fractional seconds as "2006-01-02 15:04:05"
// and everything else as RFC 3339.
func FormatTime(t time.Time) string {
	if t.Location() == time.UTC && t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format(time.RFC3339Nano)
}
