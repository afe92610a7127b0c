package query

import (
	"context"
	"time"

	"github.com/sqlagent/sqlagent/internal/safety"
)

// Row maps column names to values. When a result repeats a column name the last
// occurrence wins.
type Row map[string]any

type Result struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

// Backend runs read-only statements against one configured database.
type Backend interface {
	// Check applies the backend's safety gate without touching the database.
	Check(sqlText string) safety.Verdict
	Execute(ctx context.Context, sqlText string) (Result, error)
	Dialect() string
}
