// Package querylog keeps the audit trail of answered questions as a JSON array that is
// rewritten in full on every change.
package querylog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sqlagent/sqlagent/internal/apperr"
)

const TimestampLayout = "2006-01-02 15:04:05"

type Entry struct {
	Timestamp    string `json:"timestamp"`
	Question     string `json:"question"`
	SQLQuery     string `json:"sql_query"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Log serializes all reads and writes of its Blob. It assumes it is the only writer.
type Log struct {
	blob   Blob
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

func New(blob Blob, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{blob: blob, logger: logger, now: time.Now}
}

func (l *Log) Append(ctx context.Context, question, sqlQuery string, success bool, errorMessage string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		// Rewriting now would replace the unread history with this one entry.
		return apperr.Wrap(apperr.KindPersistence, "read query log", err)
	}
	entries = append(entries, Entry{
		Timestamp:    l.now().Format(TimestampLayout),
		Question:     question,
		SQLQuery:     sqlQuery,
		Success:      success,
		ErrorMessage: errorMessage,
	})
	return l.store(ctx, entries)
}

// ReadAll returns every entry in append order. A missing or unreadable store reads as empty.
func (l *Log) ReadAll(ctx context.Context) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := l.load(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "query log unreadable, treating as empty", "error", err)
		return []Entry{}
	}
	return entries
}

func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store(ctx, []Entry{})
}

// load returns the stored entries. An absent or undecodable store is empty; only a failed
// read is an error.
func (l *Log) load(ctx context.Context) ([]Entry, error) {
	payload, err := l.blob.Read(ctx)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		l.logger.WarnContext(ctx, "query log corrupt, treating as empty", "error", err)
		return []Entry{}, nil
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (l *Log) store(ctx context.Context, entries []Entry) error {
	payload, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "encode query log", err)
	}
	if err := l.blob.Write(ctx, payload); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "write query log", err)
	}
	return nil
}
