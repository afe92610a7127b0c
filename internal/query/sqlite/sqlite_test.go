package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/sqlagent/sqlagent/internal/apperr"
)

func TestExecuteReturnsRowsFromFile(t *testing.T) {
	path := buildDatabase(t,
		`CREATE TABLE Customer (CustomerId INTEGER PRIMARY KEY, FirstName TEXT, Email TEXT)`,
		`INSERT INTO Customer VALUES (1, 'Luís', 'luisg@embraer.com.br'), (2, 'Leonie', 'leonekohler@surfeu.de')`,
	)
	backend, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := backend.Execute(context.Background(), "SELECT FirstName, Email FROM Customer ORDER BY CustomerId")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0]["FirstName"] != "Luís" || result.Rows[1]["Email"] != "leonekohler@surfeu.de" {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestExecuteServiceMessage(t *testing.T) {
	path := buildDatabase(t, `CREATE TABLE Artist (ArtistId INTEGER PRIMARY KEY, Name TEXT)`)
	backend, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := backend.Execute(context.Background(), "SELECT 'I can only answer questions about the connected database.' AS Service_Message;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0]["Service_Message"] != "I can only answer questions about the connected database." {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestExecutePragmaAllowed(t *testing.T) {
	path := buildDatabase(t, `CREATE TABLE Genre (GenreId INTEGER PRIMARY KEY, Name TEXT)`)
	backend, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := backend.Execute(context.Background(), "PRAGMA table_info(Genre)")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 || result.Rows[1]["name"] != "Name" {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestExecuteMissingTableIsExecutionError(t *testing.T) {
	path := buildDatabase(t, `CREATE TABLE Genre (GenreId INTEGER PRIMARY KEY)`)
	backend, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = backend.Execute(context.Background(), "SELECT * FROM Missing")
	if !apperr.Is(err, apperr.KindExecution) {
		t.Fatalf("error = %v, want execution error", err)
	}
}

func TestExecuteChainedDropLeavesDataIntact(t *testing.T) {
	path := buildDatabase(t,
		`CREATE TABLE Genre (GenreId INTEGER PRIMARY KEY, Name TEXT)`,
		`INSERT INTO Genre VALUES (1, 'Rock')`,
	)
	backend, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = backend.Execute(context.Background(), "SELECT * FROM Genre; DROP TABLE Genre")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}

	result, err := backend.Execute(context.Background(), "SELECT COUNT(*) AS n FROM Genre")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0]["n"] != int64(1) {
		t.Fatalf("n = %#v", result.Rows[0]["n"])
	}
}

func TestExecuteMissingFileIsConnectionError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	backend, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = backend.Execute(context.Background(), "SELECT 1")
	if !apperr.Is(err, apperr.KindConnection) {
		t.Fatalf("error = %v, want connection error", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("database file should not be created, stat error = %v", statErr)
	}
}

func TestExecuteOpensPathWithURIDelimiters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports?v=2#draft 100%")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "chinook.db")
	built := buildDatabase(t,
		`CREATE TABLE Genre (GenreId INTEGER PRIMARY KEY, Name TEXT)`,
		`INSERT INTO Genre VALUES (1, 'Rock'), (2, 'Jazz')`,
	)
	if err := os.Rename(built, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	backend, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := backend.Execute(context.Background(), "SELECT COUNT(*) AS n FROM Genre")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0]["n"] != int64(2) {
		t.Fatalf("n = %#v", result.Rows[0]["n"])
	}
}

func TestDSNEscapesURIDelimiters(t *testing.T) {
	got := dsn("/data/a?b#c%d.db")
	if got != "file:/data/a%3Fb%23c%25d.db?_busy_timeout=5000" {
		t.Fatalf("dsn() = %q", got)
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func buildDatabase(t *testing.T, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chinook.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = db.Close() }()
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("exec %q: %v", statement, err)
		}
	}
	return path
}
