package agent

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlagent/sqlagent/internal/conversation"
	"github.com/sqlagent/sqlagent/internal/nl2sql"
	"github.com/sqlagent/sqlagent/internal/query/sqlite"
	"github.com/sqlagent/sqlagent/internal/querylog"
	"github.com/sqlagent/sqlagent/internal/safety"
	"github.com/sqlagent/sqlagent/internal/visualize"
)

func TestAskResolvesFollowUpQuestion(t *testing.T) {
	model := &scriptedModel{
		reformulation: "What are the emails of the top 5 customers?",
		sql:           "```sql\nSELECT Email FROM Customer ORDER BY CustomerId LIMIT 5;\n```",
	}
	env := newTestEnv(t, model)

	history := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "top 5 customers"},
		{Role: conversation.RoleAssistant, Content: "Here are the top customers.", SQL: "SELECT Name FROM Customer LIMIT 5"},
	}
	response := env.service.Ask(context.Background(), Request{Question: "What are their emails?", History: history})

	if !response.Success {
		t.Fatalf("response = %#v", response)
	}
	refined := strings.ToLower(response.ReformulatedQuestion)
	if !strings.Contains(refined, "customer") || !strings.Contains(refined, "email") {
		t.Fatalf("ReformulatedQuestion = %q", response.ReformulatedQuestion)
	}
	if !strings.Contains(model.prompt("reformulate"), "SELECT Name FROM Customer LIMIT 5") {
		t.Fatalf("reformulation prompt lacks prior SQL: %q", model.prompt("reformulate"))
	}
	if len(response.Results) != 2 || response.Results[0]["Email"] != "luisg@embraer.com.br" {
		t.Fatalf("Results = %#v", response.Results)
	}
	if response.Message != MessageSuccess || response.Stage != StageDone || response.TurnID != "turn-1" {
		t.Fatalf("response = %#v", response)
	}
	if !strings.Contains(model.generationPrompt(), "What are the emails of the top 5 customers?") {
		t.Fatalf("generator did not receive reformulated question: %q", model.generationPrompt())
	}
	if !strings.Contains(model.generationPrompt(), "Table: Customer") {
		t.Fatalf("generator did not receive schema context: %q", model.generationPrompt())
	}

	entries := env.log.ReadAll(context.Background())
	if len(entries) != 1 || entries[0].Question != "What are their emails?" || !entries[0].Success {
		t.Fatalf("entries = %#v", entries)
	}
}

func TestAskRefusalRunsServiceMessage(t *testing.T) {
	model := &scriptedModel{sql: "```sql\n" + nl2sql.RefusalSQL + "\n```"}
	env := newTestEnv(t, model)

	response := env.service.Ask(context.Background(), Request{Question: "What is the capital of France?"})

	if !response.Success {
		t.Fatalf("response = %#v", response)
	}
	if len(response.Results) != 1 || response.Results[0]["Service_Message"] != "I can only answer questions about the connected database." {
		t.Fatalf("Results = %#v", response.Results)
	}
	if response.ReformulatedQuestion != "" {
		t.Fatalf("ReformulatedQuestion = %q", response.ReformulatedQuestion)
	}
	if model.calls("reformulate") != 0 {
		t.Fatal("reformulation should be skipped without history")
	}
	if response.Visualization != nil || model.calls("visualize") != 0 {
		t.Fatalf("unexpected visualization %#v", response.Visualization)
	}
}

func TestAskRejectsDestructiveStatement(t *testing.T) {
	model := &scriptedModel{sql: "SELECT * FROM Customer; DROP TABLE Customer"}
	env := newTestEnv(t, model)

	response := env.service.Ask(context.Background(), Request{Question: "Delete all customers"})

	if response.Success || response.Stage != StageRejected {
		t.Fatalf("response = %#v", response)
	}
	if response.Error != safety.ReasonChainedDestructive {
		t.Fatalf("Error = %q", response.Error)
	}
	if response.SQLQuery != "SELECT * FROM Customer; DROP TABLE Customer" {
		t.Fatalf("SQLQuery = %q", response.SQLQuery)
	}
	entries := env.log.ReadAll(context.Background())
	if len(entries) != 1 || entries[0].Success || entries[0].ErrorMessage != safety.ReasonChainedDestructive {
		t.Fatalf("entries = %#v", entries)
	}
	assertCustomerCount(t, env.dbPath, 2)
}

func TestAskExecutionFailure(t *testing.T) {
	model := &scriptedModel{sql: "SELECT * FROM Missing"}
	env := newTestEnv(t, model)

	response := env.service.Ask(context.Background(), Request{Question: "List missing things"})

	if response.Success || response.Stage != StageExecuting {
		t.Fatalf("response = %#v", response)
	}
	if !strings.Contains(response.Error, "no such table") {
		t.Fatalf("Error = %q", response.Error)
	}
	if !strings.HasPrefix(response.Message, "Error executing query: ") {
		t.Fatalf("Message = %q", response.Message)
	}
	if response.Results != nil {
		t.Fatalf("Results = %#v", response.Results)
	}
	entries := env.log.ReadAll(context.Background())
	if len(entries) != 1 || entries[0].Success || entries[0].SQLQuery != "SELECT * FROM Missing" {
		t.Fatalf("entries = %#v", entries)
	}
}

func TestAskGenerationFailureLogsEmptySQL(t *testing.T) {
	model := &scriptedModel{sqlErr: errors.New("model unavailable")}
	env := newTestEnv(t, model)

	response := env.service.Ask(context.Background(), Request{Question: "Top artists"})

	if response.Success || response.Stage != StageGenerating {
		t.Fatalf("response = %#v", response)
	}
	if response.Error != ErrorGenerationFailed || response.Message != MessageGenerationFailed {
		t.Fatalf("response = %#v", response)
	}
	entries := env.log.ReadAll(context.Background())
	if len(entries) != 1 || entries[0].SQLQuery != "" || entries[0].Success {
		t.Fatalf("entries = %#v", entries)
	}
	if !strings.Contains(entries[0].ErrorMessage, "model unavailable") {
		t.Fatalf("ErrorMessage = %q", entries[0].ErrorMessage)
	}
}

func TestAskReformulationFailureFallsBackToQuestion(t *testing.T) {
	model := &scriptedModel{
		reformulationErr: errors.New("rate limited"),
		sql:              "SELECT COUNT(*) AS n FROM Customer",
	}
	env := newTestEnv(t, model)

	response := env.service.Ask(context.Background(), Request{
		Question: "How many customers are there?",
		History:  []conversation.Turn{{Role: conversation.RoleUser, Content: "hello"}},
	})

	if !response.Success {
		t.Fatalf("response = %#v", response)
	}
	if response.ReformulatedQuestion != "" {
		t.Fatalf("ReformulatedQuestion = %q", response.ReformulatedQuestion)
	}
	if !strings.Contains(model.generationPrompt(), "How many customers are there?") {
		t.Fatalf("generation prompt = %q", model.generationPrompt())
	}
}

func TestAskPersistenceFailureDoesNotFailTurn(t *testing.T) {
	model := &scriptedModel{sql: "SELECT FirstName FROM Customer"}
	env := newTestEnv(t, model)
	env.service.deps.QueryLog = failingLog{}

	response := env.service.Ask(context.Background(), Request{Question: "Names"})
	if !response.Success || len(response.Results) != 2 {
		t.Fatalf("response = %#v", response)
	}
}

func TestAskSuggestsVisualization(t *testing.T) {
	model := &scriptedModel{
		sql:   "SELECT FirstName, CustomerId FROM Customer ORDER BY CustomerId",
		chart: `{"chart_type": "bar", "x_axis": "FirstName", "y_axis": "CustomerId", "title": "Customer ids"}`,
	}
	env := newTestEnv(t, model)

	response := env.service.Ask(context.Background(), Request{Question: "Customer ids by name"})
	if !response.Success {
		t.Fatalf("response = %#v", response)
	}
	if response.Visualization == nil || response.Visualization.ChartType != visualize.ChartBar {
		t.Fatalf("Visualization = %#v", response.Visualization)
	}
	if len(response.Columns) != 2 || response.Columns[0] != "FirstName" {
		t.Fatalf("Columns = %#v", response.Columns)
	}
}

func TestAskModelTimeoutIsGenerationFailure(t *testing.T) {
	model := &scriptedModel{block: true}
	env := newTestEnv(t, model)
	env.service.deps.ModelTimeout = 20 * time.Millisecond

	response := env.service.Ask(context.Background(), Request{Question: "Slow question"})
	if response.Success || response.Stage != StageGenerating {
		t.Fatalf("response = %#v", response)
	}
}

type testEnv struct {
	service *Service
	log     *querylog.Log
	dbPath  string
}

func newTestEnv(t *testing.T, model *scriptedModel) *testEnv {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chinook.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, statement := range []string{
		`CREATE TABLE Customer (CustomerId INTEGER PRIMARY KEY, FirstName TEXT, Email TEXT, Country TEXT)`,
		`INSERT INTO Customer VALUES (1, 'Luís', 'luisg@embraer.com.br', 'Brazil'), (2, 'Eduardo', 'eduardo@woodstock.com.br', 'Brazil')`,
	} {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("exec: %v", err)
		}
	}
	_ = db.Close()

	backend, err := sqlite.New(sqlite.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	log := querylog.New(querylog.NewFileBlob(filepath.Join(dir, "query_logs.json")), nil)

	ids := 0
	service := NewService(Dependencies{
		Reformulator: conversation.NewReformulator(model),
		Schema:       staticSchema("Table: Customer\nColumns:\n- CustomerId (INTEGER)\n- Email (TEXT)"),
		Generator:    nl2sql.NewSQLGenerator(model, backend.Dialect()),
		Backend:      backend,
		QueryLog:     log,
		Advisor:      visualize.NewAdvisor(model, nil),
	})
	service.newID = func() string {
		ids++
		return "turn-" + string(rune('0'+ids))
	}
	return &testEnv{service: service, log: log, dbPath: dbPath}
}

type staticSchema string

func (s staticSchema) Context(context.Context, string) string { return string(s) }

type failingLog struct{}

func (failingLog) Append(context.Context, string, string, bool, string) error {
	return errors.New("disk full")
}

// scriptedModel answers each prompt kind with a fixed reply.
type scriptedModel struct {
	reformulation    string
	reformulationErr error
	sql              string
	sqlErr           error
	chart            string
	block            bool

	mu      sync.Mutex
	counts  map[string]int
	prompts map[string]string
}

func (m *scriptedModel) Complete(ctx context.Context, prompt nl2sql.Prompt) (string, error) {
	kind := "visualize"
	switch {
	case strings.Contains(prompt.User, "Latest User Question"):
		kind = "reformulate"
	case strings.Contains(prompt.User, "Output the SQL inside"):
		kind = "generate"
	}

	m.mu.Lock()
	if m.counts == nil {
		m.counts = map[string]int{}
		m.prompts = map[string]string{}
	}
	m.counts[kind]++
	m.prompts[kind] = prompt.User
	m.mu.Unlock()

	switch kind {
	case "reformulate":
		return m.reformulation, m.reformulationErr
	case "generate":
		if m.block {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return m.sql, m.sqlErr
	default:
		if m.chart == "" {
			return `{"chart_type": "none"}`, nil
		}
		return m.chart, nil
	}
}

func (m *scriptedModel) calls(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[kind]
}

func (m *scriptedModel) prompt(kind string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[kind]
}

func (m *scriptedModel) generationPrompt() string {
	return m.prompt("generate")
}

func assertCustomerCount(t *testing.T, path string, want int) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = db.Close() }()
	var got int
	if err := db.QueryRow(`SELECT COUNT(*) FROM Customer`).Scan(&got); err != nil {
		t.Fatalf("count customers: %v", err)
	}
	if got != want {
		t.Fatalf("customers = %d, want %d", got, want)
	}
}
