// Package agent runs one chat turn end to end: reformulate, retrieve schema context,
// generate SQL, gate and execute it, record the outcome and suggest a chart.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sqlagent/sqlagent/internal/conversation"
	"github.com/sqlagent/sqlagent/internal/query"
	"github.com/sqlagent/sqlagent/internal/visualize"
)

type Stage string

const (
	StageReformulating         Stage = "reformulating"
	StageContextRetrieval      Stage = "context_retrieval"
	StageGenerating            Stage = "generating"
	StageValidating            Stage = "validating"
	StageExecuting             Stage = "executing"
	StageRejected              Stage = "rejected"
	StageLogged                Stage = "logged"
	StageVisualizationAnalysis Stage = "visualization_analysis"
	StageDone                  Stage = "done"
)

const (
	OutcomeSuccess         = "success"
	OutcomeRejected        = "rejected"
	OutcomeExecutionError  = "execution_error"
	OutcomeGenerationError = "generation_error"
)

const (
	MessageSuccess          = "Query executed successfully"
	MessageGenerationFailed = "The AI agent could not generate a valid SQL query"
	ErrorGenerationFailed   = "Failed to generate SQL query"
)

type Reformulator interface {
	Reformulate(ctx context.Context, question string, history []conversation.Turn) (string, error)
}

type SchemaRetriever interface {
	Context(ctx context.Context, question string) string
}

type Generator interface {
	Generate(ctx context.Context, question, schemaContext string) (string, error)
}

type QueryLog interface {
	Append(ctx context.Context, question, sqlQuery string, success bool, errorMessage string) error
}

type Advisor interface {
	Suggest(ctx context.Context, question string, result query.Result) *visualize.Spec
}

// Dependencies wires the collaborators of a Service. Advisor may be nil to disable charts.
type Dependencies struct {
	Reformulator Reformulator
	Schema       SchemaRetriever
	Generator    Generator
	Backend      query.Backend
	QueryLog     QueryLog
	Advisor      Advisor
	Logger       *slog.Logger
	// ModelTimeout bounds each language model call. Zero means no extra bound.
	ModelTimeout time.Duration
}

type Request struct {
	Question string
	History  []conversation.Turn
}

type Response struct {
	TurnID               string          `json:"turn_id"`
	Success              bool            `json:"success"`
	SQLQuery             string          `json:"sql_query,omitempty"`
	Columns              []string        `json:"columns,omitempty"`
	Results              []query.Row     `json:"results"`
	Error                string          `json:"error,omitempty"`
	Message              string          `json:"message"`
	ReformulatedQuestion string          `json:"reformulated_question,omitempty"`
	Visualization        *visualize.Spec `json:"visualization,omitempty"`
	// Stage is where the turn ended: StageDone, StageRejected, StageExecuting or
	// StageGenerating.
	Stage Stage `json:"stage"`
}

type Service struct {
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:   deps,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}
