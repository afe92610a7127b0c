package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/sqlagent/sqlagent/internal/observability"
	"github.com/sqlagent/sqlagent/internal/query"
	"github.com/sqlagent/sqlagent/internal/visualize"
)

// Ask runs a single turn. Turn-level failures are reported in the Response, never as
// errors. Callers reject empty questions before calling Ask.
func (s *Service) Ask(ctx context.Context, req Request) Response {
	turnID := s.newID()
	turn := &turnState{
		service: s,
		logger:  s.logger.With("turn_id", turnID, "trace_id", observability.TraceIDFromContext(ctx)),
		start:   s.now(),
	}
	response := Response{TurnID: turnID}

	turn.enter(ctx, StageReformulating)
	question := req.Question
	reformulated, err := s.callModel(ctx, StageReformulating, len(req.History) > 0, func(callCtx context.Context) (string, error) {
		return s.deps.Reformulator.Reformulate(callCtx, req.Question, req.History)
	})
	if err != nil {
		turn.logger.WarnContext(ctx, "reformulation failed, using original question", "error", err)
	} else {
		question = reformulated
	}
	if question != req.Question {
		response.ReformulatedQuestion = question
	}

	turn.enter(ctx, StageContextRetrieval)
	schemaContext := ""
	if s.deps.Schema != nil {
		schemaContext = s.deps.Schema.Context(ctx, question)
	}

	turn.enter(ctx, StageGenerating)
	sqlText, err := s.callModel(ctx, StageGenerating, true, func(callCtx context.Context) (string, error) {
		return s.deps.Generator.Generate(callCtx, question, schemaContext)
	})
	if err != nil {
		turn.logger.ErrorContext(ctx, "sql generation failed", "error", err)
		turn.record(ctx, req.Question, "", false, err.Error())
		response.Error = ErrorGenerationFailed
		response.Message = MessageGenerationFailed
		response.Stage = StageGenerating
		return turn.finish(ctx, response, OutcomeGenerationError)
	}
	response.SQLQuery = sqlText

	turn.enter(ctx, StageValidating)
	if verdict := s.deps.Backend.Check(sqlText); !verdict.Safe {
		turn.enter(ctx, StageRejected)
		observability.IncrementSafetyRejection()
		turn.logger.WarnContext(ctx, "statement rejected", "reason", verdict.Reason, "sql", sqlText)
		turn.record(ctx, req.Question, sqlText, false, verdict.Reason)
		response.Error = verdict.Reason
		response.Message = "Error executing query: " + verdict.Reason
		response.Stage = StageRejected
		return turn.finish(ctx, response, OutcomeRejected)
	}

	turn.enter(ctx, StageExecuting)
	executeStart := s.now()
	result, err := s.deps.Backend.Execute(ctx, sqlText)
	observability.ObserveQuery(s.deps.Backend.Dialect(), err, s.now().Sub(executeStart))
	if err != nil {
		turn.logger.WarnContext(ctx, "statement failed", "error", err, "sql", sqlText)
		turn.record(ctx, req.Question, sqlText, false, err.Error())
		response.Error = err.Error()
		response.Message = "Error executing query: " + err.Error()
		response.Stage = StageExecuting
		return turn.finish(ctx, response, OutcomeExecutionError)
	}
	turn.record(ctx, req.Question, sqlText, true, "")

	response.Success = true
	response.Columns = result.Columns
	response.Results = result.Rows
	response.Message = MessageSuccess
	response.Stage = StageDone

	if s.deps.Advisor != nil && len(result.Rows) > 0 {
		turn.enter(ctx, StageVisualizationAnalysis)
		response.Visualization = s.suggest(ctx, question, result)
	}
	return turn.finish(ctx, response, OutcomeSuccess)
}

// callModel bounds call by the model timeout. observe is false for calls that are known
// not to reach the model.
func (s *Service) callModel(ctx context.Context, stage Stage, observe bool, call func(context.Context) (string, error)) (string, error) {
	callCtx := ctx
	if s.deps.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.deps.ModelTimeout)
		defer cancel()
	}
	start := s.now()
	out, err := call(callCtx)
	if observe {
		observability.ObserveModelCall(string(stage), err, s.now().Sub(start))
	}
	return out, err
}

func (s *Service) suggest(ctx context.Context, question string, result query.Result) *visualize.Spec {
	callCtx := ctx
	if s.deps.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.deps.ModelTimeout)
		defer cancel()
	}
	return s.deps.Advisor.Suggest(callCtx, question, result)
}

type turnState struct {
	service *Service
	logger  *slog.Logger
	start   time.Time
	stage   Stage
}

func (t *turnState) enter(ctx context.Context, next Stage) {
	t.logger.DebugContext(ctx, "turn stage", "from", string(t.stage), "to", string(next))
	t.stage = next
}

// record writes the query log entry. A failed write is logged and counted but does not
// change the turn's outcome.
func (t *turnState) record(ctx context.Context, question, sqlText string, success bool, errorMessage string) {
	if log := t.service.deps.QueryLog; log != nil {
		if err := log.Append(ctx, question, sqlText, success, errorMessage); err != nil {
			observability.IncrementQueryLogWriteFailure()
			t.logger.ErrorContext(ctx, "query log write failed", "error", err)
		}
	}
	t.enter(ctx, StageLogged)
}

func (t *turnState) finish(ctx context.Context, response Response, outcome string) Response {
	t.enter(ctx, StageDone)
	elapsed := t.service.now().Sub(t.start)
	observability.ObserveTurn(outcome, elapsed)
	t.logger.InfoContext(ctx, "turn finished",
		"outcome", outcome,
		"stage", string(response.Stage),
		"rows", len(response.Results),
		"duration", elapsed.String(),
	)
	return response
}
