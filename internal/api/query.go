package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sqlagent/sqlagent/internal/apperr"
)

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Stats   map[string]any   `json:"stats"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Backend == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query backend is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result, err := deps.Backend.Execute(r.Context(), request.SQL)
	if err != nil {
		status, code, retryable := queryErrorStatus(err)
		writeError(r.Context(), w, status, code, err.Error(), retryable, nil)
		return
	}

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Columns: result.Columns,
		Rows:    rows,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
			"row_count":   len(rows),
		},
	})
}

func queryErrorStatus(err error) (int, string, bool) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest, "SQL_NOT_ALLOWED", false
	case apperr.KindExecution:
		return http.StatusBadRequest, "QUERY_EXECUTION_FAILED", false
	case apperr.KindConnection:
		return http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", true
	default:
		return http.StatusInternalServerError, "QUERY_FAILED", false
	}
}
