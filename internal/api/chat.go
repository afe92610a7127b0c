package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sqlagent/sqlagent/internal/agent"
	"github.com/sqlagent/sqlagent/internal/conversation"
	"github.com/sqlagent/sqlagent/internal/querylog"
)

type chatRequest struct {
	Question    string              `json:"question"`
	ChatHistory []conversation.Turn `json:"chat_history"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat service is not configured", false, nil)
		return
	}

	var request chatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "Question cannot be empty", false, nil)
		return
	}

	response := deps.Chat.Ask(r.Context(), agent.Request{Question: question, History: request.ChatHistory})
	writeJSON(w, http.StatusOK, response)
}

func handleGetHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "query log is not configured", false, nil)
		return
	}
	entries := deps.History.ReadAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(entries),
		"logs":    entries,
	})
}

func handleClearHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "query log is not configured", false, nil)
		return
	}
	if err := deps.History.Clear(r.Context()); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_CLEAR_FAILED", "Failed to clear history", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Query history cleared successfully",
	})
}

func handleExportHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "query log is not configured", false, nil)
		return
	}

	var buf bytes.Buffer
	if err := querylog.WriteParquet(&buf, deps.History.ReadAll(r.Context())); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_EXPORT_FAILED", "failed to encode query log", false, map[string]any{"details": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="query_logs.parquet"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
