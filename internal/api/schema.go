package api

import (
	"net/http"
)

func handleGetSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema index is not configured", false, nil)
		return
	}
	documents := deps.Schema.Documents()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(documents),
		"tables": documents,
	})
}

func handleReloadSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema index is not configured", false, nil)
		return
	}
	if err := deps.Schema.Reload(r.Context()); err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_RELOAD_FAILED", "failed to reload schema", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"count":  len(deps.Schema.Documents()),
	})
}
