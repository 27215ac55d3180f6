package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tickerql/tickerql/internal/stock"
)

const noQueryMessage = "No query provided."

// handleResolveQuery answers with a plain {"error": ...} body, not the error
// envelope. Only a missing or empty q is rejected; whitespace is a question
// like any other. Resolutions that carry an execution error are still 200.
func handleResolveQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")
	if question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": noQueryMessage})
		return
	}
	if deps.Resolver == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "RESOLVER_NOT_CONFIGURED", "query resolver is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, deps.Resolver.Resolve(r.Context(), question))
}

type translateRequest struct {
	Question string `json:"question"`
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}

	var req translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	sql, err := deps.Generator.GenerateSQL(r.Context(), req.Question)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate question", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sql": sql})
}

func handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"table":   stock.TableName,
		"columns": stock.Columns,
		"ddl":     strings.TrimSpace(stock.TableSchema),
	})
}
