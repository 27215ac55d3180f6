package api

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tickerql/tickerql/internal/query"
	"github.com/tickerql/tickerql/internal/stock"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	Table      string
	Question   string
	Resolution *query.Resolution
}

// handlePage renders the question form and, when q is set, the answer.
func handlePage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	data := pageData{Table: stock.TableName, Question: r.URL.Query().Get("q")}
	if strings.TrimSpace(data.Question) != "" {
		if deps.Resolver == nil {
			data.Resolution = &query.Resolution{Error: "query resolver is not configured"}
		} else {
			resolution := deps.Resolver.Resolve(r.Context(), data.Question)
			data.Resolution = &resolution
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "render page failed", slog.Any("error", err))
		}
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
