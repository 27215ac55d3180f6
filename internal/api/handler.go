// Package api serves the question-answering HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tickerql/tickerql/internal/config"
	"github.com/tickerql/tickerql/internal/maintenance"
	"github.com/tickerql/tickerql/internal/nl2sql"
	"github.com/tickerql/tickerql/internal/observability"
	"github.com/tickerql/tickerql/internal/query"
)

type ReadinessCheck func(ctx context.Context) error

// Resolver answers a free-text question. *query.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, question string) query.Resolution
}

// SnapshotVerifier checks the parquet snapshot against the store.
type SnapshotVerifier interface {
	RunIntegrityCheckOnce(ctx context.Context) (maintenance.IntegritySummary, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Resolver          Resolver
	Generator         nl2sql.Generator
	Maintenance       SnapshotVerifier
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})
	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		handleReady(deps, w, r)
	})
	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := map[string]http.HandlerFunc{
		"GET /api/v1/resolve_query/{$}": func(w http.ResponseWriter, r *http.Request) {
			handleResolveQuery(deps, w, r)
		},
		"GET /api/v1/resolve_query": func(w http.ResponseWriter, r *http.Request) {
			handleResolveQuery(deps, w, r)
		},
		"POST /v1/query/translate": func(w http.ResponseWriter, r *http.Request) {
			handleTranslate(deps, w, r)
		},
		"POST /v1/snapshot/verify": func(w http.ResponseWriter, r *http.Request) {
			handleSnapshotVerify(deps, w, r)
		},
		"GET /v1/schema": func(w http.ResponseWriter, r *http.Request) {
			handleSchema(w, r)
		},
		"GET /{$}": func(w http.ResponseWriter, r *http.Request) {
			handlePage(deps, w, r)
		},
	}
	guard := protect(cfg, deps)
	for pattern, handler := range protected {
		mux.Handle(pattern, guard(handler))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// protect wraps the query routes with the auth middleware when
// cfg.Auth.Required is set.
func protect(cfg config.Config, deps Dependencies) func(http.Handler) http.Handler {
	if !cfg.Auth.Required {
		return func(next http.Handler) http.Handler { return next }
	}
	if deps.AuthMiddleware == nil {
		if deps.Logger != nil {
			deps.Logger.Error("auth required but auth middleware missing")
		}
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		}
	}
	return deps.AuthMiddleware
}

func handleReady(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Readiness == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}
	timeout := deps.DependencyTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	if err := deps.Readiness(ctx); err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
